package access

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/orialabs/access/logger"
)

// Authorizer fans a check out to the three evaluators in a fixed order
// (RBAC, ABAC, ReBAC), always evaluating all three so the verdict carries
// full provenance, and combines the results by logical OR.
type Authorizer struct {
	rbac  *RBAC
	abac  *ABAC
	rebac *ReBAC
	log   logger.Logger

	// Optional verdict cache. Invalidated on every administration mutation
	// that goes through the Authorizer, so a mutation that returned success
	// is visible to every later Check.
	verdicts   *ristretto.Cache
	verdictTTL time.Duration
}

// Option configures an Authorizer.
type Option func(*Authorizer) error

// WithLogger installs a Logger on the Authorizer and its evaluators.
func WithLogger(l logger.Logger) Option {
	return func(a *Authorizer) error {
		a.log = l
		return nil
	}
}

// WithVerdictCache enables a ristretto-backed verdict cache. Entries expire
// after ttl and the whole cache is dropped on any administration mutation.
func WithVerdictCache(numCounters, maxCost, bufferItems int64, ttl time.Duration) Option {
	return func(a *Authorizer) error {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: bufferItems,
		})
		if err != nil {
			return fmt.Errorf("verdict cache: %w", err)
		}
		a.verdicts = cache
		a.verdictTTL = ttl
		return nil
	}
}

// NewAuthorizer wires the three evaluators over explicitly owned stores.
// There is no ambient global state; independent instances are isolated.
func NewAuthorizer(grants GrantStore, members MembershipStore, attrs AttributeStore, policies PolicyStore, rels RelationshipStore, opts ...Option) (*Authorizer, error) {
	a := &Authorizer{log: logger.NewNullLogger()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	a.rbac = NewRBAC(grants, members, a.log)
	a.abac = NewABAC(policies, attrs, a.log)
	a.rebac = NewReBAC(rels, a.log)
	return a, nil
}

// RBAC exposes the role evaluator for direct use.
func (a *Authorizer) RBAC() *RBAC { return a.rbac }

// ABAC exposes the attribute evaluator for direct use.
func (a *Authorizer) ABAC() *ABAC { return a.abac }

// ReBAC exposes the relationship evaluator for direct use.
func (a *Authorizer) ReBAC() *ReBAC { return a.rebac }

// Check evaluates all three models for (subject, resource, action) and
// returns the combined verdict. resourceType/resourceID are optional and
// only feed resource-attribute lookup for ABAC. A store failure aborts the
// check with an error; it is never reported as a deny.
func (a *Authorizer) Check(ctx context.Context, sub Subject, resource, action, resourceType, resourceID string) (*Verdict, error) {
	if a == nil || a.rbac == nil || a.abac == nil || a.rebac == nil {
		return nil, ErrNotInitialized
	}

	key := verdictKey(sub, resource, action, resourceType, resourceID)
	if a.verdicts != nil {
		if v, ok := a.verdicts.Get(key); ok {
			if verdict, ok := v.(*Verdict); ok {
				return verdict, nil
			}
		}
	}

	results := make([]ModelResult, 0, 3)
	grantedBy := make([]Model, 0, 2)

	rbacOK, err := a.rbac.Enforce(ctx, sub.ID, resource, action)
	if err != nil {
		return nil, err
	}
	rbacReason := "no role grants " + action + " on " + resource
	if rbacOK {
		rbacReason = "role membership grants " + action + " on " + resource
		grantedBy = append(grantedBy, ModelRBAC)
	}
	results = append(results, ModelResult{Model: ModelRBAC, Granted: rbacOK, Reason: rbacReason})

	subjectAttrs, err := a.abac.GatherSubjectAttributes(ctx, sub)
	if err != nil {
		return nil, err
	}
	resourceAttrs, err := a.abac.GatherResourceAttributes(ctx, resourceType, resourceID)
	if err != nil {
		return nil, err
	}
	abacOK, matched, err := a.abac.Enforce(ctx, subjectAttrs, resourceAttrs, resource, action)
	if err != nil {
		return nil, err
	}
	abacReason := "No policies matched"
	if len(matched) > 0 {
		abacReason = "Matched policies: " + strings.Join(matched, ", ")
	}
	if abacOK {
		grantedBy = append(grantedBy, ModelABAC)
	}
	results = append(results, ModelResult{Model: ModelABAC, Granted: abacOK, Reason: abacReason})

	rebacOK, path, err := a.rebac.Enforce(ctx, sub.ID, resource, action)
	if err != nil {
		return nil, err
	}
	rebacReason := "No relationship path found"
	switch {
	case len(path) > 0:
		rebacReason = strings.Join(path, ", ")
	case rebacOK:
		rebacReason = "granted via flat relationship check"
	}
	if rebacOK {
		grantedBy = append(grantedBy, ModelReBAC)
	}
	results = append(results, ModelResult{Model: ModelReBAC, Granted: rebacOK, Reason: rebacReason})

	verdict := &Verdict{
		Granted:   len(grantedBy) > 0,
		GrantedBy: grantedBy,
		Results:   results,
	}
	a.log.Debug("check complete", "subject", sub.ID, "resource", resource, "action", action, "granted", verdict.Granted)

	if a.verdicts != nil {
		a.verdicts.SetWithTTL(key, verdict, 1, a.verdictTTL)
	}
	return verdict, nil
}

func verdictKey(sub Subject, resource, action, resourceType, resourceID string) string {
	return strings.Join([]string{
		sub.ID, sub.Department, fmt.Sprint(sub.Level), sub.Location, fmt.Sprint(sub.Privileged),
		resource, action, resourceType, resourceID,
	}, "|")
}

// invalidate drops all cached verdicts after a successful mutation.
func (a *Authorizer) invalidate() {
	if a.verdicts != nil {
		a.verdicts.Clear()
	}
}

// ============================================================================
// ADMINISTRATION (verdict-cache aware)
// ============================================================================
//
// Mutations routed through the Authorizer invalidate the verdict cache only
// after the underlying store reported durable success.

func (a *Authorizer) GrantRole(ctx context.Context, subject, role string) error {
	if err := a.rbac.GrantRole(ctx, subject, role); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) RevokeRole(ctx context.Context, subject, role string) error {
	if err := a.rbac.RevokeRole(ctx, subject, role); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) GrantPermission(ctx context.Context, role, resource, action string) error {
	if err := a.rbac.GrantPermission(ctx, role, resource, action); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) RevokePermission(ctx context.Context, role, resource, action string) error {
	if err := a.rbac.RevokePermission(ctx, role, resource, action); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) CreatePolicy(ctx context.Context, p *ABACPolicy) error {
	if err := a.abac.CreatePolicy(ctx, p); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) DeletePolicy(ctx context.Context, name string) error {
	if err := a.abac.DeletePolicy(ctx, name); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) SetSubjectAttribute(ctx context.Context, subjectID, key, value string) error {
	if err := a.abac.SetSubjectAttribute(ctx, subjectID, key, value); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) SetResourceAttribute(ctx context.Context, resourceType, resourceID, key, value string) error {
	if err := a.abac.SetResourceAttribute(ctx, resourceType, resourceID, key, value); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) CreateRelationship(ctx context.Context, r *Relationship) error {
	if err := a.rebac.CreateRelationship(ctx, r); err != nil {
		return err
	}
	a.invalidate()
	return nil
}

func (a *Authorizer) DeleteRelationship(ctx context.Context, r *Relationship) error {
	if err := a.rebac.DeleteRelationship(ctx, r); err != nil {
		return err
	}
	a.invalidate()
	return nil
}
