package access

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/orialabs/access/logger"
)

// ABAC evaluates declarative attribute policies. A policy matches when its
// permission target equals the requested resource/action (or is "*") and
// every condition holds against the merged subject/resource attributes.
type ABAC struct {
	policies PolicyStore
	attrs    AttributeStore
	log      logger.Logger
}

func NewABAC(policies PolicyStore, attrs AttributeStore, log logger.Logger) *ABAC {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &ABAC{policies: policies, attrs: attrs, log: log}
}

// GatherSubjectAttributes merges the subject's built-in profile fields with
// custom overrides from the attribute store. Custom keys win on collision.
func (s *ABAC) GatherSubjectAttributes(ctx context.Context, sub Subject) (map[string]string, error) {
	if s == nil || s.attrs == nil {
		return nil, ErrNotInitialized
	}
	merged := map[string]string{
		"department": sub.Department,
		"level":      strconv.Itoa(sub.Level),
		"location":   sub.Location,
		"privileged": strconv.FormatBool(sub.Privileged),
	}
	custom, err := s.attrs.SubjectAttributes(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("abac: subject attributes for %q: %w", sub.ID, err)
	}
	for k, v := range custom {
		merged[k] = v
	}
	return merged, nil
}

// GatherResourceAttributes looks up resource attributes; both type and id
// must be supplied, otherwise the map is empty.
func (s *ABAC) GatherResourceAttributes(ctx context.Context, resourceType, resourceID string) (map[string]string, error) {
	if s == nil || s.attrs == nil {
		return nil, ErrNotInitialized
	}
	if resourceType == "" || resourceID == "" {
		return map[string]string{}, nil
	}
	attrs, err := s.attrs.ResourceAttributes(ctx, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("abac: resource attributes for %s:%s: %w", resourceType, resourceID, err)
	}
	return attrs, nil
}

// Enforce iterates the active policies and returns whether at least one
// fully matches, plus the names of every matching policy for auditability.
// The boolean is independent of how many policies matched.
func (s *ABAC) Enforce(ctx context.Context, subjectAttrs, resourceAttrs map[string]string, resource, action string) (bool, []string, error) {
	if s == nil || s.policies == nil {
		return false, nil, ErrNotInitialized
	}
	policies, err := s.policies.ListPolicies(ctx, true)
	if err != nil {
		return false, nil, fmt.Errorf("abac: list policies: %w", err)
	}
	matched := make([]string, 0)
	for _, p := range policies {
		if policyMatches(p, subjectAttrs, resourceAttrs, resource, action) {
			matched = append(matched, p.Name)
		}
	}
	if len(matched) > 0 {
		s.log.Debug("abac policies matched", "resource", resource, "action", action, "count", len(matched))
	}
	return len(matched) > 0, matched, nil
}

func policyMatches(p *ABACPolicy, subjectAttrs, resourceAttrs map[string]string, resource, action string) bool {
	if !targetMatches(p.Rules.Permissions.Resource, resource) {
		return false
	}
	if !targetMatches(p.Rules.Permissions.Action, action) {
		return false
	}
	for _, cond := range p.Rules.Conditions {
		if !conditionHolds(cond, subjectAttrs, resourceAttrs) {
			return false
		}
	}
	return true
}

// targetMatches is exact string comparison with a single "*" wildcard form.
func targetMatches(pattern, value string) bool {
	return pattern == "*" || pattern == value
}

// conditionHolds resolves the named attribute (subject first, then
// resource) and applies the operator. A missing attribute and a numeric
// parse failure both evaluate false, never an error: fail closed.
func conditionHolds(cond Condition, subjectAttrs, resourceAttrs map[string]string) bool {
	actual, ok := subjectAttrs[cond.Attribute]
	if !ok {
		actual, ok = resourceAttrs[cond.Attribute]
	}
	if !ok {
		return false
	}
	return compareValues(actual, cond.Operator, cond.Value)
}

func compareValues(actual, operator, expected string) bool {
	switch operator {
	case "equals", "==":
		return actual == expected
	case "!=":
		return actual != expected
	case ">", ">=", "<", "<=":
		a, err := strconv.ParseFloat(actual, 64)
		if err != nil {
			return false
		}
		b, err := strconv.ParseFloat(expected, 64)
		if err != nil {
			return false
		}
		switch operator {
		case ">":
			return a > b
		case ">=":
			return a >= b
		case "<":
			return a < b
		default:
			return a <= b
		}
	case "in":
		return strings.Contains(expected, actual)
	default:
		return false
	}
}

// CreatePolicy stores a policy document; ErrAlreadyExists on a name clash.
func (s *ABAC) CreatePolicy(ctx context.Context, p *ABACPolicy) error {
	if s == nil || s.policies == nil {
		return ErrNotInitialized
	}
	if err := s.policies.CreatePolicy(ctx, p); err != nil {
		return err
	}
	s.log.Info("abac policy created", "name", p.Name, "active", p.Active)
	return nil
}

// GetPolicy fetches a policy by name; ErrNotFound when absent.
func (s *ABAC) GetPolicy(ctx context.Context, name string) (*ABACPolicy, error) {
	if s == nil || s.policies == nil {
		return nil, ErrNotInitialized
	}
	return s.policies.GetPolicy(ctx, name)
}

// ListPolicies returns all policies, optionally only the active ones.
func (s *ABAC) ListPolicies(ctx context.Context, activeOnly bool) ([]*ABACPolicy, error) {
	if s == nil || s.policies == nil {
		return nil, ErrNotInitialized
	}
	return s.policies.ListPolicies(ctx, activeOnly)
}

// DeletePolicy removes a policy by name; ErrNotFound when absent.
func (s *ABAC) DeletePolicy(ctx context.Context, name string) error {
	if s == nil || s.policies == nil {
		return ErrNotInitialized
	}
	if err := s.policies.DeletePolicy(ctx, name); err != nil {
		return err
	}
	s.log.Info("abac policy deleted", "name", name)
	return nil
}

// SetSubjectAttribute upserts a custom subject attribute.
func (s *ABAC) SetSubjectAttribute(ctx context.Context, subjectID, key, value string) error {
	if s == nil || s.attrs == nil {
		return ErrNotInitialized
	}
	return s.attrs.SetSubjectAttribute(ctx, subjectID, key, value)
}

// SetResourceAttribute upserts a resource attribute keyed by type and id.
func (s *ABAC) SetResourceAttribute(ctx context.Context, resourceType, resourceID, key, value string) error {
	if s == nil || s.attrs == nil {
		return ErrNotInitialized
	}
	return s.attrs.SetResourceAttribute(ctx, resourceType, resourceID, key, value)
}
