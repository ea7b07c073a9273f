package access

import "context"

// ============================================================================
// STORAGE INTERFACES
// ============================================================================
//
// The policy store is split into five rule sets. Each interface is an
// independently queryable and independently lockable unit: implementations
// guard each rule set with its own lock or transaction boundary, so
// mutations on unrelated rule sets never serialize against each other.
// A mutation must be durable before the call returns nil.

// GrantStore holds (role, resource, action) permission grants.
type GrantStore interface {
	AddGrant(ctx context.Context, role, resource, action string) error
	RemoveGrant(ctx context.Context, role, resource, action string) error
	HasGrant(ctx context.Context, role, resource, action string) (bool, error)
	GrantsOf(ctx context.Context, role string) ([]Grant, error)
}

// MembershipStore holds directed subject-to-group edges.
type MembershipStore interface {
	AddMember(ctx context.Context, subject, group string) error
	RemoveMember(ctx context.Context, subject, group string) error
	// GroupsOf and MembersOf list direct edges only; enforcement computes
	// the transitive closure itself.
	GroupsOf(ctx context.Context, subject string) ([]string, error)
	MembersOf(ctx context.Context, group string) ([]string, error)
}

// AttributeStore holds subject and resource key/value attributes with
// upsert semantics: same key overwrites, never duplicates.
type AttributeStore interface {
	SetSubjectAttribute(ctx context.Context, subjectID, key, value string) error
	SubjectAttributes(ctx context.Context, subjectID string) (map[string]string, error)
	SetResourceAttribute(ctx context.Context, resourceType, resourceID, key, value string) error
	ResourceAttributes(ctx context.Context, resourceType, resourceID string) (map[string]string, error)
}

// PolicyStore holds declarative ABAC policy documents keyed by name.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, p *ABACPolicy) error
	GetPolicy(ctx context.Context, name string) (*ABACPolicy, error)
	ListPolicies(ctx context.Context, activeOnly bool) ([]*ABACPolicy, error)
	DeletePolicy(ctx context.Context, name string) error
}

// RelationshipStore holds ReBAC relationship edges.
type RelationshipStore interface {
	// CreateRelationship rejects an identical edge with ErrAlreadyExists so
	// the traversal index never holds duplicate paths.
	CreateRelationship(ctx context.Context, r *Relationship) error
	ListRelationships(ctx context.Context, f RelationshipFilter) ([]*Relationship, error)
	DeleteRelationship(ctx context.Context, r *Relationship) error
}
