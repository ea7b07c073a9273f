package access

import (
	"strings"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Subject carries the identity and built-in profile fields of the caller
// requesting access. Custom attributes from the attribute store are merged
// on top of the built-ins at evaluation time.
type Subject struct {
	ID         string `json:"id"`
	Department string `json:"department,omitempty"`
	Level      int    `json:"level,omitempty"`
	Location   string `json:"location,omitempty"`
	Privileged bool   `json:"privileged,omitempty"`
}

// Role is a named permission container referenced by grants and memberships.
type Role struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Grant states that a role may perform an action on a resource.
type Grant struct {
	Role     string `json:"role" yaml:"role"`
	Resource string `json:"resource" yaml:"resource"`
	Action   string `json:"action" yaml:"action"`
}

// Membership is a directed subject-to-group edge. The subject side may itself
// be a group name, which is how role-inherits-role chains are expressed.
type Membership struct {
	Subject string `json:"subject" yaml:"subject"`
	Group   string `json:"group" yaml:"group"`
}

// Condition is a single declarative ABAC rule: attribute OP value.
type Condition struct {
	Attribute string `json:"attribute" yaml:"attribute"`
	Operator  string `json:"operator" yaml:"operator"`
	Value     string `json:"value" yaml:"value"`
}

// PermissionRef names the resource/action pair an ABAC policy applies to.
// A value of "*" matches any resource or action.
type PermissionRef struct {
	Resource string `json:"resource" yaml:"resource"`
	Action   string `json:"action" yaml:"action"`
}

// PolicyRules combines the conditions and the permission target of a policy.
type PolicyRules struct {
	Conditions  []Condition   `json:"conditions" yaml:"conditions"`
	Permissions PermissionRef `json:"permissions" yaml:"permissions"`
}

// ABACPolicy is inert rule data; it owns no side effects until evaluated.
type ABACPolicy struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       PolicyRules `json:"rules" yaml:"rules"`
	Active      bool        `json:"active" yaml:"active"`
	CreatedAt   time.Time   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Relationship encodes two linked facts: a subject's relation to a resource,
// and that resource's placement under a parent resource.
type Relationship struct {
	SubjectType        string `json:"subject_type" yaml:"subject_type"`
	SubjectID          string `json:"subject_id" yaml:"subject_id"`
	ResourceType       string `json:"resource_type" yaml:"resource_type"`
	ResourceID         string `json:"resource_id" yaml:"resource_id"`
	ParentResourceType string `json:"parent_resource_type" yaml:"parent_resource_type"`
	ParentResourceID   string `json:"parent_resource_id" yaml:"parent_resource_id"`
	RelationshipType   string `json:"relationship_type" yaml:"relationship_type"`
}

// RelationshipFilter selects relationship edges; zero fields match anything.
type RelationshipFilter struct {
	SubjectType        string
	SubjectID          string
	ResourceType       string
	ResourceID         string
	ParentResourceType string
	ParentResourceID   string
}

// Matches reports whether the edge satisfies every set field of the filter.
func (f RelationshipFilter) Matches(r *Relationship) bool {
	if f.SubjectType != "" && r.SubjectType != f.SubjectType {
		return false
	}
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if f.ResourceType != "" && r.ResourceType != f.ResourceType {
		return false
	}
	if f.ResourceID != "" && r.ResourceID != f.ResourceID {
		return false
	}
	if f.ParentResourceType != "" && r.ParentResourceType != f.ParentResourceType {
		return false
	}
	if f.ParentResourceID != "" && r.ParentResourceID != f.ParentResourceID {
		return false
	}
	return true
}

// ============================================================================
// VERDICTS
// ============================================================================

// Model names an authorization model in verdict provenance.
type Model string

const (
	ModelRBAC  Model = "RBAC"
	ModelABAC  Model = "ABAC"
	ModelReBAC Model = "ReBAC"
)

// ModelResult is one model's share of a combined verdict.
type ModelResult struct {
	Model   Model  `json:"model"`
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

// Verdict is the aggregator's combined decision plus per-model provenance.
type Verdict struct {
	Granted   bool          `json:"granted"`
	GrantedBy []Model       `json:"granted_by"`
	Results   []ModelResult `json:"results"`
}

// SplitResource parses a compound "type:id" token. A bare token is treated as
// a generic "resource" type.
func SplitResource(resource string) (resourceType, resourceID string) {
	if idx := strings.Index(resource, ":"); idx != -1 {
		return resource[:idx], resource[idx+1:]
	}
	return "resource", resource
}
