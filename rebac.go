package access

import (
	"context"
	"fmt"

	"github.com/orialabs/access/logger"
)

// directAccessTypes are relationship types that terminate a path on a
// direct subject-to-resource edge. The traversal does not interpret the
// rest of the vocabulary.
var directAccessTypes = map[string]bool{
	"owner_of":  true,
	"member_of": true,
}

// ReBAC evaluates relationship-based access by traversing subject-to-resource
// and resource-to-parent edges. Cycles terminate the affected branch, they
// are never an error.
type ReBAC struct {
	rels RelationshipStore
	log  logger.Logger
}

func NewReBAC(rels RelationshipStore, log logger.Logger) *ReBAC {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &ReBAC{rels: rels, log: log}
}

// InheritedPermission describes a resource reachable through relationships.
type InheritedPermission struct {
	Resource     string `json:"resource"`
	Relationship string `json:"relationship"`
	Direct       bool   `json:"direct"`
}

// Enforce reports whether subject reaches resource through the relationship
// graph, with the path taken. Resource may be a compound "type:id" token or
// a bare token treated as type "resource".
//
// Order: direct edge with a direct-access type, then ancestor-chain search,
// then a best-effort flat pass over the same edges treated as plain
// grouping facts. A missing path is a normal negative, not a failure.
func (s *ReBAC) Enforce(ctx context.Context, subject, resource, action string) (bool, []string, error) {
	if s == nil || s.rels == nil {
		return false, nil, ErrNotInitialized
	}
	resourceType, resourceID := SplitResource(resource)

	direct, err := s.rels.ListRelationships(ctx, RelationshipFilter{SubjectType: "user", SubjectID: subject})
	if err != nil {
		return false, nil, fmt.Errorf("rebac: direct edges for %q: %w", subject, err)
	}
	for _, rel := range direct {
		if rel.ResourceType == resourceType && rel.ResourceID == resourceID && directAccessTypes[rel.RelationshipType] {
			path := []string{fmt.Sprintf("%s -> %s -> %s:%s", subject, rel.RelationshipType, resourceType, resourceID)}
			return true, path, nil
		}
	}

	path, err := s.findPermissionPath(ctx, subject, resourceType, resourceID, map[string]bool{})
	if err != nil {
		return false, nil, err
	}
	if path != nil {
		s.log.Debug("rebac path found", "subject", subject, "resource", resource, "hops", len(path))
		return true, path, nil
	}

	ok, err := s.enforceFlat(ctx, subject, resourceType, resourceID)
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, nil, nil
	}
	return false, nil, nil
}

// findPermissionPath ascends the parent chain of the target. At each node it
// enumerates edges where the node is the child side; if the subject holds a
// direct edge to the parent the two-hop path is returned, otherwise the
// parent becomes the new child. Revisiting a node ends that branch.
func (s *ReBAC) findPermissionPath(ctx context.Context, subject, resourceType, resourceID string, visited map[string]bool) ([]string, error) {
	key := resourceType + ":" + resourceID
	if visited[key] {
		return nil, nil
	}
	visited[key] = true

	rels, err := s.rels.ListRelationships(ctx, RelationshipFilter{ResourceType: resourceType, ResourceID: resourceID})
	if err != nil {
		return nil, fmt.Errorf("rebac: edges of %s: %w", key, err)
	}
	for _, rel := range rels {
		if rel.ParentResourceType == "" && rel.ParentResourceID == "" {
			continue
		}
		parentKey := rel.ParentResourceType + ":" + rel.ParentResourceID

		held, err := s.rels.ListRelationships(ctx, RelationshipFilter{
			SubjectType:  "user",
			SubjectID:    subject,
			ResourceType: rel.ParentResourceType,
			ResourceID:   rel.ParentResourceID,
		})
		if err != nil {
			return nil, fmt.Errorf("rebac: subject edges to %s: %w", parentKey, err)
		}
		if len(held) > 0 {
			return []string{
				fmt.Sprintf("%s -> owns -> %s", subject, parentKey),
				fmt.Sprintf("%s -> %s -> %s", parentKey, rel.RelationshipType, key),
			}, nil
		}

		parentPath, err := s.findPermissionPath(ctx, subject, rel.ParentResourceType, rel.ParentResourceID, visited)
		if err != nil {
			return nil, err
		}
		if parentPath != nil {
			return append(parentPath, fmt.Sprintf("%s -> %s -> %s", parentKey, rel.RelationshipType, key)), nil
		}
	}
	return nil, nil
}

// enforceFlat treats relationship edges as plain grouping facts: it walks
// the target's ancestor set and succeeds on any subject edge of any type to
// any node in it. Covers relationships not expressible as parent chains.
func (s *ReBAC) enforceFlat(ctx context.Context, subject, resourceType, resourceID string) (bool, error) {
	type node struct{ resourceType, resourceID string }
	visited := map[string]bool{}
	queue := []node{{resourceType, resourceID}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		key := cur.resourceType + ":" + cur.resourceID
		if visited[key] {
			continue
		}
		visited[key] = true

		held, err := s.rels.ListRelationships(ctx, RelationshipFilter{
			SubjectType:  "user",
			SubjectID:    subject,
			ResourceType: cur.resourceType,
			ResourceID:   cur.resourceID,
		})
		if err != nil {
			return false, fmt.Errorf("rebac: flat check at %s: %w", key, err)
		}
		if len(held) > 0 {
			s.log.Debug("rebac flat match", "subject", subject, "node", key)
			return true, nil
		}

		edges, err := s.rels.ListRelationships(ctx, RelationshipFilter{ResourceType: cur.resourceType, ResourceID: cur.resourceID})
		if err != nil {
			return false, fmt.Errorf("rebac: ancestors of %s: %w", key, err)
		}
		for _, rel := range edges {
			if rel.ParentResourceType == "" && rel.ParentResourceID == "" {
				continue
			}
			queue = append(queue, node{rel.ParentResourceType, rel.ParentResourceID})
		}
	}
	return false, nil
}

// InheritedPermissions lists the resources subject can reach: its direct
// relationships plus the child resources placed under them.
func (s *ReBAC) InheritedPermissions(ctx context.Context, subject string) ([]InheritedPermission, error) {
	if s == nil || s.rels == nil {
		return nil, ErrNotInitialized
	}
	direct, err := s.rels.ListRelationships(ctx, RelationshipFilter{SubjectType: "user", SubjectID: subject})
	if err != nil {
		return nil, fmt.Errorf("rebac: direct edges for %q: %w", subject, err)
	}
	out := make([]InheritedPermission, 0, len(direct))
	for _, rel := range direct {
		out = append(out, InheritedPermission{
			Resource:     rel.ResourceType + ":" + rel.ResourceID,
			Relationship: rel.RelationshipType,
			Direct:       true,
		})
		children, err := s.rels.ListRelationships(ctx, RelationshipFilter{
			ParentResourceType: rel.ResourceType,
			ParentResourceID:   rel.ResourceID,
		})
		if err != nil {
			return nil, fmt.Errorf("rebac: children of %s:%s: %w", rel.ResourceType, rel.ResourceID, err)
		}
		for _, child := range children {
			out = append(out, InheritedPermission{
				Resource:     child.ResourceType + ":" + child.ResourceID,
				Relationship: "inherited via " + rel.RelationshipType,
				Direct:       false,
			})
		}
	}
	return out, nil
}

// CreateRelationship registers an edge; an identical edge is rejected with
// ErrAlreadyExists so traversal never sees duplicate paths.
func (s *ReBAC) CreateRelationship(ctx context.Context, r *Relationship) error {
	if s == nil || s.rels == nil {
		return ErrNotInitialized
	}
	if err := s.rels.CreateRelationship(ctx, r); err != nil {
		return err
	}
	s.log.Info("relationship created",
		"subject", r.SubjectType+":"+r.SubjectID,
		"resource", r.ResourceType+":"+r.ResourceID,
		"type", r.RelationshipType)
	return nil
}

// ListRelationships returns edges matching the filter.
func (s *ReBAC) ListRelationships(ctx context.Context, f RelationshipFilter) ([]*Relationship, error) {
	if s == nil || s.rels == nil {
		return nil, ErrNotInitialized
	}
	return s.rels.ListRelationships(ctx, f)
}

// DeleteRelationship removes an edge; ErrNotFound when absent.
func (s *ReBAC) DeleteRelationship(ctx context.Context, r *Relationship) error {
	if s == nil || s.rels == nil {
		return ErrNotInitialized
	}
	if err := s.rels.DeleteRelationship(ctx, r); err != nil {
		return err
	}
	s.log.Info("relationship deleted",
		"subject", r.SubjectType+":"+r.SubjectID,
		"resource", r.ResourceType+":"+r.ResourceID,
		"type", r.RelationshipType)
	return nil
}
