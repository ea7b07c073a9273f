package access

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func newTestReBAC() *ReBAC {
	return NewReBAC(NewMemoryRelationshipStore(), nil)
}

func rel(subjectType, subjectID, resourceType, resourceID, parentType, parentID, relType string) *Relationship {
	return &Relationship{
		SubjectType:        subjectType,
		SubjectID:          subjectID,
		ResourceType:       resourceType,
		ResourceID:         resourceID,
		ParentResourceType: parentType,
		ParentResourceID:   parentID,
		RelationshipType:   relType,
	}
}

func TestReBACDirectOwnership(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	_ = rebac.CreateRelationship(ctx, rel("user", "alice", "project", "proj_001", "organization", "org_001", "owner_of"))

	ok, path, err := rebac.Enforce(ctx, "alice", "project:proj_001", "read")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if !ok {
		t.Fatalf("expected direct ownership to grant")
	}
	if len(path) != 1 || !strings.Contains(path[0], "owner_of") {
		t.Fatalf("expected one-hop path, got %v", path)
	}
}

func TestReBACParentChain(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	// admin owns proj_001 (placed under org_001); doc_001 sits under proj_001
	_ = rebac.CreateRelationship(ctx, rel("user", "admin", "project", "proj_001", "organization", "org_001", "owner_of"))
	_ = rebac.CreateRelationship(ctx, rel("resource", "proj_001", "document", "doc_001", "project", "proj_001", "parent_of"))

	ok, path, err := rebac.Enforce(ctx, "admin", "document:doc_001", "read")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if !ok {
		t.Fatalf("expected grant through parent chain")
	}
	if len(path) != 2 {
		t.Fatalf("expected two-hop path, got %v", path)
	}
	if !strings.Contains(path[0], "admin -> owns -> project:proj_001") {
		t.Fatalf("unexpected first hop %q", path[0])
	}
	if !strings.Contains(path[1], "project:proj_001 -> parent_of -> document:doc_001") {
		t.Fatalf("unexpected second hop %q", path[1])
	}

	// a subject with no edges gets a plain negative, no path
	ok, path, err = rebac.Enforce(ctx, "stranger", "document:doc_001", "read")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if ok || path != nil {
		t.Fatalf("expected deny with no path, got ok=%v path=%v", ok, path)
	}
}

func TestReBACBareResourceToken(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	_ = rebac.CreateRelationship(ctx, rel("user", "alice", "resource", "thing_1", "", "", "member_of"))

	ok, _, err := rebac.Enforce(ctx, "alice", "thing_1", "read")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if !ok {
		t.Fatalf("expected bare token to resolve as generic resource type")
	}
}

func TestReBACCycleTerminates(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	// a sits under b, b sits under a: traversal must terminate with a negative
	_ = rebac.CreateRelationship(ctx, rel("resource", "a", "folder", "a", "folder", "b", "parent_of"))
	_ = rebac.CreateRelationship(ctx, rel("resource", "b", "folder", "b", "folder", "a", "parent_of"))

	ok, path, err := rebac.Enforce(ctx, "nobody", "folder:a", "read")
	if err != nil {
		t.Fatalf("cycle must not be an error: %v", err)
	}
	if ok || path != nil {
		t.Fatalf("expected plain negative in cyclic graph, got ok=%v path=%v", ok, path)
	}
}

func TestReBACFlatFallback(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	// "manages" is not a direct-access type and there is no parent chain,
	// so only the flat pass can see it
	_ = rebac.CreateRelationship(ctx, rel("user", "carol", "device", "dev_9", "", "", "manages"))

	ok, path, err := rebac.Enforce(ctx, "carol", "device:dev_9", "configure")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if !ok {
		t.Fatalf("expected flat fallback to grant")
	}
	if path != nil {
		t.Fatalf("flat fallback carries no path, got %v", path)
	}
}

func TestReBACCreateIdempotence(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	edge := rel("user", "alice", "project", "proj_001", "organization", "org_001", "owner_of")

	if err := rebac.CreateRelationship(ctx, edge); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rebac.CreateRelationship(ctx, edge); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	all, _ := rebac.ListRelationships(ctx, RelationshipFilter{})
	if len(all) != 1 {
		t.Fatalf("duplicate create must not add an edge, have %d", len(all))
	}
}

func TestReBACListFilters(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	_ = rebac.CreateRelationship(ctx, rel("user", "alice", "project", "p1", "organization", "o1", "owner_of"))
	_ = rebac.CreateRelationship(ctx, rel("user", "bob", "project", "p2", "organization", "o1", "member_of"))

	got, err := rebac.ListRelationships(ctx, RelationshipFilter{SubjectID: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].SubjectID != "alice" {
		t.Fatalf("unexpected filter result %v", got)
	}

	got, _ = rebac.ListRelationships(ctx, RelationshipFilter{ResourceType: "project"})
	if len(got) != 2 {
		t.Fatalf("expected both project edges, got %d", len(got))
	}
}

func TestReBACDeleteOutcomes(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	edge := rel("user", "alice", "project", "p1", "organization", "o1", "owner_of")

	if err := rebac.DeleteRelationship(ctx, edge); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_ = rebac.CreateRelationship(ctx, edge)
	if err := rebac.DeleteRelationship(ctx, edge); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _, _ := rebac.Enforce(ctx, "alice", "project:p1", "read")
	if ok {
		t.Fatalf("deleted edge must not grant")
	}
}

func TestReBACInheritedPermissions(t *testing.T) {
	ctx := context.Background()
	rebac := newTestReBAC()
	_ = rebac.CreateRelationship(ctx, rel("user", "alice", "project", "p1", "organization", "o1", "owner_of"))
	_ = rebac.CreateRelationship(ctx, rel("resource", "p1", "document", "d1", "project", "p1", "parent_of"))

	perms, err := rebac.InheritedPermissions(ctx, "alice")
	if err != nil {
		t.Fatalf("inherited: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("expected direct + inherited entries, got %v", perms)
	}
	if !perms[0].Direct || perms[0].Resource != "project:p1" {
		t.Fatalf("unexpected direct entry %v", perms[0])
	}
	if perms[1].Direct || perms[1].Resource != "document:d1" {
		t.Fatalf("unexpected inherited entry %v", perms[1])
	}
}
