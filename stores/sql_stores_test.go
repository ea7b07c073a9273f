package stores

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/oarkflow/squealx"
	_ "modernc.org/sqlite"

	"github.com/orialabs/access"
)

func newTestDB(t *testing.T) *squealx.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSQLGrantStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLGrantStore(newTestDB(t))

	if err := store.AddGrant(ctx, "editor", "document:doc_1", "write"); err != nil {
		t.Fatalf("add grant: %v", err)
	}
	if err := store.AddGrant(ctx, "editor", "document:doc_1", "write"); !errors.Is(err, access.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	ok, err := store.HasGrant(ctx, "editor", "document:doc_1", "write")
	if err != nil || !ok {
		t.Fatalf("has grant: ok=%v err=%v", ok, err)
	}
	ok, _ = store.HasGrant(ctx, "editor", "document:doc_1", "delete")
	if ok {
		t.Fatalf("absent grant must not hold")
	}

	_ = store.AddGrant(ctx, "editor", "document:doc_2", "read")
	grants, err := store.GrantsOf(ctx, "editor")
	if err != nil {
		t.Fatalf("grants of: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}

	if err := store.RemoveGrant(ctx, "editor", "document:doc_1", "write"); err != nil {
		t.Fatalf("remove grant: %v", err)
	}
	if err := store.RemoveGrant(ctx, "editor", "document:doc_1", "write"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLStoreFailureIsNotADenial(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db := squealx.NewDb(sqlDB, "sqlite", "testdb")
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	grants := NewSQLGrantStore(db)
	members := NewSQLMembershipStore(db)
	_ = grants.AddGrant(ctx, "editor", "document:doc_1", "write")
	sqlDB.Close()

	if _, err := grants.HasGrant(ctx, "editor", "document:doc_1", "write"); err == nil {
		t.Fatalf("read on failed store must error, not report false")
	}
	if _, err := grants.GrantsOf(ctx, "editor"); err == nil {
		t.Fatalf("listing on failed store must error, not come back short")
	}
	if _, err := members.GroupsOf(ctx, "anyone"); err == nil {
		t.Fatalf("listing on failed store must error, not come back empty")
	}
}

func TestSQLMembershipStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLMembershipStore(newTestDB(t))

	if err := store.AddMember(ctx, "alice", "editors"); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if err := store.AddMember(ctx, "alice", "editors"); !errors.Is(err, access.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	_ = store.AddMember(ctx, "alice", "reviewers")
	_ = store.AddMember(ctx, "bob", "editors")

	groups, err := store.GroupsOf(ctx, "alice")
	if err != nil {
		t.Fatalf("groups of: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %v", groups)
	}
	members, err := store.MembersOf(ctx, "editors")
	if err != nil {
		t.Fatalf("members of: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %v", members)
	}

	if err := store.RemoveMember(ctx, "alice", "editors"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := store.RemoveMember(ctx, "alice", "editors"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLAttributeStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewSQLAttributeStore(newTestDB(t))

	if err := store.SetSubjectAttribute(ctx, "alice", "clearance", "secret"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// same key overwrites, never duplicates
	if err := store.SetSubjectAttribute(ctx, "alice", "clearance", "top-secret"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	attrs, err := store.SubjectAttributes(ctx, "alice")
	if err != nil {
		t.Fatalf("subject attrs: %v", err)
	}
	if len(attrs) != 1 || attrs["clearance"] != "top-secret" {
		t.Fatalf("unexpected attrs %v", attrs)
	}

	if err := store.SetResourceAttribute(ctx, "document", "doc_1", "visibility", "internal"); err != nil {
		t.Fatalf("set resource: %v", err)
	}
	rattrs, err := store.ResourceAttributes(ctx, "document", "doc_1")
	if err != nil {
		t.Fatalf("resource attrs: %v", err)
	}
	if rattrs["visibility"] != "internal" {
		t.Fatalf("unexpected attrs %v", rattrs)
	}
	empty, err := store.ResourceAttributes(ctx, "document", "doc_missing")
	if err != nil {
		t.Fatalf("missing resource: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty map, got %v", empty)
	}
}

func TestSQLPolicyStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLPolicyStore(newTestDB(t))

	p := &access.ABACPolicy{
		Name:        "eng_access",
		Description: "engineering reads documents",
		Rules: access.PolicyRules{
			Conditions: []access.Condition{
				{Attribute: "department", Operator: "equals", Value: "Engineering"},
				{Attribute: "level", Operator: ">=", Value: "3"},
			},
			Permissions: access.PermissionRef{Resource: "documents", Action: "read"},
		},
		Active: true,
	}
	if err := store.CreatePolicy(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreatePolicy(ctx, p); !errors.Is(err, access.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.GetPolicy(ctx, "eng_access")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Description != p.Description || !got.Active {
		t.Fatalf("unexpected policy %+v", got)
	}
	if len(got.Rules.Conditions) != 2 || got.Rules.Permissions.Resource != "documents" {
		t.Fatalf("rules did not survive storage: %+v", got.Rules)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at must be set")
	}

	inactive := &access.ABACPolicy{Name: "dormant", Active: false}
	_ = store.CreatePolicy(ctx, inactive)

	all, err := store.ListPolicies(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(all))
	}
	active, err := store.ListPolicies(ctx, true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Name != "eng_access" {
		t.Fatalf("unexpected active set %v", active)
	}

	if err := store.DeletePolicy(ctx, "eng_access"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeletePolicy(ctx, "eng_access"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetPolicy(ctx, "eng_access"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on get, got %v", err)
	}
}

func TestSQLRelationshipStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLRelationshipStore(newTestDB(t))

	edge := &access.Relationship{
		SubjectType:        "user",
		SubjectID:          "admin",
		ResourceType:       "project",
		ResourceID:         "proj_001",
		ParentResourceType: "organization",
		ParentResourceID:   "org_001",
		RelationshipType:   "owner_of",
	}
	if err := store.CreateRelationship(ctx, edge); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateRelationship(ctx, edge); !errors.Is(err, access.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	_ = store.CreateRelationship(ctx, &access.Relationship{
		SubjectType:      "resource",
		SubjectID:        "proj_001",
		ResourceType:     "document",
		ResourceID:       "doc_001",
		RelationshipType: "parent_of",
	})

	got, err := store.ListRelationships(ctx, access.RelationshipFilter{SubjectType: "user", SubjectID: "admin"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].RelationshipType != "owner_of" {
		t.Fatalf("unexpected edges %v", got)
	}
	all, _ := store.ListRelationships(ctx, access.RelationshipFilter{})
	if len(all) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(all))
	}

	if err := store.DeleteRelationship(ctx, edge); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteRelationship(ctx, edge); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
