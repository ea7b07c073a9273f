package access

import (
	"context"
	"errors"
	"testing"
)

func newTestRBAC() *RBAC {
	return NewRBAC(NewMemoryGrantStore(), NewMemoryMembershipStore(), nil)
}

func TestRBACMembershipChain(t *testing.T) {
	ctx := context.Background()
	rbac := newTestRBAC()

	// alice -> team -> dept -> org, grant on org
	_ = rbac.GrantRole(ctx, "alice", "team")
	_ = rbac.GrantRole(ctx, "team", "dept")
	_ = rbac.GrantRole(ctx, "dept", "org")
	_ = rbac.GrantPermission(ctx, "org", "documents", "read")

	ok, err := rbac.Enforce(ctx, "alice", "documents", "read")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if !ok {
		t.Fatalf("expected allow through three-level chain")
	}

	// breaking any link makes it false
	if err := rbac.RevokeRole(ctx, "team", "dept"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = rbac.Enforce(ctx, "alice", "documents", "read")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if ok {
		t.Fatalf("expected deny after chain break")
	}
}

func TestRBACDirectSubjectGrant(t *testing.T) {
	ctx := context.Background()
	rbac := newTestRBAC()

	_ = rbac.GrantPermission(ctx, "bob", "files", "write")
	ok, err := rbac.Enforce(ctx, "bob", "files", "write")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if !ok {
		t.Fatalf("expected allow via direct subject-level grant")
	}
}

func TestRBACMembershipCycleTerminates(t *testing.T) {
	ctx := context.Background()
	rbac := newTestRBAC()

	_ = rbac.GrantRole(ctx, "a", "b")
	_ = rbac.GrantRole(ctx, "b", "a")

	ok, err := rbac.Enforce(ctx, "a", "documents", "read")
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if ok {
		t.Fatalf("expected deny, no grant anywhere in cycle")
	}

	roles, err := rbac.RolesOf(ctx, "a")
	if err != nil {
		t.Fatalf("roles of: %v", err)
	}
	if len(roles) != 1 || roles[0] != "b" {
		t.Fatalf("expected direct membership [b], got %v", roles)
	}
}

func TestRBACListingIsDirectOnly(t *testing.T) {
	ctx := context.Background()
	rbac := newTestRBAC()

	_ = rbac.GrantRole(ctx, "alice", "editor")
	_ = rbac.GrantRole(ctx, "editor", "viewer")

	roles, _ := rbac.RolesOf(ctx, "alice")
	if len(roles) != 1 || roles[0] != "editor" {
		t.Fatalf("RolesOf must list direct edges only, got %v", roles)
	}
	subjects, _ := rbac.SubjectsOf(ctx, "viewer")
	if len(subjects) != 1 || subjects[0] != "editor" {
		t.Fatalf("SubjectsOf must list direct edges only, got %v", subjects)
	}
}

func TestRBACAdminOutcomes(t *testing.T) {
	ctx := context.Background()
	rbac := newTestRBAC()

	if err := rbac.RevokeRole(ctx, "nobody", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for revoking never-granted role, got %v", err)
	}
	if err := rbac.GrantRole(ctx, "alice", "editor"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := rbac.GrantRole(ctx, "alice", "editor"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate grant, got %v", err)
	}
	if err := rbac.GrantRole(ctx, "editor", "editor"); !errors.Is(err, ErrSelfLoop) {
		t.Fatalf("expected ErrSelfLoop, got %v", err)
	}

	if err := rbac.GrantPermission(ctx, "editor", "documents", "write"); err != nil {
		t.Fatalf("grant permission: %v", err)
	}
	if err := rbac.GrantPermission(ctx, "editor", "documents", "write"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate permission, got %v", err)
	}
	if err := rbac.RevokePermission(ctx, "editor", "documents", "delete"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent permission, got %v", err)
	}

	grants, err := rbac.PermissionsOf(ctx, "editor")
	if err != nil {
		t.Fatalf("permissions of: %v", err)
	}
	if len(grants) != 1 || grants[0].Resource != "documents" || grants[0].Action != "write" {
		t.Fatalf("unexpected grants %v", grants)
	}
}

func TestRBACNotInitialized(t *testing.T) {
	var rbac *RBAC
	if _, err := rbac.Enforce(context.Background(), "a", "b", "c"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
