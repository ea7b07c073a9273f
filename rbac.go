package access

import (
	"context"
	"fmt"

	"github.com/orialabs/access/logger"
)

// RBAC evaluates role-based access: transitive role-membership resolution
// plus direct permission lookup. Enforcement is transitive, listing is not;
// RolesOf/SubjectsOf report direct edges only because administration UIs
// rely on seeing the raw edge set.
type RBAC struct {
	grants  GrantStore
	members MembershipStore
	log     logger.Logger
}

func NewRBAC(grants GrantStore, members MembershipStore, log logger.Logger) *RBAC {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RBAC{grants: grants, members: members, log: log}
}

// Enforce reports whether subject may perform action on resource. It walks
// the membership graph breadth-first from the subject, checking the grant
// set at every group in the closure. The subject itself is part of the
// closure so direct subject-level grants work. A visited set makes
// membership cycles terminate instead of looping.
func (s *RBAC) Enforce(ctx context.Context, subject, resource, action string) (bool, error) {
	if s == nil || s.grants == nil || s.members == nil {
		return false, ErrNotInitialized
	}
	visited := map[string]bool{subject: true}
	queue := []string{subject}
	for len(queue) > 0 {
		group := queue[0]
		queue = queue[1:]

		ok, err := s.grants.HasGrant(ctx, group, resource, action)
		if err != nil {
			return false, fmt.Errorf("rbac: grant lookup for %q: %w", group, err)
		}
		if ok {
			s.log.Debug("rbac grant matched", "subject", subject, "via", group, "resource", resource, "action", action)
			return true, nil
		}

		next, err := s.members.GroupsOf(ctx, group)
		if err != nil {
			return false, fmt.Errorf("rbac: membership lookup for %q: %w", group, err)
		}
		for _, g := range next {
			if !visited[g] {
				visited[g] = true
				queue = append(queue, g)
			}
		}
	}
	return false, nil
}

// GrantRole adds a direct membership edge from subject to role.
// Returns ErrAlreadyExists when the edge is present and ErrSelfLoop when
// subject and role are the same name.
func (s *RBAC) GrantRole(ctx context.Context, subject, role string) error {
	if s == nil || s.members == nil {
		return ErrNotInitialized
	}
	if subject == role {
		return ErrSelfLoop
	}
	if err := s.members.AddMember(ctx, subject, role); err != nil {
		return err
	}
	s.log.Info("role granted", "subject", subject, "role", role)
	return nil
}

// RevokeRole removes a direct membership edge; ErrNotFound when absent.
func (s *RBAC) RevokeRole(ctx context.Context, subject, role string) error {
	if s == nil || s.members == nil {
		return ErrNotInitialized
	}
	if err := s.members.RemoveMember(ctx, subject, role); err != nil {
		return err
	}
	s.log.Info("role revoked", "subject", subject, "role", role)
	return nil
}

// GrantPermission records that role may perform action on resource.
func (s *RBAC) GrantPermission(ctx context.Context, role, resource, action string) error {
	if s == nil || s.grants == nil {
		return ErrNotInitialized
	}
	if err := s.grants.AddGrant(ctx, role, resource, action); err != nil {
		return err
	}
	s.log.Info("permission granted", "role", role, "resource", resource, "action", action)
	return nil
}

// RevokePermission removes a permission grant; ErrNotFound when absent.
func (s *RBAC) RevokePermission(ctx context.Context, role, resource, action string) error {
	if s == nil || s.grants == nil {
		return ErrNotInitialized
	}
	if err := s.grants.RemoveGrant(ctx, role, resource, action); err != nil {
		return err
	}
	s.log.Info("permission revoked", "role", role, "resource", resource, "action", action)
	return nil
}

// RolesOf lists the groups subject is a direct member of.
func (s *RBAC) RolesOf(ctx context.Context, subject string) ([]string, error) {
	if s == nil || s.members == nil {
		return nil, ErrNotInitialized
	}
	return s.members.GroupsOf(ctx, subject)
}

// SubjectsOf lists the direct members of role.
func (s *RBAC) SubjectsOf(ctx context.Context, role string) ([]string, error) {
	if s == nil || s.members == nil {
		return nil, ErrNotInitialized
	}
	return s.members.MembersOf(ctx, role)
}

// PermissionsOf lists the direct grants held by role.
func (s *RBAC) PermissionsOf(ctx context.Context, role string) ([]Grant, error) {
	if s == nil || s.grants == nil {
		return nil, ErrNotInitialized
	}
	return s.grants.GrantsOf(ctx, role)
}
