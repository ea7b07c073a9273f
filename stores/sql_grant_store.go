package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/orialabs/access"
)

// SQLGrantStore persists permission grants in SQL (squealx).
type SQLGrantStore struct {
	db *squealx.DB
}

func NewSQLGrantStore(db *squealx.DB) *SQLGrantStore {
	return &SQLGrantStore{db: db}
}

func (s *SQLGrantStore) AddGrant(ctx context.Context, role, resource, action string) error {
	q := `INSERT OR IGNORE INTO permission_grants(role, resource, action, created_at) VALUES(:role, :resource, :action, :created_at)`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"role": role, "resource": resource, "action": action, "created_at": time.Now()})
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrAlreadyExists
	}
	return nil
}

func (s *SQLGrantStore) RemoveGrant(ctx context.Context, role, resource, action string) error {
	q := `DELETE FROM permission_grants WHERE role = :role AND resource = :resource AND action = :action`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"role": role, "resource": resource, "action": action})
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrNotFound
	}
	return nil
}

func (s *SQLGrantStore) HasGrant(ctx context.Context, role, resource, action string) (bool, error) {
	q := `SELECT 1 FROM permission_grants WHERE role = :role AND resource = :resource AND action = :action`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role": role, "resource": resource, "action": action})
	if err != nil {
		return false, err
	}
	defer r.Close()
	found := r.Next()
	if err := r.Err(); err != nil {
		return false, err
	}
	return found, nil
}

func (s *SQLGrantStore) GrantsOf(ctx context.Context, role string) ([]access.Grant, error) {
	q := `SELECT resource, action FROM permission_grants WHERE role = :role`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role": role})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]access.Grant, 0)
	for r.Next() {
		var resource, action string
		if err := r.Scan(&resource, &action); err != nil {
			return nil, err
		}
		out = append(out, access.Grant{Role: role, Resource: resource, Action: action})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
