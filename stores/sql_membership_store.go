package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/orialabs/access"
)

// SQLMembershipStore persists subject-to-group edges in SQL (squealx).
type SQLMembershipStore struct {
	db *squealx.DB
}

func NewSQLMembershipStore(db *squealx.DB) *SQLMembershipStore {
	return &SQLMembershipStore{db: db}
}

func (s *SQLMembershipStore) AddMember(ctx context.Context, subject, group string) error {
	q := `INSERT OR IGNORE INTO membership_edges(subject, group_name, created_at) VALUES(:subject, :group_name, :created_at)`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"subject": subject, "group_name": group, "created_at": time.Now()})
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrAlreadyExists
	}
	return nil
}

func (s *SQLMembershipStore) RemoveMember(ctx context.Context, subject, group string) error {
	q := `DELETE FROM membership_edges WHERE subject = :subject AND group_name = :group_name`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"subject": subject, "group_name": group})
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrNotFound
	}
	return nil
}

func (s *SQLMembershipStore) GroupsOf(ctx context.Context, subject string) ([]string, error) {
	q := `SELECT group_name FROM membership_edges WHERE subject = :subject`
	return s.listColumn(ctx, q, map[string]any{"subject": subject})
}

func (s *SQLMembershipStore) MembersOf(ctx context.Context, group string) ([]string, error) {
	q := `SELECT subject FROM membership_edges WHERE group_name = :group_name`
	return s.listColumn(ctx, q, map[string]any{"group_name": group})
}

func (s *SQLMembershipStore) listColumn(ctx context.Context, q string, args map[string]any) ([]string, error) {
	r, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]string, 0)
	for r.Next() {
		var v string
		if err := r.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
