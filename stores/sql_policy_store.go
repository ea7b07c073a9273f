package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/orialabs/access"
)

// SQLPolicyStore persists ABAC policy documents in SQL (squealx). Rules are
// stored as a JSON column; the document is opaque to the database.
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) CreatePolicy(ctx context.Context, p *access.ABACPolicy) error {
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return err
	}
	q := `INSERT OR IGNORE INTO abac_policies(name, description, rules_json, active, created_at) VALUES(:name, :description, :rules_json, :active, :created_at)`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"name":        p.Name,
		"description": p.Description,
		"rules_json":  string(rules),
		"active":      boolToInt(p.Active),
		"created_at":  time.Now(),
	})
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrAlreadyExists
	}
	return nil
}

func (s *SQLPolicyStore) GetPolicy(ctx context.Context, name string) (*access.ABACPolicy, error) {
	q := `SELECT name, description, rules_json, active, created_at FROM abac_policies WHERE name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, err
		}
		return nil, access.ErrNotFound
	}
	return scanPolicy(r)
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context, activeOnly bool) ([]*access.ABACPolicy, error) {
	q := `SELECT name, description, rules_json, active, created_at FROM abac_policies ORDER BY created_at, name`
	if activeOnly {
		q = `SELECT name, description, rules_json, active, created_at FROM abac_policies WHERE active = 1 ORDER BY created_at, name`
	}
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.ABACPolicy, 0)
	for r.Next() {
		p, err := scanPolicy(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, name string) error {
	q := `DELETE FROM abac_policies WHERE name = :name`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(r rowScanner) (*access.ABACPolicy, error) {
	var name, rulesJSON string
	var description, createdRaw any
	var active int
	if err := r.Scan(&name, &description, &rulesJSON, &active, &createdRaw); err != nil {
		return nil, err
	}
	p := &access.ABACPolicy{Name: name, Active: active != 0}
	switch d := description.(type) {
	case string:
		p.Description = d
	case []byte:
		p.Description = string(d)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &p.Rules); err != nil {
		return nil, err
	}
	switch v := createdRaw.(type) {
	case time.Time:
		p.CreatedAt = v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			p.CreatedAt = t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			p.CreatedAt = t
		}
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
