package stores

import (
	"context"
	"strings"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/orialabs/access"
)

// SQLRelationshipStore persists relationship edges in SQL (squealx). The
// table is the single logical edge set the traversal scans; creating an
// edge is all the registration there is.
type SQLRelationshipStore struct {
	db *squealx.DB
}

func NewSQLRelationshipStore(db *squealx.DB) *SQLRelationshipStore {
	return &SQLRelationshipStore{db: db}
}

func relArgs(r *access.Relationship) map[string]any {
	return map[string]any{
		"subject_type":         r.SubjectType,
		"subject_id":           r.SubjectID,
		"resource_type":        r.ResourceType,
		"resource_id":          r.ResourceID,
		"parent_resource_type": r.ParentResourceType,
		"parent_resource_id":   r.ParentResourceID,
		"relationship_type":    r.RelationshipType,
	}
}

func (s *SQLRelationshipStore) CreateRelationship(ctx context.Context, r *access.Relationship) error {
	q := `INSERT OR IGNORE INTO relationship_edges(subject_type, subject_id, resource_type, resource_id, parent_resource_type, parent_resource_id, relationship_type, created_at)
		VALUES(:subject_type, :subject_id, :resource_type, :resource_id, :parent_resource_type, :parent_resource_id, :relationship_type, :created_at)`
	args := relArgs(r)
	args["created_at"] = time.Now()
	res, err := s.db.NamedExecContext(ctx, q, args)
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrAlreadyExists
	}
	return nil
}

func (s *SQLRelationshipStore) ListRelationships(ctx context.Context, f access.RelationshipFilter) ([]*access.Relationship, error) {
	conds := make([]string, 0, 6)
	args := map[string]any{}
	add := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = :"+column)
			args[column] = value
		}
	}
	add("subject_type", f.SubjectType)
	add("subject_id", f.SubjectID)
	add("resource_type", f.ResourceType)
	add("resource_id", f.ResourceID)
	add("parent_resource_type", f.ParentResourceType)
	add("parent_resource_id", f.ParentResourceID)

	q := `SELECT subject_type, subject_id, resource_type, resource_id, parent_resource_type, parent_resource_id, relationship_type FROM relationship_edges`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	r, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*access.Relationship, 0)
	for r.Next() {
		rel := &access.Relationship{}
		if err := r.Scan(&rel.SubjectType, &rel.SubjectID, &rel.ResourceType, &rel.ResourceID, &rel.ParentResourceType, &rel.ParentResourceID, &rel.RelationshipType); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLRelationshipStore) DeleteRelationship(ctx context.Context, r *access.Relationship) error {
	q := `DELETE FROM relationship_edges WHERE subject_type = :subject_type AND subject_id = :subject_id AND resource_type = :resource_type AND resource_id = :resource_id AND parent_resource_type = :parent_resource_type AND parent_resource_id = :parent_resource_id AND relationship_type = :relationship_type`
	res, err := s.db.NamedExecContext(ctx, q, relArgs(r))
	if err != nil {
		return err
	}
	if affected(res) == 0 {
		return access.ErrNotFound
	}
	return nil
}
