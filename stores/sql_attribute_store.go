package stores

import (
	"context"

	"github.com/oarkflow/squealx"
)

// SQLAttributeStore persists subject and resource attributes in SQL
// (squealx) with upsert semantics.
type SQLAttributeStore struct {
	db *squealx.DB
}

func NewSQLAttributeStore(db *squealx.DB) *SQLAttributeStore {
	return &SQLAttributeStore{db: db}
}

func (s *SQLAttributeStore) SetSubjectAttribute(ctx context.Context, subjectID, key, value string) error {
	q := `INSERT INTO subject_attributes(subject_id, attr_key, attr_value) VALUES(:subject_id, :attr_key, :attr_value)
		ON CONFLICT(subject_id, attr_key) DO UPDATE SET attr_value = excluded.attr_value`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"subject_id": subjectID, "attr_key": key, "attr_value": value})
	return err
}

func (s *SQLAttributeStore) SubjectAttributes(ctx context.Context, subjectID string) (map[string]string, error) {
	q := `SELECT attr_key, attr_value FROM subject_attributes WHERE subject_id = :subject_id`
	return s.listAttrs(ctx, q, map[string]any{"subject_id": subjectID})
}

func (s *SQLAttributeStore) SetResourceAttribute(ctx context.Context, resourceType, resourceID, key, value string) error {
	q := `INSERT INTO resource_attributes(resource_type, resource_id, attr_key, attr_value) VALUES(:resource_type, :resource_id, :attr_key, :attr_value)
		ON CONFLICT(resource_type, resource_id, attr_key) DO UPDATE SET attr_value = excluded.attr_value`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"resource_type": resourceType, "resource_id": resourceID, "attr_key": key, "attr_value": value})
	return err
}

func (s *SQLAttributeStore) ResourceAttributes(ctx context.Context, resourceType, resourceID string) (map[string]string, error) {
	q := `SELECT attr_key, attr_value FROM resource_attributes WHERE resource_type = :resource_type AND resource_id = :resource_id`
	return s.listAttrs(ctx, q, map[string]any{"resource_type": resourceType, "resource_id": resourceID})
}

func (s *SQLAttributeStore) listAttrs(ctx context.Context, q string, args map[string]any) (map[string]string, error) {
	r, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make(map[string]string)
	for r.Next() {
		var k, v string
		if err := r.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
