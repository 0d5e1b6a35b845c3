package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
)

var elementTypeUpsert = upsertSpec{
	table:            "structure_element_type",
	columns:          []string{"id", "external_id", "stakeholder_key", "name", "description"},
	conflictColumns:  []string{"external_id", "stakeholder_key"},
	returningColumns: []string{"id", "external_id", "stakeholder_key"},
}

// UpsertElementTypes stores the whole element type list in one bulk
// statement, returning the resolved UUID for each entry keyed by its
// (stakeholder_key, external_id) pair.
func (s *Store) UpsertElementTypes(ctx context.Context, tx dbtx, items []model.ElementType) (map[model.ExternalKey]uuid.UUID, error) {
	if len(items) == 0 {
		return map[model.ExternalKey]uuid.UUID{}, nil
	}
	args := make([]any, 0, len(items)*len(elementTypeUpsert.columns))
	for _, et := range items {
		args = append(args, et.ID.String(), et.ExternalID, et.StakeholderKey, et.Name, et.Description)
	}
	query := s.buildBulkUpsert(elementTypeUpsert, len(items))
	return s.queryReturnedIDs(ctx, tx, query, args)
}

// FetchElementTypeByExternalKey looks up a single element type by its
// author-controlled key.
func (s *Store) FetchElementTypeByExternalKey(ctx context.Context, tx dbtx, key model.ExternalKey) (*model.ElementType, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, external_id, stakeholder_key, name, description FROM structure_element_type WHERE external_id = `+s.placeholder(1)+` AND stakeholder_key = `+s.placeholder(2),
		key.ExternalID, key.StakeholderKey)

	var (
		idStr string
		et    model.ElementType
		desc  sql.NullString
	)
	if err := row.Scan(&idStr, &et.ExternalID, &et.StakeholderKey, &et.Name, &desc); err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	et.ID = id
	if desc.Valid {
		et.Description = &desc.String
	}
	return &et, nil
}
