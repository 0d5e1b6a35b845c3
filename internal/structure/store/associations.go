package store

import (
	"context"

	"github.com/google/uuid"
)

// AssociatedSourceIDs returns the sources attached to a thing node.
func (s *Store) AssociatedSourceIDs(ctx context.Context, tx dbtx, thingNodeID uuid.UUID) ([]uuid.UUID, error) {
	return s.associatedIDs(ctx, tx, "structure_thingnode_source_association", "source_id", thingNodeID)
}

// AssociatedSinkIDs returns the sinks attached to a thing node.
func (s *Store) AssociatedSinkIDs(ctx context.Context, tx dbtx, thingNodeID uuid.UUID) ([]uuid.UUID, error) {
	return s.associatedIDs(ctx, tx, "structure_thingnode_sink_association", "sink_id", thingNodeID)
}

func (s *Store) associatedIDs(ctx context.Context, tx dbtx, table, column string, thingNodeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+column+" FROM "+table+" WHERE thingnode_id = "+s.placeholder(1),
		thingNodeID.String())
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ChildThingNodeIDs returns the direct children of parentID, or every root
// node (parent_node_id IS NULL) when parentID is nil.
func (s *Store) ChildThingNodeIDs(ctx context.Context, tx dbtx, parentID *uuid.UUID) ([]uuid.UUID, error) {
	var (
		rows interface {
			Next() bool
			Scan(...any) error
			Err() error
			Close() error
		}
		err error
	)
	if parentID == nil {
		rows, err = tx.QueryContext(ctx, "SELECT id FROM structure_thing_node WHERE parent_node_id IS NULL")
	} else {
		rows, err = tx.QueryContext(ctx, "SELECT id FROM structure_thing_node WHERE parent_node_id = "+s.placeholder(1), parentID.String())
	}
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ThingNodeExists reports whether id is present, used by GetChildren to
// distinguish "no children" from "no such node".
func (s *Store) ThingNodeExists(ctx context.Context, tx dbtx, id uuid.UUID) (bool, error) {
	var count int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM structure_thing_node WHERE id = "+s.placeholder(1), id.String())
	if err := row.Scan(&count); err != nil {
		return false, classifyDBError(s.dialect, err)
	}
	return count > 0, nil
}
