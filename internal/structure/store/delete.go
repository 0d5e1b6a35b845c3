package store

import "context"

// deleteStatements wipe every structure table in an order that respects
// foreign keys: associations first, then the entities they reference.
// Parent pointers are nulled out before the node delete because the
// self-referential FK is checked per row and the delete order within one
// statement is unspecified.
var deleteStatements = []string{
	"DELETE FROM structure_thingnode_source_association",
	"DELETE FROM structure_thingnode_sink_association",
	"DELETE FROM structure_source",
	"DELETE FROM structure_sink",
	"UPDATE structure_thing_node SET parent_node_id = NULL",
	"DELETE FROM structure_thing_node",
	"DELETE FROM structure_element_type",
}

// DeleteAll wipes every structure table inside the caller-controlled
// transaction tx. The Structure Service's DeleteStructure runs it in a
// transaction of its own, separate from any later upsert sequence.
func (s *Store) DeleteAll(ctx context.Context, tx dbtx) error {
	for _, stmt := range deleteStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return classifyDBError(s.dialect, err)
		}
	}
	return nil
}

// AreTablesEmpty reports whether every structure table holds zero rows.
func (s *Store) AreTablesEmpty(ctx context.Context, tx dbtx) (bool, error) {
	tables := []string{
		"structure_element_type", "structure_thing_node",
		"structure_source", "structure_sink",
		"structure_thingnode_source_association", "structure_thingnode_sink_association",
	}
	for _, table := range tables {
		var count int
		row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
		if err := row.Scan(&count); err != nil {
			return false, classifyDBError(s.dialect, err)
		}
		if count > 0 {
			return false, nil
		}
	}
	return true, nil
}
