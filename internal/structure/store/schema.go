package store

import "context"

// schemaStatements is dialect-neutral: UUIDs are stored as TEXT in both
// backends, so one DDL file serves both dialects and the only
// dialect-specific SQL left is the upsert statement builder.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS structure_element_type (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL,
		stakeholder_key TEXT NOT NULL,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		UNIQUE(external_id, stakeholder_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_element_type_stakeholder_external ON structure_element_type(stakeholder_key, external_id)`,

	`CREATE TABLE IF NOT EXISTS structure_thing_node (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL,
		stakeholder_key TEXT NOT NULL,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		parent_external_node_id TEXT,
		parent_node_id TEXT REFERENCES structure_thing_node(id),
		element_type_external_id TEXT NOT NULL,
		element_type_id TEXT NOT NULL REFERENCES structure_element_type(id),
		meta_data TEXT,
		UNIQUE(external_id, stakeholder_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_thing_node_stakeholder_external ON structure_thing_node(stakeholder_key, external_id)`,

	`CREATE TABLE IF NOT EXISTS structure_source (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL,
		stakeholder_key TEXT NOT NULL,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		visible BOOLEAN NOT NULL,
		display_path TEXT NOT NULL,
		adapter_key TEXT NOT NULL,
		source_id TEXT NOT NULL,
		ref_key TEXT,
		ref_id TEXT NOT NULL,
		meta_data TEXT,
		preset_filters TEXT NOT NULL,
		passthrough_filters TEXT,
		thing_node_external_ids TEXT,
		UNIQUE(external_id, stakeholder_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_source_stakeholder_external ON structure_source(stakeholder_key, external_id)`,

	`CREATE TABLE IF NOT EXISTS structure_sink (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL,
		stakeholder_key TEXT NOT NULL,
		name TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		visible BOOLEAN NOT NULL,
		display_path TEXT NOT NULL,
		adapter_key TEXT NOT NULL,
		sink_id TEXT NOT NULL,
		ref_key TEXT,
		ref_id TEXT NOT NULL,
		meta_data TEXT,
		preset_filters TEXT NOT NULL,
		passthrough_filters TEXT,
		thing_node_external_ids TEXT,
		UNIQUE(external_id, stakeholder_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sink_stakeholder_external ON structure_sink(stakeholder_key, external_id)`,

	`CREATE TABLE IF NOT EXISTS structure_thingnode_source_association (
		thingnode_id TEXT NOT NULL REFERENCES structure_thing_node(id),
		source_id TEXT NOT NULL REFERENCES structure_source(id),
		PRIMARY KEY (thingnode_id, source_id)
	)`,
	`CREATE TABLE IF NOT EXISTS structure_thingnode_sink_association (
		thingnode_id TEXT NOT NULL REFERENCES structure_thing_node(id),
		sink_id TEXT NOT NULL REFERENCES structure_sink(id),
		PRIMARY KEY (thingnode_id, sink_id)
	)`,
}

// EnsureSchema creates all six tables and their indexes if absent. Safe to
// call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classifyDBError(s.dialect, err)
		}
	}
	return nil
}
