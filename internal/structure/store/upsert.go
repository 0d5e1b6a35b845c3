package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
)

// upsertSpec describes a bulk upsert against a table keyed on
// (external_id, stakeholder_key). columns must list every column in the
// same order the caller supplies each row's args; returningColumns are
// read back from the rows the database actually stored and must carry
// the external key alongside id, so callers can bind returned ids
// without relying on row order. "id" is never written on conflict, so
// internal UUIDs stay stable across re-imports; noUpdateColumns names
// any further columns excluded from the conflict update (ThingNode
// excludes parent_node_id, rewritten separately once every external id
// in the batch is known).
type upsertSpec struct {
	table            string
	columns          []string
	conflictColumns  []string
	noUpdateColumns  []string
	returningColumns []string
}

// buildBulkUpsert renders the dialect-appropriate multi-row
// "INSERT ... VALUES (...),(...),... ON CONFLICT (...) DO UPDATE SET ...
// RETURNING ..." statement covering rowCount rows, so each entity list is
// stored in a single statement and round trip. Postgres and SQLite
// (3.24+ upsert, 3.35+ RETURNING, both bundled by mattn/go-sqlite3)
// accept near-identical syntax; only the placeholder style differs, so
// one builder serves both dialects.
func (s *Store) buildBulkUpsert(spec upsertSpec, rowCount int) string {
	tuples := make([]string, rowCount)
	n := 1
	for r := 0; r < rowCount; r++ {
		placeholders := make([]string, len(spec.columns))
		for c := range spec.columns {
			placeholders[c] = s.placeholder(n)
			n++
		}
		tuples[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	skip := append([]string{"id"}, spec.conflictColumns...)
	skip = append(skip, spec.noUpdateColumns...)

	updateSet := make([]string, 0, len(spec.columns))
	for _, col := range spec.columns {
		if containsString(skip, col) {
			continue
		}
		updateSet = append(updateSet, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s RETURNING %s",
		spec.table,
		strings.Join(spec.columns, ", "),
		strings.Join(tuples, ", "),
		strings.Join(spec.conflictColumns, ", "),
		strings.Join(updateSet, ", "),
		strings.Join(spec.returningColumns, ", "),
	)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// queryReturnedIDs runs a bulk upsert whose RETURNING clause is
// (id, external_id, stakeholder_key) and collects the post-upsert
// internal UUID for every row, keyed by external identity.
func (s *Store) queryReturnedIDs(ctx context.Context, q dbtx, query string, args []any) (map[model.ExternalKey]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	ids := make(map[model.ExternalKey]uuid.UUID)
	for rows.Next() {
		var idStr, externalID, stakeholderKey string
		if err := rows.Scan(&idStr, &externalID, &stakeholderKey); err != nil {
			return nil, classifyDBError(s.dialect, err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		ids[model.ExternalKey{StakeholderKey: stakeholderKey, ExternalID: externalID}] = id
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	return ids, nil
}
