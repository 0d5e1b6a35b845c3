package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
)

var sourceUpsert = upsertSpec{
	table: "structure_source",
	columns: []string{
		"id", "external_id", "stakeholder_key", "name", "type", "visible", "display_path",
		"adapter_key", "source_id", "ref_key", "ref_id", "meta_data",
		"preset_filters", "passthrough_filters", "thing_node_external_ids",
	},
	conflictColumns:  []string{"external_id", "stakeholder_key"},
	returningColumns: []string{"id", "external_id", "stakeholder_key"},
}

var sinkUpsert = upsertSpec{
	table: "structure_sink",
	columns: []string{
		"id", "external_id", "stakeholder_key", "name", "type", "visible", "display_path",
		"adapter_key", "sink_id", "ref_key", "ref_id", "meta_data",
		"preset_filters", "passthrough_filters", "thing_node_external_ids",
	},
	conflictColumns:  []string{"external_id", "stakeholder_key"},
	returningColumns: []string{"id", "external_id", "stakeholder_key"},
}

// UpsertSources stores the whole source list in one bulk statement, then
// rebuilds each source's ThingNode associations against the returned
// ids. A thing_node_external_id that does not resolve against
// thingNodeIDs is silently dropped from the association rebuild rather
// than failing the whole upsert; validation has already rejected any
// document where that could happen.
func (s *Store) UpsertSources(ctx context.Context, tx dbtx, items []model.Source, thingNodeIDs map[model.ExternalKey]uuid.UUID) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]any, 0, len(items)*len(sourceUpsert.columns))
	for _, src := range items {
		presetFilters, err := marshalRequired(src.PresetFilters)
		if err != nil {
			return err
		}
		passthroughFilters, err := marshalFilters(src.PassthroughFilters)
		if err != nil {
			return err
		}
		thingNodeExtIDs, err := marshalStrings(src.ThingNodeExternalIDs)
		if err != nil {
			return err
		}
		args = append(args,
			src.ID.String(), src.ExternalID, src.StakeholderKey, src.Name, string(src.Type), src.Visible, src.DisplayPath,
			src.AdapterKey, src.SourceID, src.RefKey, src.RefID, marshalMetaOrNil(src.MetaData),
			presetFilters, passthroughFilters, thingNodeExtIDs,
		)
	}

	query := s.buildBulkUpsert(sourceUpsert, len(items))
	ids, err := s.queryReturnedIDs(ctx, tx, query, args)
	if err != nil {
		return err
	}

	for _, src := range items {
		id, ok := ids[src.Key()]
		if !ok {
			return classifyDBError(s.dialect, fmt.Errorf("upsert returned no row for source %q", src.ExternalID))
		}
		if err := s.rebuildAssociations(ctx, tx, "structure_thingnode_source_association", "source_id", id, src.StakeholderKey, src.ThingNodeExternalIDs, thingNodeIDs); err != nil {
			return err
		}
	}
	return nil
}

// UpsertSinks mirrors UpsertSources for the sink side.
func (s *Store) UpsertSinks(ctx context.Context, tx dbtx, items []model.Sink, thingNodeIDs map[model.ExternalKey]uuid.UUID) error {
	if len(items) == 0 {
		return nil
	}
	args := make([]any, 0, len(items)*len(sinkUpsert.columns))
	for _, snk := range items {
		presetFilters, err := marshalRequired(snk.PresetFilters)
		if err != nil {
			return err
		}
		passthroughFilters, err := marshalFilters(snk.PassthroughFilters)
		if err != nil {
			return err
		}
		thingNodeExtIDs, err := marshalStrings(snk.ThingNodeExternalIDs)
		if err != nil {
			return err
		}
		args = append(args,
			snk.ID.String(), snk.ExternalID, snk.StakeholderKey, snk.Name, string(snk.Type), snk.Visible, snk.DisplayPath,
			snk.AdapterKey, snk.SinkID, snk.RefKey, snk.RefID, marshalMetaOrNil(snk.MetaData),
			presetFilters, passthroughFilters, thingNodeExtIDs,
		)
	}

	query := s.buildBulkUpsert(sinkUpsert, len(items))
	ids, err := s.queryReturnedIDs(ctx, tx, query, args)
	if err != nil {
		return err
	}

	for _, snk := range items {
		id, ok := ids[snk.Key()]
		if !ok {
			return classifyDBError(s.dialect, fmt.Errorf("upsert returned no row for sink %q", snk.ExternalID))
		}
		if err := s.rebuildAssociations(ctx, tx, "structure_thingnode_sink_association", "sink_id", id, snk.StakeholderKey, snk.ThingNodeExternalIDs, thingNodeIDs); err != nil {
			return err
		}
	}
	return nil
}

// rebuildAssociations deletes every association row for entityID in
// associationTable and re-inserts one row per external id that resolves
// against thingNodeIDs within the same stakeholder.
func (s *Store) rebuildAssociations(ctx context.Context, tx dbtx, associationTable, entityColumn string, entityID uuid.UUID, stakeholderKey string, thingNodeExternalIDs []string, thingNodeIDs map[model.ExternalKey]uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+associationTable+" WHERE "+entityColumn+" = "+s.placeholder(1),
		entityID.String()); err != nil {
		return classifyDBError(s.dialect, err)
	}

	insert := "INSERT INTO " + associationTable + " (thingnode_id, " + entityColumn + ") VALUES (" + s.placeholder(1) + ", " + s.placeholder(2) + ")"
	for _, extID := range thingNodeExternalIDs {
		tnID, ok := thingNodeIDs[model.ExternalKey{StakeholderKey: stakeholderKey, ExternalID: extID}]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, insert, tnID.String(), entityID.String()); err != nil {
			return classifyDBError(s.dialect, err)
		}
	}
	return nil
}

// FetchSourcesByIDs batches lookups in chunks of 500.
func (s *Store) FetchSourcesByIDs(ctx context.Context, tx dbtx, ids []uuid.UUID) ([]model.Source, error) {
	const batchSize = 500
	var out []model.Source
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.fetchSourceBatch(ctx, tx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *Store) fetchSourceBatch(ctx context.Context, tx dbtx, ids []uuid.UUID) ([]model.Source, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = s.placeholder(i + 1)
		args[i] = id.String()
	}
	query := `SELECT id, external_id, stakeholder_key, name, type, visible, display_path, adapter_key, source_id, ref_key, ref_id, meta_data, preset_filters, passthrough_filters, thing_node_external_ids
		FROM structure_source WHERE id IN (` + joinPlaceholders(placeholders) + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// SearchSourcesByName performs a case-insensitive substring search over
// source names, escaping the caller's query so literal % and _ characters
// in a name are matched literally rather than as LIKE wildcards.
func (s *Store) SearchSourcesByName(ctx context.Context, tx dbtx, substr string) ([]model.Source, error) {
	query := `SELECT id, external_id, stakeholder_key, name, type, visible, display_path, adapter_key, source_id, ref_key, ref_id, meta_data, preset_filters, passthrough_filters, thing_node_external_ids
		FROM structure_source WHERE LOWER(name) LIKE LOWER(` + s.placeholder(1) + `) ESCAPE '\'`
	rows, err := tx.QueryContext(ctx, query, "%"+escapeLike(substr)+"%")
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func scanSource(row rowScanner) (model.Source, error) {
	var (
		src                  model.Source
		idStr                string
		typ                  string
		refKey               sql.NullString
		metaData             sql.NullString
		presetFilters        string
		passthroughFilters   sql.NullString
		thingNodeExternalIDs sql.NullString
	)
	if err := row.Scan(&idStr, &src.ExternalID, &src.StakeholderKey, &src.Name, &typ, &src.Visible, &src.DisplayPath,
		&src.AdapterKey, &src.SourceID, &refKey, &src.RefID, &metaData, &presetFilters, &passthroughFilters, &thingNodeExternalIDs); err != nil {
		return src, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return src, err
	}
	src.ID = id
	src.Type = model.ExternalType(typ)
	if refKey.Valid {
		src.RefKey = &refKey.String
	}
	if metaData.Valid {
		if err := json.Unmarshal([]byte(metaData.String), &src.MetaData); err != nil {
			return src, err
		}
	}
	if err := json.Unmarshal([]byte(presetFilters), &src.PresetFilters); err != nil {
		return src, err
	}
	if passthroughFilters.Valid {
		if err := json.Unmarshal([]byte(passthroughFilters.String), &src.PassthroughFilters); err != nil {
			return src, err
		}
	}
	if thingNodeExternalIDs.Valid {
		if err := json.Unmarshal([]byte(thingNodeExternalIDs.String), &src.ThingNodeExternalIDs); err != nil {
			return src, err
		}
	}
	return src, nil
}

func marshalRequired(v map[string]any) (string, error) {
	if v == nil {
		v = map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalFilters(filters []model.Filter) (any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(filters)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalStrings(ids []string) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalMetaOrNil(meta map[string]any) any {
	if len(meta) == 0 {
		return nil
	}
	b, _ := json.Marshal(meta)
	return string(b)
}
