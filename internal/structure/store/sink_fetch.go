package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
)

// FetchSinksByIDs mirrors FetchSourcesByIDs for the sink side.
func (s *Store) FetchSinksByIDs(ctx context.Context, tx dbtx, ids []uuid.UUID) ([]model.Sink, error) {
	const batchSize = 500
	var out []model.Sink
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.fetchSinkBatch(ctx, tx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *Store) fetchSinkBatch(ctx context.Context, tx dbtx, ids []uuid.UUID) ([]model.Sink, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = s.placeholder(i + 1)
		args[i] = id.String()
	}
	query := `SELECT id, external_id, stakeholder_key, name, type, visible, display_path, adapter_key, sink_id, ref_key, ref_id, meta_data, preset_filters, passthrough_filters, thing_node_external_ids
		FROM structure_sink WHERE id IN (` + joinPlaceholders(placeholders) + `)`
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	var out []model.Sink
	for rows.Next() {
		snk, err := scanSink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snk)
	}
	return out, rows.Err()
}

// SearchSinksByName mirrors SearchSourcesByName for the sink side.
func (s *Store) SearchSinksByName(ctx context.Context, tx dbtx, substr string) ([]model.Sink, error) {
	query := `SELECT id, external_id, stakeholder_key, name, type, visible, display_path, adapter_key, sink_id, ref_key, ref_id, meta_data, preset_filters, passthrough_filters, thing_node_external_ids
		FROM structure_sink WHERE LOWER(name) LIKE LOWER(` + s.placeholder(1) + `) ESCAPE '\'`
	rows, err := tx.QueryContext(ctx, query, "%"+escapeLike(substr)+"%")
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	var out []model.Sink
	for rows.Next() {
		snk, err := scanSink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snk)
	}
	return out, rows.Err()
}

func scanSink(row rowScanner) (model.Sink, error) {
	var (
		snk                  model.Sink
		idStr                string
		typ                  string
		refKey               sql.NullString
		metaData             sql.NullString
		presetFilters        string
		passthroughFilters   sql.NullString
		thingNodeExternalIDs sql.NullString
	)
	if err := row.Scan(&idStr, &snk.ExternalID, &snk.StakeholderKey, &snk.Name, &typ, &snk.Visible, &snk.DisplayPath,
		&snk.AdapterKey, &snk.SinkID, &refKey, &snk.RefID, &metaData, &presetFilters, &passthroughFilters, &thingNodeExternalIDs); err != nil {
		return snk, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return snk, err
	}
	snk.ID = id
	snk.Type = model.ExternalType(typ)
	if refKey.Valid {
		snk.RefKey = &refKey.String
	}
	if metaData.Valid {
		if err := json.Unmarshal([]byte(metaData.String), &snk.MetaData); err != nil {
			return snk, err
		}
	}
	if err := json.Unmarshal([]byte(presetFilters), &snk.PresetFilters); err != nil {
		return snk, err
	}
	if passthroughFilters.Valid {
		if err := json.Unmarshal([]byte(passthroughFilters.String), &snk.PassthroughFilters); err != nil {
			return snk, err
		}
	}
	if thingNodeExternalIDs.Valid {
		if err := json.Unmarshal([]byte(thingNodeExternalIDs.String), &snk.ThingNodeExternalIDs); err != nil {
			return snk, err
		}
	}
	return snk, nil
}
