package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

var thingNodeUpsert = upsertSpec{
	table: "structure_thing_node",
	columns: []string{
		"id", "external_id", "stakeholder_key", "name", "description",
		"parent_external_node_id", "parent_node_id",
		"element_type_external_id", "element_type_id", "meta_data",
	},
	conflictColumns:  []string{"external_id", "stakeholder_key"},
	noUpdateColumns:  []string{"parent_node_id"},
	returningColumns: []string{"id", "external_id", "stakeholder_key"},
}

// UpsertThingNodes stores the whole node list in one bulk statement and
// rewrites parent_node_id pointers in a second pass once all of a batch's
// external ids exist, so a child can be upserted before its parent
// appears later in the same document. The insert always writes
// parent_node_id as NULL: the in-memory value may predate the database's
// stable UUID for an already-persisted parent, and only the rewrite pass
// knows the authoritative one. A node may reference an element type
// absent from elementTypeIDs when it was persisted by an earlier import;
// the fallback lookup resolves those, and a reference found in neither
// place fails the upsert with NotFound.
func (s *Store) UpsertThingNodes(ctx context.Context, tx dbtx, items []model.ThingNode, elementTypeIDs map[model.ExternalKey]uuid.UUID) (map[model.ExternalKey]uuid.UUID, error) {
	if len(items) == 0 {
		return map[model.ExternalKey]uuid.UUID{}, nil
	}

	args := make([]any, 0, len(items)*len(thingNodeUpsert.columns))
	for _, n := range items {
		etKey := model.ExternalKey{StakeholderKey: n.StakeholderKey, ExternalID: n.ElementTypeExternalID}
		elementTypeID, ok := elementTypeIDs[etKey]
		if !ok {
			et, err := s.FetchElementTypeByExternalKey(ctx, tx, etKey)
			if err != nil {
				if se, isStructErr := errs.AsStructureError(err); isStructErr && se.Code == errs.NotFound {
					return nil, errs.New(errs.NotFound,
						"thing node '"+n.ExternalID+"' references element type '"+n.ElementTypeExternalID+"' which exists neither in the document nor in the database")
				}
				return nil, err
			}
			elementTypeID = et.ID
		}

		metaData, err := marshalNullable(n.MetaData)
		if err != nil {
			return nil, err
		}

		args = append(args,
			n.ID.String(), n.ExternalID, n.StakeholderKey, n.Name, n.Description,
			n.ParentExternalNodeID, nil,
			n.ElementTypeExternalID, elementTypeID.String(), metaData,
		)
	}

	query := s.buildBulkUpsert(thingNodeUpsert, len(items))
	ids, err := s.queryReturnedIDs(ctx, tx, query, args)
	if err != nil {
		return nil, err
	}

	if err := s.rewriteThingNodeParentPointers(ctx, tx, items); err != nil {
		return nil, err
	}
	return ids, nil
}

// rewriteThingNodeParentPointers resolves every stored node's
// parent_external_node_id against the (stakeholder_key, external_id)
// already persisted, covering parents that were only upserted after their
// children within the same batch.
func (s *Store) rewriteThingNodeParentPointers(ctx context.Context, tx dbtx, items []model.ThingNode) error {
	update := `UPDATE structure_thing_node SET parent_node_id = (
		SELECT id FROM structure_thing_node AS parent
		WHERE parent.external_id = structure_thing_node.parent_external_node_id
		AND parent.stakeholder_key = structure_thing_node.stakeholder_key
	) WHERE external_id = ` + s.placeholder(1) + ` AND stakeholder_key = ` + s.placeholder(2) + ` AND parent_external_node_id IS NOT NULL`

	for _, n := range items {
		if n.ParentExternalNodeID == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, update, n.ExternalID, n.StakeholderKey); err != nil {
			return classifyDBError(s.dialect, err)
		}
	}
	return nil
}

// FetchThingNodesByIDs batches lookups in chunks of 500 so a single query
// never exceeds typical driver/placeholder-count limits.
func (s *Store) FetchThingNodesByIDs(ctx context.Context, tx dbtx, ids []uuid.UUID) ([]model.ThingNode, error) {
	const batchSize = 500
	var out []model.ThingNode
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.fetchThingNodeBatch(ctx, tx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *Store) fetchThingNodeBatch(ctx context.Context, tx dbtx, ids []uuid.UUID) ([]model.ThingNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = s.placeholder(i + 1)
		args[i] = id.String()
	}
	query := `SELECT id, external_id, stakeholder_key, name, description, parent_node_id, parent_external_node_id, element_type_id, element_type_external_id, meta_data
		FROM structure_thing_node WHERE id IN (` + joinPlaceholders(placeholders) + `)`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDBError(s.dialect, err)
	}
	defer rows.Close()

	var out []model.ThingNode
	for rows.Next() {
		n, err := scanThingNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThingNode(row rowScanner) (model.ThingNode, error) {
	var (
		n                    model.ThingNode
		idStr                string
		elementTypeIDStr     string
		parentNodeIDStr      sql.NullString
		parentExternalNodeID sql.NullString
		metaData             sql.NullString
	)
	if err := row.Scan(&idStr, &n.ExternalID, &n.StakeholderKey, &n.Name, &n.Description,
		&parentNodeIDStr, &parentExternalNodeID, &elementTypeIDStr, &n.ElementTypeExternalID, &metaData); err != nil {
		return n, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return n, err
	}
	n.ID = id
	elementTypeID, err := uuid.Parse(elementTypeIDStr)
	if err != nil {
		return n, err
	}
	n.ElementTypeID = elementTypeID
	if parentNodeIDStr.Valid {
		pid, err := uuid.Parse(parentNodeIDStr.String)
		if err != nil {
			return n, err
		}
		n.ParentNodeID = &pid
	}
	if parentExternalNodeID.Valid {
		n.ParentExternalNodeID = &parentExternalNodeID.String
	}
	if metaData.Valid {
		if err := json.Unmarshal([]byte(metaData.String), &n.MetaData); err != nil {
			return n, err
		}
	}
	return n, nil
}

// marshalNullable encodes meta only when it carries at least one entry,
// so an author-omitted map lands as SQL NULL instead of the literal
// JSON string "null" or "{}".
func marshalNullable(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func joinPlaceholders(placeholders []string) string {
	out := ""
	for i, p := range placeholders {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
