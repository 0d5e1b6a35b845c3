// Package service is the Structure Service façade: it orchestrates
// validation, sorting, and the persistence layer behind a small set of
// public operations, and answers the tree-browsing queries the HTTP
// frontend depends on.
package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	srtsort "github.com/nimbusgraph/vstructure/internal/structure/sort"
	"github.com/nimbusgraph/vstructure/internal/structure/store"
	"github.com/nimbusgraph/vstructure/internal/structure/validate"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// Service is the public façade of the virtual structure subsystem.
type Service struct {
	store *store.Store
}

func New(st *store.Store) *Service {
	return &Service{store: st}
}

// LoadFromJSONFile parses and validates a CompleteStructure from disk,
// without touching the database.
func (s *Service) LoadFromJSONFile(path string) (*model.CompleteStructure, error) {
	cs, err := model.LoadCompleteStructureFile(path)
	if err != nil {
		return nil, err
	}
	if err := validate.Validate(cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// UpdateStructure validates cs and, in a single transaction, upserts
// ElementTypes, sorts and upserts ThingNodes, then upserts Sources and
// Sinks. It never deletes entities absent from cs; callers wanting a
// clean slate must call DeleteStructure first.
func (s *Service) UpdateStructure(ctx context.Context, cs *model.CompleteStructure) error {
	if err := validate.Validate(cs); err != nil {
		return err
	}
	model.AssignMissingIDs(cs)
	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		elementTypeIDs, err := s.store.UpsertElementTypes(ctx, tx, cs.ElementTypes)
		if err != nil {
			return err
		}

		sortedNodes := srtsort.SortThingNodes(cs.ThingNodes)
		thingNodeIDs, err := s.store.UpsertThingNodes(ctx, tx, sortedNodes, elementTypeIDs)
		if err != nil {
			return err
		}

		if err := s.store.UpsertSources(ctx, tx, cs.Sources, thingNodeIDs); err != nil {
			return err
		}
		if err := s.store.UpsertSinks(ctx, tx, cs.Sinks, thingNodeIDs); err != nil {
			return err
		}
		return nil
	})
}

// DeleteStructure wipes every structure table in one transaction.
func (s *Service) DeleteStructure(ctx context.Context) error {
	return s.store.WithTx(ctx, func(tx *sql.Tx) error {
		return s.store.DeleteAll(ctx, tx)
	})
}

// AreStructureTablesEmpty reports whether every structure table holds zero
// rows.
func (s *Service) AreStructureTablesEmpty(ctx context.Context) (bool, error) {
	return s.store.AreTablesEmpty(ctx, s.store.Conn())
}

// Children is the result of GetChildren: the ThingNodes directly under a
// parent (or every root, when no parent was given) plus the Sources and
// Sinks attached to that specific parent node.
type Children struct {
	ThingNodes []model.ThingNode
	Sources    []model.Source
	Sinks      []model.Sink
}

// GetChildren returns what is directly beneath parentID. A nil parentID
// returns every root ThingNode with empty source/sink lists. A non-nil
// parentID that does not resolve to an existing ThingNode fails with
// NotFound.
func (s *Service) GetChildren(ctx context.Context, parentID *uuid.UUID) (*Children, error) {
	conn := s.store.Conn()

	if parentID == nil {
		rootIDs, err := s.store.ChildThingNodeIDs(ctx, conn, nil)
		if err != nil {
			return nil, err
		}
		nodes, err := s.store.FetchThingNodesByIDs(ctx, conn, rootIDs)
		if err != nil {
			return nil, err
		}
		return &Children{ThingNodes: nodes}, nil
	}

	exists, err := s.store.ThingNodeExists(ctx, conn, *parentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.New(errs.NotFound, "no StructureServiceThingNode found with id "+parentID.String())
	}

	childIDs, err := s.store.ChildThingNodeIDs(ctx, conn, parentID)
	if err != nil {
		return nil, err
	}
	childNodes, err := s.store.FetchThingNodesByIDs(ctx, conn, childIDs)
	if err != nil {
		return nil, err
	}

	sourceIDs, err := s.store.AssociatedSourceIDs(ctx, conn, *parentID)
	if err != nil {
		return nil, err
	}
	sources, err := s.store.FetchSourcesByIDs(ctx, conn, sourceIDs)
	if err != nil {
		return nil, err
	}

	sinkIDs, err := s.store.AssociatedSinkIDs(ctx, conn, *parentID)
	if err != nil {
		return nil, err
	}
	sinks, err := s.store.FetchSinksByIDs(ctx, conn, sinkIDs)
	if err != nil {
		return nil, err
	}

	return &Children{ThingNodes: childNodes, Sources: sources, Sinks: sinks}, nil
}

// GetThingNode fetches a single ThingNode by internal id.
func (s *Service) GetThingNode(ctx context.Context, id uuid.UUID) (*model.ThingNode, error) {
	nodes, err := s.store.FetchThingNodesByIDs(ctx, s.store.Conn(), []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, errs.New(errs.NotFound, "no StructureServiceThingNode found with id "+id.String())
	}
	return &nodes[0], nil
}

// GetSource fetches a single Source by internal id.
func (s *Service) GetSource(ctx context.Context, id uuid.UUID) (*model.Source, error) {
	items, err := s.store.FetchSourcesByIDs(ctx, s.store.Conn(), []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errs.New(errs.NotFound, "no StructureServiceSource found with id "+id.String())
	}
	return &items[0], nil
}

// GetSink fetches a single Sink by internal id.
func (s *Service) GetSink(ctx context.Context, id uuid.UUID) (*model.Sink, error) {
	items, err := s.store.FetchSinksByIDs(ctx, s.store.Conn(), []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errs.New(errs.NotFound, "no StructureServiceSink found with id "+id.String())
	}
	return &items[0], nil
}

// SearchSources performs a case-insensitive substring search by name.
func (s *Service) SearchSources(ctx context.Context, substr string) ([]model.Source, error) {
	return s.store.SearchSourcesByName(ctx, s.store.Conn(), substr)
}

// SearchSinks mirrors SearchSources for sinks.
func (s *Service) SearchSinks(ctx context.Context, substr string) ([]model.Sink, error) {
	return s.store.SearchSinksByName(ctx, s.store.Conn(), substr)
}

// FetchSourcesByIDs and FetchSinksByIDs are exposed directly for bulk
// wiring-resolution lookups, which need no sort/validate orchestration.
func (s *Service) FetchSourcesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Source, error) {
	return s.store.FetchSourcesByIDs(ctx, s.store.Conn(), ids)
}

func (s *Service) FetchSinksByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Sink, error) {
	return s.store.FetchSinksByIDs(ctx, s.store.Conn(), ids)
}
