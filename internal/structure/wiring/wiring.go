// Package wiring implements the wiring resolver: it rewrites the
// input/output wirings of an executing workflow that reference the
// virtual structure catalog into wirings that point at the underlying
// backing adapter, merging preset filters with caller-supplied filters.
package wiring

import (
	"context"

	"github.com/google/uuid"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// VirtualStructureAdapterID marks a wiring as one this subsystem must
// resolve before execution.
const VirtualStructureAdapterID = "virtual-structure-adapter"

// RefIDTypeThingNode is the ref_id_type rewritten onto a metadata(any)
// wiring once resolved.
const RefIDTypeThingNode = "THINGNODE"

const metadataAnyType = "metadata(any)"

// Wiring is a single binding from a workflow's input or output slot to a
// concrete endpoint.
type Wiring struct {
	Name      string         `json:"name,omitempty"`
	AdapterID string         `json:"adapter_id"`
	RefID     string         `json:"ref_id"`
	RefKey    *string        `json:"ref_key,omitempty"`
	RefIDType string         `json:"ref_id_type,omitempty"`
	Type      string         `json:"type"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// WorkflowWiring is the pair of lists a workflow execution resolves.
type WorkflowWiring struct {
	InputWirings  []Wiring `json:"input_wirings"`
	OutputWirings []Wiring `json:"output_wirings"`
}

// Fetcher is the minimal persistence surface the resolver needs; it is
// satisfied by *service.Service without importing it directly, avoiding an
// import cycle between the service and wiring packages.
type Fetcher interface {
	FetchSourcesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Source, error)
	FetchSinksByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Sink, error)
}

// Resolve rewrites wf's wirings in place. Wirings whose adapter_id is not
// VirtualStructureAdapterID pass through unchanged. Any referenced source
// or sink that cannot be bulk-fetched fails the whole resolution.
func Resolve(ctx context.Context, fetcher Fetcher, wf *WorkflowWiring) error {
	inputRefs, err := collectRefs(wf.InputWirings)
	if err != nil {
		return err
	}
	outputRefs, err := collectRefs(wf.OutputWirings)
	if err != nil {
		return err
	}

	if len(inputRefs) > 0 {
		sources, err := fetcher.FetchSourcesByIDs(ctx, uniqueIDs(inputRefs))
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]model.Source, len(sources))
		for _, s := range sources {
			byID[s.ID] = s
		}
		for idx, id := range inputRefs {
			src, ok := byID[id]
			if !ok {
				return errs.New(errs.AdapterHandlingError,
					"Atleast one source or sink referenced in the wirings was not found.")
			}
			applySource(&wf.InputWirings[idx], src)
		}
	}

	if len(outputRefs) > 0 {
		sinks, err := fetcher.FetchSinksByIDs(ctx, uniqueIDs(outputRefs))
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]model.Sink, len(sinks))
		for _, s := range sinks {
			byID[s.ID] = s
		}
		for idx, id := range outputRefs {
			snk, ok := byID[id]
			if !ok {
				return errs.New(errs.AdapterHandlingError,
					"Atleast one source or sink referenced in the wirings was not found.")
			}
			applySink(&wf.OutputWirings[idx], snk)
		}
	}

	return nil
}

// collectRefs scans wirings for virtual-structure-adapter entries and
// parses their ref_id as an internal UUID, keyed by list index. A wiring
// whose ref_id is not a well-formed UUID is treated as an unresolved
// reference and fails resolution immediately, the same as a UUID that
// simply isn't present in the database.
func collectRefs(wirings []Wiring) (map[int]uuid.UUID, error) {
	out := make(map[int]uuid.UUID)
	for i := range wirings {
		if wirings[i].AdapterID != VirtualStructureAdapterID {
			continue
		}
		id, err := uuid.Parse(wirings[i].RefID)
		if err != nil {
			return nil, errs.New(errs.AdapterHandlingError,
				"Atleast one source or sink referenced in the wirings was not found.")
		}
		out[i] = id
	}
	return out, nil
}

func uniqueIDs(refs map[int]uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(refs))
	out := make([]uuid.UUID, 0, len(refs))
	for _, id := range refs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// applySource rewrites w in place against the resolved backing source.
func applySource(w *Wiring, src model.Source) {
	w.AdapterID = src.AdapterKey
	if w.Type == metadataAnyType {
		w.RefID = src.RefID
		w.RefKey = src.RefKey
		w.RefIDType = RefIDTypeThingNode
	} else {
		w.RefID = src.SourceID
	}
	w.Filters = mergeFilters(w.Filters, src.PresetFilters)
}

// applySink mirrors applySource for the output side.
func applySink(w *Wiring, snk model.Sink) {
	w.AdapterID = snk.AdapterKey
	if w.Type == metadataAnyType {
		w.RefID = snk.RefID
		w.RefKey = snk.RefKey
		w.RefIDType = RefIDTypeThingNode
	} else {
		w.RefID = snk.SinkID
	}
	w.Filters = mergeFilters(w.Filters, snk.PresetFilters)
}

// mergeFilters implements the filter merge law: caller filters overlaid
// with preset filters, preset values winning on key collision.
func mergeFilters(callerFilters, presetFilters map[string]any) map[string]any {
	out := make(map[string]any, len(callerFilters)+len(presetFilters))
	for k, v := range callerFilters {
		out[k] = v
	}
	for k, v := range presetFilters {
		out[k] = v
	}
	return out
}
