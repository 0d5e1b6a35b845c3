package model

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// ParseCompleteStructure decodes a single JSON document into a
// CompleteStructure and assigns internal UUIDs to any entity the author
// left unset (authors do not know these ahead of the first import, the
// same way the source assigns a uuid4 default factory at construction
// time). It does not run document-wide invariant checks; see the sibling
// validate package for that.
func ParseCompleteStructure(data []byte) (*CompleteStructure, error) {
	var cs CompleteStructure
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cs); err != nil {
		return nil, errs.Wrap(errs.ParseError, "structure document is not well-formed JSON", err)
	}
	AssignMissingIDs(&cs)
	return &cs, nil
}

// LoadCompleteStructureFile reads and parses a CompleteStructure from a
// file path, surfacing a NotFound error when the file is absent.
func LoadCompleteStructureFile(path string) (*CompleteStructure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, "structure file not found: "+path, err)
		}
		return nil, errs.Wrap(errs.ParseError, "could not read structure file: "+path, err)
	}
	return ParseCompleteStructure(data)
}

// AssignMissingIDs assigns a fresh internal UUID to any entity the caller
// left unset. ParseCompleteStructure runs this automatically; callers that
// build a CompleteStructure programmatically (bypassing JSON) must call it
// themselves before the document reaches the store, since upserts rely on
// every entity carrying a stable, non-nil id.
func AssignMissingIDs(cs *CompleteStructure) {
	for i := range cs.ElementTypes {
		if cs.ElementTypes[i].ID == uuid.Nil {
			cs.ElementTypes[i].ID = uuid.New()
		}
	}
	for i := range cs.ThingNodes {
		if cs.ThingNodes[i].ID == uuid.Nil {
			cs.ThingNodes[i].ID = uuid.New()
		}
	}
	for i := range cs.Sources {
		if cs.Sources[i].ID == uuid.Nil {
			cs.Sources[i].ID = uuid.New()
		}
		if cs.Sources[i].PresetFilters == nil {
			cs.Sources[i].PresetFilters = map[string]any{}
		}
	}
	for i := range cs.Sinks {
		if cs.Sinks[i].ID == uuid.Nil {
			cs.Sinks[i].ID = uuid.New()
		}
		if cs.Sinks[i].PresetFilters == nil {
			cs.Sinks[i].PresetFilters = map[string]any{}
		}
	}
}
