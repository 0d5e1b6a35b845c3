// Package model defines the in-memory entities of the catalog document
// (CompleteStructure) and the per-field invariants each entity enforces on
// its own fields, independent of document-wide invariants (which live in
// the sibling validate package).
package model

import (
	"github.com/google/uuid"
)

// ElementType is a categorical label attached to a ThingNode.
type ElementType struct {
	ID             uuid.UUID `json:"id"`
	ExternalID     string    `json:"external_id"`
	StakeholderKey string    `json:"stakeholder_key"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
}

// ThingNode is an interior or leaf node of the authored hierarchy.
type ThingNode struct {
	ID                    uuid.UUID      `json:"id"`
	ExternalID            string         `json:"external_id"`
	StakeholderKey        string         `json:"stakeholder_key"`
	Name                  string         `json:"name"`
	Description           string         `json:"description"`
	ParentNodeID          *uuid.UUID     `json:"parent_node_id,omitempty"`
	ParentExternalNodeID  *string        `json:"parent_external_node_id,omitempty"`
	ElementTypeID         uuid.UUID      `json:"element_type_id"`
	ElementTypeExternalID string         `json:"element_type_external_id"`
	MetaData              map[string]any `json:"meta_data,omitempty"`
}

// Source references a data-producing endpoint of a backing adapter.
type Source struct {
	ID                   uuid.UUID      `json:"id"`
	ExternalID           string         `json:"external_id"`
	StakeholderKey       string         `json:"stakeholder_key"`
	Name                 string         `json:"name"`
	Type                 ExternalType   `json:"type"`
	Visible              bool           `json:"visible"`
	DisplayPath          string         `json:"display_path"`
	PresetFilters        map[string]any `json:"preset_filters"`
	PassthroughFilters   []Filter       `json:"passthrough_filters,omitempty"`
	AdapterKey           string         `json:"adapter_key"`
	SourceID             string         `json:"source_id"`
	RefKey               *string        `json:"ref_key,omitempty"`
	RefID                string         `json:"ref_id"`
	MetaData             map[string]any `json:"meta_data,omitempty"`
	ThingNodeExternalIDs []string       `json:"thing_node_external_ids,omitempty"`
}

// Sink is the mirror of Source for data-consuming endpoints.
type Sink struct {
	ID                   uuid.UUID      `json:"id"`
	ExternalID           string         `json:"external_id"`
	StakeholderKey       string         `json:"stakeholder_key"`
	Name                 string         `json:"name"`
	Type                 ExternalType   `json:"type"`
	Visible              bool           `json:"visible"`
	DisplayPath          string         `json:"display_path"`
	PresetFilters        map[string]any `json:"preset_filters"`
	PassthroughFilters   []Filter       `json:"passthrough_filters,omitempty"`
	AdapterKey           string         `json:"adapter_key"`
	SinkID               string         `json:"sink_id"`
	RefKey               *string        `json:"ref_key,omitempty"`
	RefID                string         `json:"ref_id"`
	MetaData             map[string]any `json:"meta_data,omitempty"`
	ThingNodeExternalIDs []string       `json:"thing_node_external_ids,omitempty"`
}

// CompleteStructure is the single JSON document authors write.
type CompleteStructure struct {
	ElementTypes []ElementType `json:"element_types"`
	ThingNodes   []ThingNode   `json:"thing_nodes"`
	Sources      []Source      `json:"sources"`
	Sinks        []Sink        `json:"sinks"`
}

// ExternalKey is the author-controlled dual-identity key entities are
// upserted on.
type ExternalKey struct {
	StakeholderKey string
	ExternalID     string
}

func (e ElementType) Key() ExternalKey { return ExternalKey{e.StakeholderKey, e.ExternalID} }
func (n ThingNode) Key() ExternalKey   { return ExternalKey{n.StakeholderKey, n.ExternalID} }
func (s Source) Key() ExternalKey      { return ExternalKey{s.StakeholderKey, s.ExternalID} }
func (s Sink) Key() ExternalKey        { return ExternalKey{s.StakeholderKey, s.ExternalID} }
