package httpapi

import (
	"github.com/nimbusgraph/vstructure/internal/structure/model"
)

// thingNodeDTO is the wire shape GET /thingNodes/{id} and GET /structure
// answer with.
type thingNodeDTO struct {
	ID          string  `json:"id"`
	ParentID    *string `json:"parentId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

func newThingNodeDTO(n model.ThingNode) thingNodeDTO {
	var parentID *string
	if n.ParentNodeID != nil {
		s := n.ParentNodeID.String()
		parentID = &s
	}
	return thingNodeDTO{
		ID:          n.ID.String(),
		ParentID:    parentID,
		Name:        n.Name,
		Description: n.Description,
	}
}

// sourceSinkDTO is the shared wire shape for Source and Sink. thingNodeId
// is deliberately populated with the endpoint's own internal id rather
// than a parent ThingNode id, preserving the observed wire shape.
type sourceSinkDTO struct {
	ID          string                  `json:"id"`
	ThingNodeID string                  `json:"thingNodeId"`
	Name        string                  `json:"name"`
	Type        model.ExternalType      `json:"type"`
	Visible     bool                    `json:"visible"`
	Path        string                  `json:"path"`
	MetadataKey *string                 `json:"metadataKey"`
	Filters     map[string]model.Filter `json:"filters"`
}

func newSourceDTO(s model.Source) sourceSinkDTO {
	return sourceSinkDTO{
		ID:          s.ID.String(),
		ThingNodeID: s.ID.String(),
		Name:        s.Name,
		Type:        s.Type,
		Visible:     true,
		Path:        s.DisplayPath,
		MetadataKey: s.RefKey,
		Filters:     filterMap(s.PassthroughFilters),
	}
}

func newSinkDTO(s model.Sink) sourceSinkDTO {
	return sourceSinkDTO{
		ID:          s.ID.String(),
		ThingNodeID: s.ID.String(),
		Name:        s.Name,
		Type:        s.Type,
		Visible:     true,
		Path:        s.DisplayPath,
		MetadataKey: s.RefKey,
		Filters:     filterMap(s.PassthroughFilters),
	}
}

func filterMap(filters []model.Filter) map[string]model.Filter {
	out := make(map[string]model.Filter, len(filters))
	for _, f := range filters {
		out[f.InternalName] = f
	}
	return out
}

// structureDTO is the GET /structure response envelope: the requested
// node (nil fields when listing roots) plus its direct children.
type structureDTO struct {
	ID         *string         `json:"id"`
	Name       *string         `json:"name"`
	ThingNodes []thingNodeDTO  `json:"thingNodes"`
	Sources    []sourceSinkDTO `json:"sources"`
	Sinks      []sourceSinkDTO `json:"sinks"`
}

func newThingNodeDTOs(nodes []model.ThingNode) []thingNodeDTO {
	out := make([]thingNodeDTO, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, newThingNodeDTO(n))
	}
	return out
}

func newSourceDTOs(sources []model.Source) []sourceSinkDTO {
	out := make([]sourceSinkDTO, 0, len(sources))
	for _, s := range sources {
		out = append(out, newSourceDTO(s))
	}
	return out
}

func newSinkDTOs(sinks []model.Sink) []sourceSinkDTO {
	out := make([]sourceSinkDTO, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, newSinkDTO(s))
	}
	return out
}
