package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	"github.com/nimbusgraph/vstructure/internal/structure/service"
	"github.com/nimbusgraph/vstructure/pkg/config"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

const adapterID = "virtual-structure-adapter"
const adapterVersion = "1.0.0"

type api struct {
	cfg *config.Config
	svc *service.Service
}

func (a *api) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      adapterID,
		"name":    "Virtual Structure Adapter",
		"version": adapterVersion,
	})
}

func (a *api) handleGetStructure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := strings.TrimSpace(r.URL.Query().Get("parentId"))

	var parentID *uuid.UUID
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeStructureError(w, errs.New(errs.ParseError, "parentId is not a well-formed UUID"), requestID(r))
			return
		}
		parentID = &id
	}

	children, err := a.svc.GetChildren(ctx, parentID)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}

	resp := structureDTO{
		ThingNodes: newThingNodeDTOs(children.ThingNodes),
		Sources:    newSourceDTOs(children.Sources),
		Sinks:      newSinkDTOs(children.Sinks),
	}
	if parentID != nil {
		parent, err := a.svc.GetThingNode(ctx, *parentID)
		if err != nil {
			writeStructureError(w, err, requestID(r))
			return
		}
		idStr := parent.ID.String()
		resp.ID = &idStr
		resp.Name = &parent.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleGetThingNode(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDVar(r)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	node, err := a.svc.GetThingNode(r.Context(), id)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	writeJSON(w, http.StatusOK, newThingNodeDTO(*node))
}

func (a *api) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []any{})
}

func (a *api) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDVar(r)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	src, err := a.svc.GetSource(r.Context(), id)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	writeJSON(w, http.StatusOK, newSourceDTO(*src))
}

func (a *api) handleGetSink(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDVar(r)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	snk, err := a.svc.GetSink(r.Context(), id)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	writeJSON(w, http.StatusOK, newSinkDTO(*snk))
}

// searchResult is the GET /sources and GET /sinks response envelope.
type searchResult struct {
	ResultCount int             `json:"resultCount"`
	Sources     []sourceSinkDTO `json:"sources,omitempty"`
	Sinks       []sourceSinkDTO `json:"sinks,omitempty"`
}

func (a *api) handleSearchSources(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("filter"))
	if filter == "" {
		writeJSON(w, http.StatusOK, searchResult{ResultCount: 0, Sources: []sourceSinkDTO{}})
		return
	}
	sources, err := a.svc.SearchSources(r.Context(), filter)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	dtos := newSourceDTOs(sources)
	writeJSON(w, http.StatusOK, searchResult{ResultCount: len(dtos), Sources: dtos})
}

func (a *api) handleSearchSinks(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("filter"))
	if filter == "" {
		writeJSON(w, http.StatusOK, searchResult{ResultCount: 0, Sinks: []sourceSinkDTO{}})
		return
	}
	sinks, err := a.svc.SearchSinks(r.Context(), filter)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	dtos := newSinkDTOs(sinks)
	writeJSON(w, http.StatusOK, searchResult{ResultCount: len(dtos), Sinks: dtos})
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

func parseIDVar(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errs.New(errs.ParseError, "id path parameter is not a well-formed UUID")
	}
	return id, nil
}

type maintenanceRequest struct {
	MaintenancePayload struct {
		MaintenanceSecret string `json:"maintenance_secret"`
	} `json:"maintenance_payload"`
	NewStructure json.RawMessage `json:"new_structure"`
}

func (a *api) handleMaintenanceUpdate(w http.ResponseWriter, r *http.Request) {
	var body maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStructureError(w, errs.Wrap(errs.ParseError, "request body is not well-formed JSON", err), requestID(r))
		return
	}

	if !secretsEqual(body.MaintenancePayload.MaintenanceSecret, a.cfg.MaintenanceSecret) {
		writeStructureError(w, errs.New(errs.AuthorizationError, "maintenance secret mismatch"), requestID(r))
		return
	}

	cs, err := model.ParseCompleteStructure(body.NewStructure)
	if err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}

	deleteExisting, _ := strconv.ParseBool(r.URL.Query().Get("delete_existing_structure"))

	ctx := r.Context()
	if deleteExisting {
		if err := a.svc.DeleteStructure(ctx); err != nil {
			writeStructureError(w, err, requestID(r))
			return
		}
	}
	if err := a.svc.UpdateStructure(ctx, cs); err != nil {
		writeStructureError(w, err, requestID(r))
		return
	}
	writeNoContent(w)
}
