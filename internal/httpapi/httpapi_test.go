package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	"github.com/nimbusgraph/vstructure/internal/structure/service"
	"github.com/nimbusgraph/vstructure/internal/structure/store"
	"github.com/nimbusgraph/vstructure/pkg/config"
)

func newTestRouter(t *testing.T) (http.Handler, *service.Service) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	st := store.Open(db, store.DialectSQLite)
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	svc := service.New(st)

	cfg := &config.Config{RoutePrefix: "/adapters/virtual_structure"}
	return NewRouter(cfg, svc), svc
}

func TestHandleInfo(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/info", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "virtual-structure-adapter" {
		t.Fatalf("id = %v, want virtual-structure-adapter", body["id"])
	}
}

func TestGetStructure_SingleRoot(t *testing.T) {
	router, svc := newTestRouter(t)

	doc := &model.CompleteStructure{
		ElementTypes: []model.ElementType{
			{ExternalID: "et1", StakeholderKey: "utility", Name: "Plant"},
		},
		ThingNodes: []model.ThingNode{
			{
				ExternalID: "root1", StakeholderKey: "utility", Name: "Waterworks 1",
				Description: "top level plant", ElementTypeExternalID: "et1",
			},
		},
	}
	if err := svc.UpdateStructure(context.Background(), doc); err != nil {
		t.Fatalf("UpdateStructure: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/structure", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var resp structureDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.ThingNodes) != 1 {
		t.Fatalf("thingNodes = %d, want 1", len(resp.ThingNodes))
	}
	if resp.ThingNodes[0].Name != "Waterworks 1" {
		t.Fatalf("name = %q, want Waterworks 1", resp.ThingNodes[0].Name)
	}
	if resp.ThingNodes[0].ParentID != nil {
		t.Fatalf("parentId = %v, want nil", resp.ThingNodes[0].ParentID)
	}
}

func TestGetStructure_DescendFourLevels(t *testing.T) {
	router, svc := newTestRouter(t)

	str := func(s string) *string { return &s }
	doc := &model.CompleteStructure{
		ElementTypes: []model.ElementType{
			{ExternalID: "et1", StakeholderKey: "utility", Name: "Kind"},
		},
		ThingNodes: []model.ThingNode{
			{ExternalID: "root", StakeholderKey: "utility", Name: "root", Description: "d", ElementTypeExternalID: "et1"},
			{ExternalID: "mid1", StakeholderKey: "utility", Name: "mid1", Description: "d", ElementTypeExternalID: "et1", ParentExternalNodeID: str("root")},
			{ExternalID: "mid2", StakeholderKey: "utility", Name: "mid2", Description: "d", ElementTypeExternalID: "et1", ParentExternalNodeID: str("mid1")},
			{ExternalID: "leaf", StakeholderKey: "utility", Name: "leaf", Description: "d", ElementTypeExternalID: "et1", ParentExternalNodeID: str("mid2")},
		},
		Sources: []model.Source{
			{
				ExternalID: "src1", StakeholderKey: "utility", Name: "Energy usage with preset filter",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_1",
				RefID: "ref1", ThingNodeExternalIDs: []string{"leaf"},
			},
			{
				ExternalID: "src2", StakeholderKey: "utility", Name: "src2",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_2",
				RefID: "ref2", ThingNodeExternalIDs: []string{"leaf"},
			},
			{
				ExternalID: "src3", StakeholderKey: "utility", Name: "src3",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_3",
				RefID: "ref3", ThingNodeExternalIDs: []string{"leaf"},
			},
		},
		Sinks: []model.Sink{
			{
				ExternalID: "sink1", StakeholderKey: "utility",
				Name: "Anomaly score for the energy usage of the pump system in Storage Tank",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SinkID: "sql_sink_1",
				RefID: "ref4", ThingNodeExternalIDs: []string{"leaf"},
			},
		},
	}
	if err := svc.UpdateStructure(context.Background(), doc); err != nil {
		t.Fatalf("UpdateStructure: %v", err)
	}

	get := func(parentID string) structureDTO {
		url := "/adapters/virtual_structure/structure"
		if parentID != "" {
			url += "?parentId=" + parentID
		}
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d body=%s", url, rec.Code, rec.Body.String())
		}
		var resp structureDTO
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	roots := get("")
	if len(roots.ThingNodes) != 1 {
		t.Fatalf("roots thingNodes = %d, want 1", len(roots.ThingNodes))
	}

	mid1Level := get(roots.ThingNodes[0].ID)
	if len(mid1Level.ThingNodes) != 1 {
		t.Fatalf("level1 thingNodes = %d, want 1", len(mid1Level.ThingNodes))
	}

	mid2Level := get(mid1Level.ThingNodes[0].ID)
	if len(mid2Level.ThingNodes) != 1 {
		t.Fatalf("level2 thingNodes = %d, want 1", len(mid2Level.ThingNodes))
	}

	leafParent := get(mid2Level.ThingNodes[0].ID)
	if len(leafParent.ThingNodes) != 1 {
		t.Fatalf("level3 thingNodes = %d, want 1", len(leafParent.ThingNodes))
	}

	leafLevel := get(leafParent.ThingNodes[0].ID)
	if len(leafLevel.ThingNodes) != 0 {
		t.Fatalf("leaf thingNodes = %d, want 0", len(leafLevel.ThingNodes))
	}
	if len(leafLevel.Sinks) != 1 {
		t.Fatalf("leaf sinks = %d, want 1", len(leafLevel.Sinks))
	}
	if len(leafLevel.Sources) != 3 {
		t.Fatalf("leaf sources = %d, want 3", len(leafLevel.Sources))
	}
}

func TestMaintenanceUpdate_SecretMismatch(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"maintenance_payload":{"maintenance_secret":"wrong"},"new_structure":{"element_types":[],"thing_nodes":[],"sources":[],"sinks":[]}}`
	req := httptest.NewRequest(http.MethodPut, "/adapters/virtual_structure/structure/update", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body=%s", rec.Code, rec.Body.String())
	}
}

func seedLeafWithSource(t *testing.T, svc *service.Service) {
	t.Helper()
	doc := &model.CompleteStructure{
		ElementTypes: []model.ElementType{
			{ExternalID: "et1", StakeholderKey: "utility", Name: "Kind"},
		},
		ThingNodes: []model.ThingNode{
			{ExternalID: "root", StakeholderKey: "utility", Name: "Waterworks 1", Description: "d", ElementTypeExternalID: "et1"},
		},
		Sources: []model.Source{
			{
				ExternalID: "src1", StakeholderKey: "utility", Name: "Energy usage with preset filter",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_1",
				RefID: "ref1", ThingNodeExternalIDs: []string{"root"},
			},
		},
		Sinks: []model.Sink{
			{
				ExternalID: "sink1", StakeholderKey: "utility", Name: "Anomaly Score",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SinkID: "sql_sink_1",
				RefID: "ref2", ThingNodeExternalIDs: []string{"root"},
			},
		},
	}
	if err := svc.UpdateStructure(context.Background(), doc); err != nil {
		t.Fatalf("UpdateStructure: %v", err)
	}
}

func TestSearchSources_CaseInsensitiveEnvelope(t *testing.T) {
	router, svc := newTestRouter(t)
	seedLeafWithSource(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/sources?filter=ENERGY", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var resp searchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ResultCount != 1 || len(resp.Sources) != 1 {
		t.Fatalf("resultCount = %d sources = %d, want 1/1", resp.ResultCount, len(resp.Sources))
	}
	if resp.Sources[0].Name != "Energy usage with preset filter" {
		t.Fatalf("unexpected hit: %q", resp.Sources[0].Name)
	}
}

func TestSearchSources_AbsentFilterIsEmptyResult(t *testing.T) {
	router, svc := newTestRouter(t)
	seedLeafWithSource(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/sources", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp searchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ResultCount != 0 {
		t.Fatalf("resultCount = %d, want 0 for an absent filter", resp.ResultCount)
	}
}

func TestGetThingNode_UnknownIDIs404(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/thingNodes/00000000-0000-0000-0000-000000000099", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body=%s", rec.Code, rec.Body.String())
	}
}

func TestThingNodeMetadata_AlwaysEmptyList(t *testing.T) {
	router, svc := newTestRouter(t)
	seedLeafWithSource(t, svc)

	roots, err := svc.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	url := "/adapters/virtual_structure/thingNodes/" + roots.ThingNodes[0].ID.String() + "/metadata/"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp []any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 0 {
		t.Fatalf("metadata = %v, want an empty list", resp)
	}
}

func TestRequireAuth_GuardsBrowsingRoutes(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.Open(db, store.DialectSQLite)
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	svc := service.New(st)
	cfg := &config.Config{RoutePrefix: "/adapters/virtual_structure", APIKey: "sekrit"}
	router := NewRouter(cfg, svc)

	req := httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/structure", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without key: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/structure", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with key: status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	// /info stays open regardless.
	req = httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/info", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("/info without key: status = %d, want 200", rec.Code)
	}
}

func newMaintenanceRouter(t *testing.T) (http.Handler, *service.Service) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	st := store.Open(db, store.DialectSQLite)
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	svc := service.New(st)
	cfg := &config.Config{RoutePrefix: "/adapters/virtual_structure", MaintenanceSecret: "topsecret"}
	return NewRouter(cfg, svc), svc
}

func TestMaintenanceUpdate_Success(t *testing.T) {
	router, svc := newMaintenanceRouter(t)
	body := `{
		"maintenance_payload": {"maintenance_secret": "topsecret"},
		"new_structure": {
			"element_types": [{"external_id": "et1", "stakeholder_key": "sh", "name": "Plant"}],
			"thing_nodes": [{"external_id": "root", "stakeholder_key": "sh", "name": "Root", "element_type_external_id": "et1"}],
			"sources": [],
			"sinks": []
		}
	}`
	req := httptest.NewRequest(http.MethodPut, "/adapters/virtual_structure/structure/update", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body=%s", rec.Code, rec.Body.String())
	}

	roots, err := svc.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(roots.ThingNodes) != 1 || roots.ThingNodes[0].Name != "Root" {
		t.Fatalf("unexpected roots after maintenance update: %+v", roots.ThingNodes)
	}
}

func TestMaintenanceUpdate_DeleteExistingFlag(t *testing.T) {
	router, svc := newMaintenanceRouter(t)

	seed := &model.CompleteStructure{
		ElementTypes: []model.ElementType{{ExternalID: "et0", StakeholderKey: "sh", Name: "Old Kind"}},
		ThingNodes: []model.ThingNode{
			{ExternalID: "old-root", StakeholderKey: "sh", Name: "Old Root", ElementTypeExternalID: "et0"},
		},
	}
	if err := svc.UpdateStructure(context.Background(), seed); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	body := `{
		"maintenance_payload": {"maintenance_secret": "topsecret"},
		"new_structure": {
			"element_types": [{"external_id": "et1", "stakeholder_key": "sh", "name": "Plant"}],
			"thing_nodes": [{"external_id": "root", "stakeholder_key": "sh", "name": "New Root", "element_type_external_id": "et1"}],
			"sources": [],
			"sinks": []
		}
	}`
	req := httptest.NewRequest(http.MethodPut, "/adapters/virtual_structure/structure/update?delete_existing_structure=true", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204, body=%s", rec.Code, rec.Body.String())
	}

	roots, err := svc.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(roots.ThingNodes) != 1 || roots.ThingNodes[0].Name != "New Root" {
		t.Fatalf("expected only the new structure to remain, got %+v", roots.ThingNodes)
	}
}

func TestMaintenanceUpdate_InvalidStructureIs422(t *testing.T) {
	router, _ := newMaintenanceRouter(t)
	// element_types empty: violates the "at least one element type" invariant.
	body := `{
		"maintenance_payload": {"maintenance_secret": "topsecret"},
		"new_structure": {"element_types": [], "thing_nodes": [], "sources": [], "sinks": []}
	}`
	req := httptest.NewRequest(http.MethodPut, "/adapters/virtual_structure/structure/update", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetStructure_ParentEnvelopeCarriesIDAndName(t *testing.T) {
	router, svc := newTestRouter(t)
	seedLeafWithSource(t, svc)

	roots, err := svc.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	rootID := roots.ThingNodes[0].ID.String()

	req := httptest.NewRequest(http.MethodGet, "/adapters/virtual_structure/structure?parentId="+rootID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var resp structureDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID == nil || *resp.ID != rootID {
		t.Fatalf("envelope id = %v, want %s", resp.ID, rootID)
	}
	if resp.Name == nil || *resp.Name != "Waterworks 1" {
		t.Fatalf("envelope name = %v, want Waterworks 1", resp.Name)
	}
	if len(resp.Sources) != 1 || len(resp.Sinks) != 1 {
		t.Fatalf("sources/sinks = %d/%d, want 1/1", len(resp.Sources), len(resp.Sinks))
	}
}
