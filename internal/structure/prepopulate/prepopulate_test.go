package prepopulate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	"github.com/nimbusgraph/vstructure/internal/structure/service"
	"github.com/nimbusgraph/vstructure/internal/structure/store"
	"github.com/nimbusgraph/vstructure/pkg/config"
)

func newTestService(t *testing.T) *service.Service {
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
	return service.New(st)
}

func docWithRoot(name string) *model.CompleteStructure {
	return &model.CompleteStructure{
		ElementTypes: []model.ElementType{{ExternalID: "et1", StakeholderKey: "utility", Name: "Kind-" + name}},
		ThingNodes: []model.ThingNode{
			{ExternalID: "root", StakeholderKey: "utility", Name: name, Description: "d", ElementTypeExternalID: "et1"},
		},
	}
}

func TestRun_Disabled(t *testing.T) {
	svc := newTestService(t)
	cfg := &config.Config{PrepopulateOnStartup: false}
	if err := Run(context.Background(), cfg, svc); err != nil {
		t.Fatalf("Run returned error when disabled: %v", err)
	}
	empty, err := svc.AreStructureTablesEmpty(context.Background())
	if err != nil {
		t.Fatalf("AreStructureTablesEmpty: %v", err)
	}
	if !empty {
		t.Fatal("expected no rows to be written when prepopulation is disabled")
	}
}

func TestRun_InlineStructure(t *testing.T) {
	svc := newTestService(t)
	cfg := &config.Config{
		PrepopulateOnStartup: true,
		InlineStructure:      docWithRoot("Waterworks 1"),
	}
	if err := Run(context.Background(), cfg, svc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	children, err := svc.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(children.ThingNodes) != 1 || children.ThingNodes[0].Name != "Waterworks 1" {
		t.Fatalf("unexpected roots after prepopulation: %+v", children.ThingNodes)
	}
}

func TestRun_OverwriteDeletesExistingStructure(t *testing.T) {
	svc := newTestService(t)

	// Structure A's root carries its own external id, so it survives unless
	// the overwrite really deletes it before structure B is upserted.
	seedA := docWithRoot("Structure A")
	seedA.ThingNodes[0].ExternalID = "root-a"
	if err := svc.UpdateStructure(context.Background(), seedA); err != nil {
		t.Fatalf("seeding structure A: %v", err)
	}

	cfg := &config.Config{
		PrepopulateOnStartup: true,
		OverwriteExisting:    true,
		InlineStructure:      docWithRoot("Structure B"),
	}
	if err := Run(context.Background(), cfg, svc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	children, err := svc.GetChildren(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	if len(children.ThingNodes) != 1 {
		t.Fatalf("expected exactly one root after overwrite, got %d", len(children.ThingNodes))
	}
	if children.ThingNodes[0].Name != "Structure B" {
		t.Fatalf("expected final state to match structure B, got %q", children.ThingNodes[0].Name)
	}
}
