package validate

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/nimbusgraph/vstructure/internal/structure/model"
)

func strPtr(s string) *string { return &s }

func baseElementType() model.ElementType {
	return model.ElementType{ID: uuid.New(), ExternalID: "et1", StakeholderKey: "sh", Name: "ElementType 1"}
}

func TestValidate_EmptyExternalIDRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		ThingNodes: []model.ThingNode{
			{ID: uuid.New(), ExternalID: "", StakeholderKey: "sh", Name: "n1", ElementTypeExternalID: "et1"},
		},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "external_id cannot be empty") {
		t.Fatalf("expected empty external_id rejection, got %v", err)
	}
}

func TestValidate_DuplicateKeyIDPairRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType(), baseElementType()},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "exists at least twice in the element_types list") {
		t.Fatalf("expected duplicate key/id pair rejection, got %v", err)
	}
}

func TestValidate_CircularReferenceRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		ThingNodes: []model.ThingNode{
			{ID: uuid.New(), ExternalID: "x", StakeholderKey: "sh", Name: "X", ParentExternalNodeID: strPtr("y"), ElementTypeExternalID: "et1"},
			{ID: uuid.New(), ExternalID: "y", StakeholderKey: "sh", Name: "Y", ParentExternalNodeID: strPtr("x"), ElementTypeExternalID: "et1"},
		},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "Circular reference detected") {
		t.Fatalf("expected circular reference rejection, got %v", err)
	}
}

func TestValidate_NonHomogeneousStakeholderRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		ThingNodes: []model.ThingNode{
			{ID: uuid.New(), ExternalID: "root", StakeholderKey: "sh1", Name: "Root", ElementTypeExternalID: "et1"},
			{ID: uuid.New(), ExternalID: "child", StakeholderKey: "sh2", Name: "Child", ParentExternalNodeID: strPtr("root"), ElementTypeExternalID: "et1"},
		},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "Inconsistent stakeholder_key") {
		t.Fatalf("expected stakeholder inconsistency rejection, got %v", err)
	}
}

func TestValidate_SourceReferencesNonexistentThingNodeRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		ThingNodes: []model.ThingNode{
			{ID: uuid.New(), ExternalID: "root", StakeholderKey: "sh", Name: "Root", ElementTypeExternalID: "et1"},
		},
		Sources: []model.Source{
			{
				ID: uuid.New(), ExternalID: "src1", StakeholderKey: "sh", Name: "Source 1",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_1",
				ThingNodeExternalIDs: []string{"does-not-exist"},
			},
		},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "references non-existing StructureServiceThingNode") {
		t.Fatalf("expected referential integrity rejection, got %v", err)
	}
}

func TestValidate_DuplicateThingNodeRefRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		ThingNodes: []model.ThingNode{
			{ID: uuid.New(), ExternalID: "root", StakeholderKey: "sh", Name: "Root", ElementTypeExternalID: "et1"},
		},
		Sources: []model.Source{
			{
				ID: uuid.New(), ExternalID: "src1", StakeholderKey: "sh", Name: "Source 1",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_1",
				ThingNodeExternalIDs: []string{"root", "root"},
			},
		},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "contains at least the duplicate id") {
		t.Fatalf("expected duplicate thing_node_external_ids rejection, got %v", err)
	}
}

func TestValidate_RootWithUnresolvedParentRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		ThingNodes: []model.ThingNode{
			{ID: uuid.New(), ExternalID: "n1", StakeholderKey: "sh", Name: "N1", ParentExternalNodeID: strPtr("ghost"), ElementTypeExternalID: "et1"},
		},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "does not reference any existing StructureServiceThingNode") {
		t.Fatalf("expected unresolved parent rejection, got %v", err)
	}
}

func TestValidate_ValidDocumentPasses(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		ThingNodes: []model.ThingNode{
			{ID: uuid.New(), ExternalID: "root", StakeholderKey: "sh", Name: "Root", ElementTypeExternalID: "et1"},
			{ID: uuid.New(), ExternalID: "child", StakeholderKey: "sh", Name: "Child", ParentExternalNodeID: strPtr("root"), ElementTypeExternalID: "et1"},
		},
		Sources: []model.Source{
			{
				ID: uuid.New(), ExternalID: "src1", StakeholderKey: "sh", Name: "Source 1",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_1",
				ThingNodeExternalIDs: []string{"child"},
				PassthroughFilters: []model.Filter{
					{Name: "Timestamp From", Type: model.FilterTypeFreeText, Required: true},
				},
			},
		},
	}
	if err := Validate(cs); err != nil {
		t.Fatalf("expected valid document to pass, got %v", err)
	}
	if cs.Sources[0].PassthroughFilters[0].InternalName != "timestamp_from" {
		t.Fatalf("expected derived internal_name timestamp_from, got %q", cs.Sources[0].PassthroughFilters[0].InternalName)
	}
}

func TestValidate_DuplicateInternalNameRejected(t *testing.T) {
	cs := &model.CompleteStructure{
		ElementTypes: []model.ElementType{baseElementType()},
		Sources: []model.Source{
			{
				ID: uuid.New(), ExternalID: "src1", StakeholderKey: "sh", Name: "Source 1",
				Type: model.ExternalTypeTimeseriesFloat, AdapterKey: "sql-adapter", SourceID: "sql_src_1",
				PassthroughFilters: []model.Filter{
					{Name: "a", InternalName: "x", Type: model.FilterTypeFreeText},
					{Name: "b", InternalName: "x", Type: model.FilterTypeFreeText},
				},
			},
		},
	}
	err := Validate(cs)
	if err == nil || !strings.Contains(err.Error(), "shared by at least two filters") {
		t.Fatalf("expected duplicate internal_name rejection, got %v", err)
	}
}
