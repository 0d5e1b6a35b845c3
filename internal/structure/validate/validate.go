// Package validate enforces the whole-document invariants of a
// CompleteStructure: referential integrity, key uniqueness, cycle
// detection, and stakeholder homogeneity. It is purely
// structural/referential and never touches a database. Validate reports
// the first failure it encounters, not every failure.
package validate

import (
	"fmt"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// Validate runs every document invariant in the order a reader would
// encounter them while authoring a document: per-entity field checks in
// list order (element_types, thing_nodes, sources, sinks), then the
// document-wide cross-entity checks.
func Validate(cs *model.CompleteStructure) error {
	for i := range cs.ElementTypes {
		if err := cs.ElementTypes[i].Validate(); err != nil {
			return err
		}
	}
	if len(cs.ElementTypes) == 0 {
		return errs.New(errs.ValidationError,
			"The structure must include at least one StructureServiceElementType object to be valid.")
	}
	for i := range cs.ThingNodes {
		if err := cs.ThingNodes[i].Validate(); err != nil {
			return err
		}
	}
	for i := range cs.Sources {
		if err := cs.Sources[i].Validate(); err != nil {
			return err
		}
	}
	for i := range cs.Sinks {
		if err := cs.Sinks[i].Validate(); err != nil {
			return err
		}
	}

	if err := validateParentReferencesResolve(cs); err != nil {
		return err
	}
	if err := validateNoDuplicateKeyIDPairs(cs); err != nil {
		return err
	}
	if err := validateNoDuplicateThingNodeRefs(cs); err != nil {
		return err
	}
	if err := validateStakeholderConsistency(cs); err != nil {
		return err
	}
	if err := validateNoCircularReferences(cs); err != nil {
		return err
	}
	if err := validateSourceSinkReferences(cs); err != nil {
		return err
	}
	return nil
}

func validateParentReferencesResolve(cs *model.CompleteStructure) error {
	externalIDs := make(map[string]bool, len(cs.ThingNodes))
	for _, n := range cs.ThingNodes {
		externalIDs[n.ExternalID] = true
	}
	for _, n := range cs.ThingNodes {
		if n.ParentExternalNodeID != nil && !externalIDs[*n.ParentExternalNodeID] {
			return errs.New(errs.ValidationError, fmt.Sprintf(
				"Root node '%s' has an invalid parent_external_node_id '%s' that does not reference any existing StructureServiceThingNode.",
				n.Name, *n.ParentExternalNodeID))
		}
	}
	return nil
}

func validateNoDuplicateKeyIDPairs(cs *model.CompleteStructure) error {
	type pair struct{ stakeholderKey, externalID string }
	check := func(listName string, keys []pair) error {
		seen := make(map[pair]bool, len(keys))
		for _, p := range keys {
			if seen[p] {
				return errs.New(errs.ValidationError, fmt.Sprintf(
					"The stakeholder key and external id pair: ('%s', '%s') exists at least twice in the %s list. Each key-id pair must be unique within its list!",
					p.stakeholderKey, p.externalID, listName))
			}
			seen[p] = true
		}
		return nil
	}

	etKeys := make([]pair, len(cs.ElementTypes))
	for i, e := range cs.ElementTypes {
		etKeys[i] = pair{e.StakeholderKey, e.ExternalID}
	}
	if err := check("element_types", etKeys); err != nil {
		return err
	}

	tnKeys := make([]pair, len(cs.ThingNodes))
	for i, n := range cs.ThingNodes {
		tnKeys[i] = pair{n.StakeholderKey, n.ExternalID}
	}
	if err := check("thing_nodes", tnKeys); err != nil {
		return err
	}

	srcKeys := make([]pair, len(cs.Sources))
	for i, s := range cs.Sources {
		srcKeys[i] = pair{s.StakeholderKey, s.ExternalID}
	}
	if err := check("sources", srcKeys); err != nil {
		return err
	}

	sinkKeys := make([]pair, len(cs.Sinks))
	for i, s := range cs.Sinks {
		sinkKeys[i] = pair{s.StakeholderKey, s.ExternalID}
	}
	return check("sinks", sinkKeys)
}

func validateNoDuplicateThingNodeRefs(cs *model.CompleteStructure) error {
	check := func(listName, externalID string, refs []string) error {
		seen := make(map[string]bool, len(refs))
		for _, r := range refs {
			if seen[r] {
				return errs.New(errs.ValidationError, fmt.Sprintf(
					"The thing_node_external_ids attribute of the element with id: %s in the %s list, contains at least the duplicate id: %s. Each id within thing_node_external_ids must be unique!",
					externalID, listName, r))
			}
			seen[r] = true
		}
		return nil
	}
	for _, s := range cs.Sources {
		if err := check("sources", s.ExternalID, s.ThingNodeExternalIDs); err != nil {
			return err
		}
	}
	for _, s := range cs.Sinks {
		if err := check("sinks", s.ExternalID, s.ThingNodeExternalIDs); err != nil {
			return err
		}
	}
	return nil
}

func validateStakeholderConsistency(cs *model.CompleteStructure) error {
	childrenByParentExtID := make(map[string][]*model.ThingNode)
	for i := range cs.ThingNodes {
		n := &cs.ThingNodes[i]
		if n.ParentExternalNodeID != nil {
			childrenByParentExtID[*n.ParentExternalNodeID] = append(childrenByParentExtID[*n.ParentExternalNodeID], n)
		}
	}

	for i := range cs.ThingNodes {
		root := &cs.ThingNodes[i]
		if root.ParentExternalNodeID != nil {
			continue
		}
		expected := root.StakeholderKey
		stack := []*model.ThingNode{root}
		visited := make(map[string]bool)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[n.ExternalID] {
				continue
			}
			visited[n.ExternalID] = true
			if n.StakeholderKey != expected {
				return errs.New(errs.ValidationError, fmt.Sprintf(
					"Inconsistent stakeholder_key at node %s. Expected: %s, found: %s",
					n.ExternalID, expected, n.StakeholderKey))
			}
			stack = append(stack, childrenByParentExtID[n.ExternalID]...)
		}
	}
	return nil
}

func validateNoCircularReferences(cs *model.CompleteStructure) error {
	byExternalID := make(map[string]*model.ThingNode, len(cs.ThingNodes))
	for i := range cs.ThingNodes {
		byExternalID[cs.ThingNodes[i].ExternalID] = &cs.ThingNodes[i]
	}

	var visit func(n *model.ThingNode, path map[string]bool) error
	visit = func(n *model.ThingNode, path map[string]bool) error {
		if path[n.ExternalID] {
			return errs.New(errs.ValidationError, fmt.Sprintf("Circular reference detected in node %s", n.ExternalID))
		}
		path[n.ExternalID] = true
		if n.ParentExternalNodeID != nil {
			if parent, ok := byExternalID[*n.ParentExternalNodeID]; ok {
				if err := visit(parent, path); err != nil {
					return err
				}
			}
		}
		delete(path, n.ExternalID)
		return nil
	}

	for i := range cs.ThingNodes {
		if err := visit(&cs.ThingNodes[i], map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func validateSourceSinkReferences(cs *model.CompleteStructure) error {
	thingNodeIDs := make(map[string]bool, len(cs.ThingNodes))
	for _, n := range cs.ThingNodes {
		thingNodeIDs[n.ExternalID] = true
	}
	for _, s := range cs.Sources {
		for _, tnID := range s.ThingNodeExternalIDs {
			if !thingNodeIDs[tnID] {
				return errs.New(errs.ValidationError, fmt.Sprintf(
					"StructureServiceSource '%s' references non-existing StructureServiceThingNode '%s'.",
					s.ExternalID, tnID))
			}
		}
	}
	for _, s := range cs.Sinks {
		for _, tnID := range s.ThingNodeExternalIDs {
			if !thingNodeIDs[tnID] {
				return errs.New(errs.ValidationError, fmt.Sprintf(
					"StructureServiceSink '%s' references non-existing StructureServiceThingNode '%s'.",
					s.ExternalID, tnID))
			}
		}
	}
	return nil
}
