// Package sort implements the hierarchy sorter: BFS level-order flattening
// of a ThingNode list with lexicographic sibling ordering and orphan
// elision.
package sort

import (
	"sort"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
)

// SortThingNodes returns nodes ordered root-first by BFS level, siblings
// ordered lexicographically by external_id. As a side effect it sets the
// in-memory ParentNodeID field of every node whose parent is found among
// the input (a pre-population the database's own rewrite on upsert later
// makes authoritative). Nodes whose parent_external_node_id does not
// resolve to an already-placed node are excluded from the output.
func SortThingNodes(nodes []model.ThingNode) []model.ThingNode {
	byExternalID := make(map[string]*model.ThingNode, len(nodes))
	for i := range nodes {
		byExternalID[nodes[i].ExternalID] = &nodes[i]
	}

	childrenByParentExtID := make(map[string][]*model.ThingNode)
	var roots []*model.ThingNode
	for i := range nodes {
		n := &nodes[i]
		if n.ParentExternalNodeID == nil {
			roots = append(roots, n)
			continue
		}
		childrenByParentExtID[*n.ParentExternalNodeID] = append(childrenByParentExtID[*n.ParentExternalNodeID], n)
	}
	sortByExternalID(roots)

	out := make([]model.ThingNode, 0, len(nodes))
	placed := make(map[string]bool, len(nodes))
	level := roots
	for len(level) > 0 {
		var next []*model.ThingNode
		for _, n := range level {
			out = append(out, *n)
			placed[n.ExternalID] = true
		}
		for _, n := range level {
			children := childrenByParentExtID[n.ExternalID]
			sortByExternalID(children)
			next = append(next, children...)
		}
		level = next
	}

	for i := range out {
		if out[i].ParentExternalNodeID == nil {
			continue
		}
		if parent, ok := byExternalID[*out[i].ParentExternalNodeID]; ok && placed[parent.ExternalID] {
			id := parent.ID
			out[i].ParentNodeID = &id
		}
	}
	return out
}

func sortByExternalID(nodes []*model.ThingNode) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].ExternalID < nodes[j].ExternalID })
}
