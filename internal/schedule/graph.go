// Package schedule holds the pure scheduling engine: dependency graph construction,
// topological ordering, CPM passes, progress rollup and closure gates.
//
// Every function works on caller-supplied snapshots and keeps no state between calls.
package schedule

import (
	"fmt"

	"github.com/hylla/groundline/internal/domain"
)

// WarningKind classifies data-integrity warnings raised while building a graph.
type WarningKind string

// WarningKind values.
const (
	WarningUnknownActivity   WarningKind = "unknown_activity"
	WarningUnknownDependency WarningKind = "unknown_dependency"
	WarningSelfDependency    WarningKind = "self_dependency"
	WarningDuplicateEdge     WarningKind = "duplicate_edge"
	WarningDuplicateActivity WarningKind = "duplicate_activity"
)

// Warning reports one input anomaly the builder tolerated.
type Warning struct {
	Kind                WarningKind `json:"kind"`
	ActivityID          string      `json:"activity_id"`
	DependsOnActivityID string      `json:"depends_on_activity_id,omitempty"`
	Message             string      `json:"message"`
}

// Node is one arena slot: the activity plus adjacency by arena index.
type Node struct {
	Activity     domain.Activity
	Predecessors []int
	Successors   []int
}

// Graph is an immutable arena of activity nodes with an id lookup.
type Graph struct {
	nodes    []Node
	index    map[string]int
	warnings []Warning
}

// BuildGraph converts activities and dependency edges into an arena graph.
// Edges naming an unknown activity, self edges and repeated edges are dropped and reported.
func BuildGraph(activities []domain.Activity, edges []domain.Dependency) *Graph {
	g := &Graph{
		nodes: make([]Node, 0, len(activities)),
		index: make(map[string]int, len(activities)),
	}
	for _, a := range activities {
		if _, exists := g.index[a.ID]; exists {
			g.warn(WarningDuplicateActivity, a.ID, "", fmt.Sprintf("activity %q listed more than once; first entry kept", a.ID))
			continue
		}
		g.index[a.ID] = len(g.nodes)
		g.nodes = append(g.nodes, Node{Activity: a})
	}

	type pair struct{ from, to int }
	seen := make(map[pair]struct{}, len(edges))
	for _, e := range edges {
		succ, ok := g.index[e.ActivityID]
		if !ok {
			g.warn(WarningUnknownActivity, e.ActivityID, e.DependsOnActivityID, fmt.Sprintf("dependency names unknown activity %q", e.ActivityID))
			continue
		}
		pred, ok := g.index[e.DependsOnActivityID]
		if !ok {
			g.warn(WarningUnknownDependency, e.ActivityID, e.DependsOnActivityID, fmt.Sprintf("activity %q depends on unknown activity %q", e.ActivityID, e.DependsOnActivityID))
			continue
		}
		if succ == pred {
			g.warn(WarningSelfDependency, e.ActivityID, e.DependsOnActivityID, fmt.Sprintf("activity %q depends on itself", e.ActivityID))
			continue
		}
		key := pair{from: pred, to: succ}
		if _, dup := seen[key]; dup {
			g.warn(WarningDuplicateEdge, e.ActivityID, e.DependsOnActivityID, fmt.Sprintf("duplicate dependency %q -> %q", e.DependsOnActivityID, e.ActivityID))
			continue
		}
		seen[key] = struct{}{}
		g.nodes[succ].Predecessors = append(g.nodes[succ].Predecessors, pred)
		g.nodes[pred].Successors = append(g.nodes[pred].Successors, succ)
	}
	return g
}

func (g *Graph) warn(kind WarningKind, activityID, dependsOnID, msg string) {
	g.warnings = append(g.warnings, Warning{
		Kind:                kind,
		ActivityID:          activityID,
		DependsOnActivityID: dependsOnID,
		Message:             msg,
	})
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Node returns the node stored at index i.
func (g *Graph) Node(i int) Node {
	return g.nodes[i]
}

// Lookup resolves an activity id to its arena index.
func (g *Graph) Lookup(id string) (int, bool) {
	if g == nil {
		return 0, false
	}
	i, ok := g.index[id]
	return i, ok
}

// Warnings returns a copy of the anomalies recorded while building.
func (g *Graph) Warnings() []Warning {
	if g == nil {
		return nil
	}
	return append([]Warning(nil), g.warnings...)
}

// Predecessors returns the activities id depends on, in edge order.
func (g *Graph) Predecessors(id string) []domain.Activity {
	i, ok := g.Lookup(id)
	if !ok {
		return nil
	}
	return g.activities(g.nodes[i].Predecessors)
}

// Successors returns the activities depending on id, in edge order.
func (g *Graph) Successors(id string) []domain.Activity {
	i, ok := g.Lookup(id)
	if !ok {
		return nil
	}
	return g.activities(g.nodes[i].Successors)
}

func (g *Graph) activities(idx []int) []domain.Activity {
	out := make([]domain.Activity, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.nodes[i].Activity)
	}
	return out
}
