// dependency_graph.go: plugin dependency graph and install ordering
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"strings"
)

// dependencyNode is one plugin in the graph. dependsOn holds resolved
// plugin ids, never capability names.
type dependencyNode struct {
	id        string
	dependsOn []string
	available bool
	owner     *PluginLifecycle
}

// DependencyGraph tracks which plugins depend on which, and whether each
// plugin has finished installing.
//
// The graph never looks inside manifests: callers hand it the resolved set
// of plugin ids a node depends on. Edges may point at ids that are not (yet)
// registered; InstallOrder reports them. Nodes remember their insertion
// order, which breaks ties between independent plugins, so the computed
// order is deterministic.
//
// DependencyGraph is not safe for concurrent use. It is owned by a single
// PluginRegistry.
type DependencyGraph struct {
	nodes map[string]*dependencyNode
	order []string
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*dependencyNode),
	}
}

// AddDependency registers id with the given dependency set, or replaces the
// edge set of an existing node. A replaced node keeps its insertion slot and
// becomes unavailable again. Duplicate ids in dependsOn are collapsed.
func (g *DependencyGraph) AddDependency(id string, dependsOn []string, owner *PluginLifecycle) {
	deps := make([]string, 0, len(dependsOn))
	seen := make(map[string]bool, len(dependsOn))
	for _, dep := range dependsOn {
		if !seen[dep] {
			seen[dep] = true
			deps = append(deps, dep)
		}
	}

	if node, exists := g.nodes[id]; exists {
		node.dependsOn = deps
		node.available = false
		node.owner = owner
		return
	}

	g.nodes[id] = &dependencyNode{id: id, dependsOn: deps, owner: owner}
	g.order = append(g.order, id)
}

// DeleteDependency removes id and its edges. Dependents keep their edges to
// id and become unsatisfied; re-evaluating them is up to the caller.
func (g *DependencyGraph) DeleteDependency(id string) {
	if _, exists := g.nodes[id]; !exists {
		return
	}
	delete(g.nodes, id)
	for i, existing := range g.order {
		if existing == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

// MarkAvailable flags id as installed so dependents can be ordered after it.
func (g *DependencyGraph) MarkAvailable(id string) error {
	node, exists := g.nodes[id]
	if !exists {
		return NewPluginNotFoundError(id)
	}
	node.available = true
	return nil
}

// MarkUnavailable clears the availability flag of id.
func (g *DependencyGraph) MarkUnavailable(id string) error {
	node, exists := g.nodes[id]
	if !exists {
		return NewPluginNotFoundError(id)
	}
	node.available = false
	return nil
}

// AllDependenciesSatisfied reports whether every dependency of id is
// registered and available. Unknown ids are never satisfied.
func (g *DependencyGraph) AllDependenciesSatisfied(id string) bool {
	node, exists := g.nodes[id]
	if !exists {
		return false
	}
	for _, dep := range node.dependsOn {
		target, ok := g.nodes[dep]
		if !ok || !target.available {
			return false
		}
	}
	return true
}

// Contains reports whether id is registered.
func (g *DependencyGraph) Contains(id string) bool {
	_, exists := g.nodes[id]
	return exists
}

// IsAvailable reports whether id is registered and marked available.
func (g *DependencyGraph) IsAvailable(id string) bool {
	node, exists := g.nodes[id]
	return exists && node.available
}

// Owner returns the lifecycle registered for id, or nil.
func (g *DependencyGraph) Owner(id string) *PluginLifecycle {
	if node, exists := g.nodes[id]; exists {
		return node.owner
	}
	return nil
}

// Dependencies returns the dependency ids of id.
func (g *DependencyGraph) Dependencies(id string) []string {
	if node, exists := g.nodes[id]; exists {
		return append([]string(nil), node.dependsOn...)
	}
	return []string{}
}

// Dependents returns the ids that depend directly on id, in insertion order.
func (g *DependencyGraph) Dependents(id string) []string {
	dependents := []string{}
	for _, candidate := range g.order {
		for _, dep := range g.nodes[candidate].dependsOn {
			if dep == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// IDs returns every registered id in insertion order.
func (g *DependencyGraph) IDs() []string {
	return append([]string(nil), g.order...)
}

// Len returns the number of registered nodes.
func (g *DependencyGraph) Len() int {
	return len(g.order)
}

// InstallOrder returns every registered id such that each dependency comes
// before its dependents. Among nodes that are ready at the same time, the
// one inserted first wins.
//
// It fails with an unresolved dependency error when an edge names an id
// that was never registered, and with a cyclic dependency error carrying the
// offending path when no order exists.
func (g *DependencyGraph) InstallOrder() ([]string, error) {
	for _, id := range g.order {
		for _, dep := range g.nodes[id].dependsOn {
			if _, exists := g.nodes[dep]; !exists {
				return nil, NewUnresolvedDependencyError(id, dep)
			}
		}
	}

	// Kahn's algorithm; in-degree counts unmet dependencies.
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		inDegree[id] = len(g.nodes[id].dependsOn)
	}

	emitted := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))
	for len(result) < len(g.order) {
		next := ""
		for _, id := range g.order {
			if !emitted[id] && inDegree[id] == 0 {
				next = id
				break
			}
		}
		if next == "" {
			return nil, NewCyclicDependencyError(g.findCycle(emitted))
		}

		emitted[next] = true
		result = append(result, next)
		for _, dependent := range g.Dependents(next) {
			inDegree[dependent]--
		}
	}

	return result, nil
}

// findCycle walks the nodes that Kahn's algorithm could not emit and
// returns one cycle as a closed path, e.g. [a b a].
func (g *DependencyGraph) findCycle(emitted map[string]bool) []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = onStack
		stack = append(stack, id)
		for _, dep := range g.nodes[id].dependsOn {
			if emitted[dep] {
				continue
			}
			switch state[dep] {
			case onStack:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.order {
		if !emitted[id] && state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
