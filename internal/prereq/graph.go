// Package prereq validates and explores course prerequisite graphs.
//
// A Graph maps a course code to the codes it requires. Edges point from a
// course to its prerequisites, so a cycle means a course transitively
// requires itself.
package prereq

import (
	"errors"
	"sort"
)

// ErrCycle is returned by traversals that cannot proceed on a cyclic graph.
var ErrCycle = errors.New("prerequisite graph contains a cycle")

// Graph is an adjacency list keyed by course code.
type Graph map[string][]string

// Result is the outcome of Validate. Cycle is empty when Valid is true and
// otherwise lists the nodes on the cycle with the first node repeated last.
type Result struct {
	Valid bool
	Cycle []string
}

// With returns a copy of g where code's edges are replaced by prereqs.
func (g Graph) With(code string, prereqs []string) Graph {
	out := make(Graph, len(g)+1)
	for k, v := range g {
		out[k] = v
	}
	edges := make([]string, len(prereqs))
	copy(edges, prereqs)
	out[code] = edges
	return out
}

// Nodes returns every code that appears in g, as a key or as an edge target,
// in sorted order.
func (g Graph) Nodes() []string {
	seen := make(map[string]struct{}, len(g))
	for k, edges := range g {
		seen[k] = struct{}{}
		for _, e := range edges {
			seen[e] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type frame struct {
	node string
	next int
}

// Validate reports whether g is acyclic. The walk starts at root so a cycle
// through the course under validation is reported first; the remaining nodes
// are then visited in sorted order. Self-edges on root are rejected up front
// as the cycle [root, root].
func Validate(g Graph, root string) Result {
	for _, p := range g[root] {
		if p == root {
			return Result{Cycle: []string{root, root}}
		}
	}

	done := make(map[string]bool)
	onStack := make(map[string]int)

	starts := append([]string{root}, g.Nodes()...)
	for _, start := range starts {
		if done[start] {
			continue
		}
		if cycle := walk(g, start, done, onStack); cycle != nil {
			return Result{Cycle: cycle}
		}
	}
	return Result{Valid: true}
}

// walk runs an iterative depth-first search from start. onStack maps nodes
// on the current path to their index in stack.
func walk(g Graph, start string, done map[string]bool, onStack map[string]int) []string {
	stack := []frame{{node: start}}
	onStack[start] = 0

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		edges := g[top.node]
		if top.next >= len(edges) {
			done[top.node] = true
			delete(onStack, top.node)
			stack = stack[:len(stack)-1]
			continue
		}
		child := edges[top.next]
		top.next++

		if idx, ok := onStack[child]; ok {
			cycle := make([]string, 0, len(stack)-idx+1)
			for _, f := range stack[idx:] {
				cycle = append(cycle, f.node)
			}
			return append(cycle, child)
		}
		if done[child] {
			continue
		}
		onStack[child] = len(stack)
		stack = append(stack, frame{node: child})
	}
	return nil
}

// Reachable returns the sub-graph of g reachable from root, including root.
// Nodes without prerequisites map to an empty slice.
func Reachable(g Graph, root string) Graph {
	out := make(Graph)
	queue := []string{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if _, ok := out[node]; ok {
			continue
		}
		edges := make([]string, len(g[node]))
		copy(edges, g[node])
		out[node] = edges
		for _, e := range edges {
			if _, ok := out[e]; !ok {
				queue = append(queue, e)
			}
		}
	}
	return out
}

// Chains enumerates every path from root down to a course with no
// prerequisites. Chains refuses cyclic input with ErrCycle.
func Chains(g Graph, root string) ([][]string, error) {
	var (
		out  [][]string
		path []string
		on   = make(map[string]bool)
	)
	var visit func(node string) error
	visit = func(node string) error {
		if on[node] {
			return ErrCycle
		}
		on[node] = true
		path = append(path, node)
		defer func() {
			path = path[:len(path)-1]
			on[node] = false
		}()

		edges := g[node]
		if len(edges) == 0 {
			chain := make([]string, len(path))
			copy(chain, path)
			out = append(out, chain)
			return nil
		}
		for _, e := range edges {
			if err := visit(e); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(root); err != nil {
		return nil, err
	}
	return out, nil
}
