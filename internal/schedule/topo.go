package schedule

import (
	"errors"
	"strings"
)

// ErrCycle marks every cycle detected in dependency or hierarchy data.
var ErrCycle = errors.New("cycle detected")

// CycleError names the activities forming one cycle. The first id is repeated at the end.
type CycleError struct {
	Kind string
	Path []string
}

// Error implements error.
func (e *CycleError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "dependency"
	}
	return kind + " cycle detected: " + strings.Join(e.Path, " -> ")
}

// Unwrap lets errors.Is match ErrCycle.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

type visitState uint8

const (
	visitNew visitState = iota
	visitActive
	visitDone
)

// TopologicalOrder returns arena indexes ordered so every predecessor precedes its successors.
//
// Depth-first over successors, pushing a node once its successors are finished, then reversing.
// Meeting a node that is still on the current path reports a *CycleError.
func TopologicalOrder(g *Graph) ([]int, error) {
	n := g.Len()
	state := make([]visitState, n)
	stack := make([]int, 0, n)
	path := make([]int, 0, n)
	var cycle []int

	var visit func(i int) bool
	visit = func(i int) bool {
		state[i] = visitActive
		path = append(path, i)
		for _, s := range g.nodes[i].Successors {
			switch state[s] {
			case visitNew:
				if !visit(s) {
					return false
				}
			case visitActive:
				cycle = closeCycle(path, s)
				return false
			}
		}
		path = path[:len(path)-1]
		state[i] = visitDone
		stack = append(stack, i)
		return true
	}

	for i := 0; i < n; i++ {
		if state[i] != visitNew {
			continue
		}
		if !visit(i) {
			return nil, &CycleError{Kind: "dependency", Path: g.ids(cycle)}
		}
	}

	for l, r := 0, len(stack)-1; l < r; l, r = l+1, r-1 {
		stack[l], stack[r] = stack[r], stack[l]
	}
	return stack, nil
}

// CycleFor returns the first dependency cycle in g, or nil for a DAG.
func CycleFor(g *Graph) *CycleError {
	if _, err := TopologicalOrder(g); err != nil {
		var cycleErr *CycleError
		if errors.As(err, &cycleErr) {
			return cycleErr
		}
	}
	return nil
}

// closeCycle slices the active path from the revisited node and closes the loop.
func closeCycle(path []int, revisited int) []int {
	start := 0
	for k, i := range path {
		if i == revisited {
			start = k
			break
		}
	}
	out := append([]int(nil), path[start:]...)
	return append(out, revisited)
}

func (g *Graph) ids(idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.nodes[i].Activity.ID)
	}
	return out
}
