package schedule

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hylla/groundline/internal/domain"
)

// Rollup errors.
var (
	ErrActivityNotFound  = errors.New("activity not found")
	ErrAggregateActivity = errors.New("activity has children; its progress is computed from them")
	ErrActivityClosed    = errors.New("activity is closed")
)

// ProgressUpdate is one manually reported percent for a leaf activity.
type ProgressUpdate struct {
	ActivityID string
	Percent    int
	Notes      string
}

// Rollup lists every entity the caller must persist after a progress update.
// Ancestors are ordered child before parent.
type Rollup struct {
	Leaf      domain.Activity   `json:"leaf"`
	Ancestors []domain.Activity `json:"ancestors"`
}

// Hierarchy indexes a project's activities by id and by parent.
type Hierarchy struct {
	byID     map[string]domain.Activity
	children map[string][]string
	order    []string
}

// NewHierarchy indexes the snapshot; later duplicates of an id are ignored.
func NewHierarchy(activities []domain.Activity) *Hierarchy {
	h := &Hierarchy{
		byID:     make(map[string]domain.Activity, len(activities)),
		children: make(map[string][]string),
		order:    make([]string, 0, len(activities)),
	}
	for _, a := range activities {
		if _, ok := h.byID[a.ID]; ok {
			continue
		}
		h.byID[a.ID] = a
		h.order = append(h.order, a.ID)
		if a.HasParent() {
			h.children[a.ParentID] = append(h.children[a.ParentID], a.ID)
		}
	}
	return h
}

// Get returns one activity by id.
func (h *Hierarchy) Get(id string) (domain.Activity, bool) {
	a, ok := h.byID[id]
	return a, ok
}

// Children returns the direct children of id in snapshot order.
func (h *Hierarchy) Children(id string) []domain.Activity {
	ids := h.children[id]
	out := make([]domain.Activity, 0, len(ids))
	for _, childID := range ids {
		out = append(out, h.byID[childID])
	}
	return out
}

// HasChildren reports whether id aggregates other activities.
func (h *Hierarchy) HasChildren(id string) bool {
	return len(h.children[id]) > 0
}

// Ancestors walks the parent chain of id, nearest first. A parent loop or a chain longer than
// the snapshot reports a *CycleError. Parents missing from the snapshot end the walk.
func (h *Hierarchy) Ancestors(id string) ([]domain.Activity, error) {
	cur, ok := h.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, id)
	}
	seen := map[string]struct{}{id: {}}
	path := []string{id}
	out := make([]domain.Activity, 0)
	for depth := 0; cur.HasParent(); depth++ {
		if depth >= len(h.byID) {
			return nil, &CycleError{Kind: "hierarchy", Path: path}
		}
		if _, loop := seen[cur.ParentID]; loop {
			return nil, &CycleError{Kind: "hierarchy", Path: append(path, cur.ParentID)}
		}
		parent, ok := h.byID[cur.ParentID]
		if !ok {
			break
		}
		seen[parent.ID] = struct{}{}
		path = append(path, parent.ID)
		out = append(out, parent)
		cur = parent
	}
	return out, nil
}

// ApplyProgress clamps and applies a leaf percent, then recomputes every ancestor's span and
// weighted percent, walking child to root. The input slice is not modified.
func ApplyProgress(activities []domain.Activity, req ProgressUpdate, now time.Time) (Rollup, error) {
	h := NewHierarchy(activities)
	id := strings.TrimSpace(req.ActivityID)
	leaf, ok := h.Get(id)
	if !ok {
		return Rollup{}, fmt.Errorf("%w: %s", ErrActivityNotFound, id)
	}
	if h.HasChildren(id) {
		return Rollup{}, fmt.Errorf("%w: %s", ErrAggregateActivity, leaf.Name)
	}
	if leaf.Status == domain.StatusClosed {
		return Rollup{}, fmt.Errorf("%w: %s", ErrActivityClosed, leaf.Name)
	}
	chain, err := h.Ancestors(id)
	if err != nil {
		return Rollup{}, err
	}

	leaf.ApplyPercent(req.Percent, now)
	h.byID[leaf.ID] = leaf

	return Rollup{Leaf: leaf, Ancestors: h.rollUp(chain, now)}, nil
}

// Reaggregate recomputes id itself, when it has children, and every ancestor above it. Callers
// use it after structural edits: adding, moving or rescheduling an activity.
func Reaggregate(activities []domain.Activity, id string, now time.Time) ([]domain.Activity, error) {
	h := NewHierarchy(activities)
	self, ok := h.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivityNotFound, id)
	}
	chain, err := h.Ancestors(id)
	if err != nil {
		return nil, err
	}
	if h.HasChildren(id) {
		chain = append([]domain.Activity{self}, chain...)
	}
	return h.rollUp(chain, now), nil
}

// rollUp aggregates chain in order, feeding each result into the next level.
func (h *Hierarchy) rollUp(chain []domain.Activity, now time.Time) []domain.Activity {
	out := make([]domain.Activity, 0, len(chain))
	for _, parent := range chain {
		parent = Aggregate(parent, h.Children(parent.ID), now)
		h.byID[parent.ID] = parent
		out = append(out, parent)
	}
	return out
}

// Aggregate recomputes a parent from its direct children: the span covers every child span and
// the percent is the weight-normalized average, rounded half away from zero. A parent without
// children is returned unchanged.
func Aggregate(parent domain.Activity, children []domain.Activity, now time.Time) domain.Activity {
	if len(children) == 0 {
		return parent
	}
	minStart := children[0].StartDate
	maxEnd := children[0].EndDate
	var weighted, total float64
	for _, c := range children {
		if c.StartDate.Before(minStart) {
			minStart = c.StartDate
		}
		if c.EndDate.After(maxEnd) {
			maxEnd = c.EndDate
		}
		w := c.Weight()
		weighted += float64(c.Percent) * w
		total += w
	}
	percent := 0
	if total > 0 {
		percent = int(math.Round(weighted / total))
	}
	parent.StartDate = minStart
	parent.EndDate = maxEnd
	parent.Percent = domain.ClampPercent(percent)
	parent.UpdatedAt = now.UTC()
	return parent
}
