package schedule

import (
	"fmt"

	"github.com/hylla/groundline/internal/domain"
)

// DefaultCriticalTolerance absorbs day-rounding noise when flagging zero float.
const DefaultCriticalTolerance = 0.5

// CPM holds the derived critical-path values for one activity, in days from project start.
type CPM struct {
	ES         int  `json:"es"`
	EF         int  `json:"ef"`
	LS         int  `json:"ls"`
	LF         int  `json:"lf"`
	Float      int  `json:"float"`
	IsCritical bool `json:"isCritical"`
}

// ScheduledActivity is an activity merged with its CPM values.
type ScheduledActivity struct {
	domain.Activity
	Duration   int  `json:"duration"`
	CPM        CPM  `json:"cpm"`
	IsCritical bool `json:"isCritical"`
}

// Schedule is the read-only annotated view produced by Compute.
type Schedule struct {
	Activities      []ScheduledActivity `json:"activities"`
	ProjectDuration int                 `json:"project_duration"`
	Order           []string            `json:"order"`
	Warnings        []Warning           `json:"warnings,omitempty"`

	graph *Graph
	pos   map[string]int
}

// Option tunes Compute.
type Option func(*options)

type options struct {
	tolerance float64
}

// WithCriticalTolerance overrides the float threshold below which an activity is critical.
func WithCriticalTolerance(tolerance float64) Option {
	return func(o *options) {
		if tolerance > 0 {
			o.tolerance = tolerance
		}
	}
}

// Compute runs the forward and backward CPM passes. Activities keep their input order in the
// result. Empty input yields an empty schedule. Input slices are never modified.
func Compute(activities []domain.Activity, edges []domain.Dependency, opts ...Option) (Schedule, error) {
	cfg := options{tolerance: DefaultCriticalTolerance}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(activities) == 0 {
		return Schedule{Activities: []ScheduledActivity{}, Order: []string{}}, nil
	}

	g := BuildGraph(activities, edges)
	order, err := TopologicalOrder(g)
	if err != nil {
		return Schedule{}, fmt.Errorf("order activities: %w", err)
	}

	n := g.Len()
	dur := make([]int, n)
	values := make([]CPM, n)
	for i := 0; i < n; i++ {
		dur[i] = g.nodes[i].Activity.DurationDays()
	}

	projectDuration := 0
	for _, i := range order {
		es := 0
		for _, p := range g.nodes[i].Predecessors {
			if values[p].EF > es {
				es = values[p].EF
			}
		}
		values[i].ES = es
		values[i].EF = es + dur[i]
		if values[i].EF > projectDuration {
			projectDuration = values[i].EF
		}
	}

	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		lf := projectDuration
		if succ := g.nodes[i].Successors; len(succ) > 0 {
			lf = values[succ[0]].LS
			for _, s := range succ[1:] {
				if values[s].LS < lf {
					lf = values[s].LS
				}
			}
		}
		values[i].LF = lf
		values[i].LS = lf - dur[i]
		values[i].Float = values[i].LS - values[i].ES
		values[i].IsCritical = float64(values[i].Float) < cfg.tolerance
	}

	out := Schedule{
		Activities:      make([]ScheduledActivity, 0, n),
		ProjectDuration: projectDuration,
		Order:           g.ids(order),
		Warnings:        g.Warnings(),
		graph:           g,
		pos:             make(map[string]int, n),
	}
	for i := 0; i < n; i++ {
		out.pos[g.nodes[i].Activity.ID] = i
		out.Activities = append(out.Activities, ScheduledActivity{
			Activity:   g.nodes[i].Activity,
			Duration:   dur[i],
			CPM:        values[i],
			IsCritical: values[i].IsCritical,
		})
	}
	return out, nil
}

// Lookup returns the scheduled entry for one activity id.
func (s Schedule) Lookup(id string) (ScheduledActivity, bool) {
	i, ok := s.pos[id]
	if !ok {
		return ScheduledActivity{}, false
	}
	return s.Activities[i], true
}

// Critical returns the critical activities in topological order.
func (s Schedule) Critical() []ScheduledActivity {
	out := make([]ScheduledActivity, 0)
	for _, id := range s.Order {
		if a, ok := s.Lookup(id); ok && a.IsCritical {
			out = append(out, a)
		}
	}
	return out
}

// CriticalPath returns one connected chain of critical activities running from an activity
// with no predecessors to one with no successors. At each step the critical candidate with the
// least float wins, then the earliest start, so tolerated near-critical activities never hide
// the zero-float chain.
func (s Schedule) CriticalPath() []string {
	if s.graph == nil || len(s.Activities) == 0 {
		return nil
	}
	var sources []int
	for _, id := range s.Order {
		i := s.pos[id]
		if len(s.graph.nodes[i].Predecessors) == 0 {
			sources = append(sources, i)
		}
	}
	cur := s.tightest(sources)
	if cur < 0 {
		return nil
	}

	path := []string{s.Activities[cur].ID}
	for {
		next := s.tightest(s.graph.nodes[cur].Successors)
		if next < 0 {
			break
		}
		path = append(path, s.Activities[next].ID)
		cur = next
	}
	return path
}

// tightest picks the critical candidate with the least float, then the earliest start.
// It returns -1 when no candidate is critical.
func (s Schedule) tightest(candidates []int) int {
	best := -1
	for _, i := range candidates {
		a := s.Activities[i]
		if !a.IsCritical {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := s.Activities[best]
		if a.CPM.Float < b.CPM.Float || (a.CPM.Float == b.CPM.Float && a.CPM.ES < b.CPM.ES) {
			best = i
		}
	}
	return best
}
