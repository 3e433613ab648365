package engine

import "math"

// FloatTolerance is the relative tolerance under which a task's float counts
// as zero. It is scaled by the project duration when that exceeds one day.
const FloatTolerance = 1e-9

// TaskSchedule holds the CPM times of a single task
type TaskSchedule struct {
	ES, EF     float64 // earliest start/finish
	LS, LF     float64 // latest start/finish
	Float      float64
	IsCritical bool
}

// Schedule is the CPM analysis of a graph. Tasks is indexed like Graph.Tasks.
type Schedule struct {
	Tasks         []TaskSchedule
	TotalDuration float64
	CriticalPath  []int // input positions of zero-float tasks, ascending
}

// ScheduleGraph runs the forward and backward passes over a graph produced by
// BuildGraph. The graph is trusted to be acyclic.
func ScheduleGraph(g *Graph) *Schedule {
	n := len(g.Tasks)
	s := &Schedule{Tasks: make([]TaskSchedule, n)}

	// Forward pass: ES = max(EF of all predecessors)
	for _, i := range g.Order {
		ts := &s.Tasks[i]
		es := 0.0
		for _, p := range g.Preds[i] {
			if ef := s.Tasks[p].EF; ef > es {
				es = ef
			}
		}
		ts.ES = es
		ts.EF = es + g.Tasks[i].DurationDays
	}

	// Total project duration
	for i := range s.Tasks {
		if s.Tasks[i].EF > s.TotalDuration {
			s.TotalDuration = s.Tasks[i].EF
		}
	}

	// Backward pass: LF = min(LS of all successors), project finish for sinks
	for k := len(g.Order) - 1; k >= 0; k-- {
		i := g.Order[k]
		ts := &s.Tasks[i]
		lf := s.TotalDuration
		for _, succ := range g.Succs[i] {
			if ls := s.Tasks[succ].LS; ls < lf {
				lf = ls
			}
		}
		ts.LF = lf
		ts.LS = lf - g.Tasks[i].DurationDays
	}

	tol := FloatTolerance * math.Max(1, s.TotalDuration)
	for i := range s.Tasks {
		ts := &s.Tasks[i]
		ts.Float = ts.LS - ts.ES
		if math.Abs(ts.Float) <= tol {
			ts.Float = 0
			ts.IsCritical = true
			s.CriticalPath = append(s.CriticalPath, i)
		}
	}

	return s
}
