package engine

import (
	"container/heap"
	"math"
)

// Graph is the validated dependency structure of a task set. Tasks are
// addressed by their position in the input slice.
type Graph struct {
	Tasks []TaskInput
	Preds [][]int // predecessors of each task, duplicates collapsed
	Succs [][]int // successors of each task, in input order
	Order []int   // topological order, ties broken by input order

	index map[string]int
}

// BuildGraph validates the task set and builds its dependency graph.
// Checks run in a fixed order: empty set, duplicate IDs, durations, self
// dependencies, unknown predecessors and finally cycles.
func BuildGraph(tasks []TaskInput) (*Graph, error) {
	if len(tasks) == 0 {
		return nil, ErrEmptyTaskSet
	}

	g := &Graph{
		Tasks: tasks,
		Preds: make([][]int, len(tasks)),
		Succs: make([][]int, len(tasks)),
		index: make(map[string]int, len(tasks)),
	}

	// Index all tasks
	for i, t := range tasks {
		if _, exists := g.index[t.ID]; exists {
			return nil, &DuplicateTaskIDError{ID: t.ID}
		}
		g.index[t.ID] = i
	}

	for _, t := range tasks {
		if t.DurationDays < 0 || math.IsNaN(t.DurationDays) || math.IsInf(t.DurationDays, 0) {
			return nil, &InvalidDurationError{TaskID: t.ID, Duration: t.DurationDays}
		}
	}

	for _, t := range tasks {
		for _, pred := range t.Predecessors {
			if pred == t.ID {
				return nil, &SelfDependencyError{TaskID: t.ID}
			}
		}
	}

	for i, t := range tasks {
		seen := make(map[int]bool, len(t.Predecessors))
		for _, pred := range t.Predecessors {
			p, ok := g.index[pred]
			if !ok {
				return nil, &UnknownPredecessorError{TaskID: t.ID, PredecessorID: pred}
			}
			if seen[p] {
				continue
			}
			seen[p] = true
			g.Preds[i] = append(g.Preds[i], p)
		}
	}

	// Successor lists are filled by walking tasks in input order so they
	// come out sorted by input position.
	for i := range tasks {
		for _, p := range g.Preds[i] {
			g.Succs[p] = append(g.Succs[p], i)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.Order = order

	return g, nil
}

// topoSort runs Kahn's algorithm, always releasing the ready task with the
// lowest input position first.
func (g *Graph) topoSort() ([]int, error) {
	inDegree := make([]int, len(g.Tasks))
	ready := &indexQueue{}
	for i := range g.Tasks {
		inDegree[i] = len(g.Preds[i])
		if inDegree[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order := make([]int, 0, len(g.Tasks))
	for ready.Len() > 0 {
		node := heap.Pop(ready).(int)
		order = append(order, node)

		// Reduce in-degree of successors
		for _, succ := range g.Succs[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				heap.Push(ready, succ)
			}
		}
	}

	if len(order) != len(g.Tasks) {
		return nil, g.cycleError(inDegree)
	}
	return order, nil
}

// cycleError finds one cycle among the tasks Kahn's algorithm could not
// release. Every such task still has an unreleased predecessor, so walking
// predecessors from any of them must revisit a task.
func (g *Graph) cycleError(inDegree []int) error {
	start := -1
	for i, d := range inDegree {
		if d > 0 {
			start = i
			break
		}
	}
	if start < 0 {
		return &CyclicDependencyError{}
	}

	seenAt := make(map[int]int)
	var walk []int
	cur := start
	for {
		if pos, ok := seenAt[cur]; ok {
			walk = walk[pos:]
			break
		}
		seenAt[cur] = len(walk)
		walk = append(walk, cur)

		next := -1
		for _, p := range g.Preds[cur] {
			if inDegree[p] > 0 {
				next = p
				break
			}
		}
		if next < 0 {
			// Unreachable for a consistent in-degree table
			return &CyclicDependencyError{TaskID: g.Tasks[cur].ID}
		}
		cur = next
	}

	// The walk followed edges backwards; flip it to predecessor -> task order
	// and rotate so the earliest task in the input leads.
	for i, j := 0, len(walk)-1; i < j; i, j = i+1, j-1 {
		walk[i], walk[j] = walk[j], walk[i]
	}
	lead := 0
	for i, n := range walk {
		if n < walk[lead] {
			lead = i
		}
	}
	walk = append(walk[lead:], walk[:lead]...)

	cycle := make([]string, 0, len(walk)+1)
	for _, n := range walk {
		cycle = append(cycle, g.Tasks[n].ID)
	}
	cycle = append(cycle, cycle[0])

	return &CyclicDependencyError{TaskID: cycle[0], Cycle: cycle}
}

// indexQueue is a min-heap of input positions
type indexQueue []int

func (q indexQueue) Len() int           { return len(q) }
func (q indexQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q indexQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *indexQueue) Push(x interface{}) {
	*q = append(*q, x.(int))
}

func (q *indexQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
