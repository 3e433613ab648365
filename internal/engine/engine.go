// Package engine computes project schedules with the Critical Path Method and
// derives per-task and per-project risk levels.
//
// Every call allocates its own graph and schedule; nothing is shared between
// calls, so Calculate is safe to run concurrently.
package engine

// Calculate validates the tasks, schedules them and classifies their risk.
// On error no partial result is returned.
func Calculate(tasks []TaskInput) (*ProjectResult, error) {
	g, err := BuildGraph(tasks)
	if err != nil {
		return nil, err
	}

	sched := ScheduleGraph(g)

	result := &ProjectResult{
		Tasks:             make([]TaskResult, len(tasks)),
		TotalDurationDays: sched.TotalDuration,
		CriticalPathIDs:   make([]string, 0, len(sched.CriticalPath)),
	}

	for i, t := range tasks {
		ts := sched.Tasks[i]

		blocks := make([]string, 0, len(g.Succs[i]))
		for _, succ := range g.Succs[i] {
			blocks = append(blocks, tasks[succ].ID)
		}
		preds := make([]string, len(t.Predecessors))
		copy(preds, t.Predecessors)
		blockedBy := make([]string, len(t.Predecessors))
		copy(blockedBy, t.Predecessors)

		input := t
		input.Predecessors = preds

		result.Tasks[i] = TaskResult{
			TaskInput:          input,
			ScheduledStartDay:  ts.ES,
			ScheduledFinishDay: ts.EF,
			LatestStartDay:     ts.LS,
			LatestFinishDay:    ts.LF,
			FloatDays:          ts.Float,
			IsCritical:         ts.IsCritical,
			BlocksTasks:        blocks,
			BlockedByTasks:     blockedBy,
		}
	}

	for _, i := range sched.CriticalPath {
		result.CriticalPathIDs = append(result.CriticalPathIDs, tasks[i].ID)
	}

	ClassifyRisk(result)

	return result, nil
}
