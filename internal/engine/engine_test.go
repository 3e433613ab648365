package engine

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamond() []TaskInput {
	return []TaskInput{
		{ID: "A", Name: "Design", DurationDays: 3, UserRiskRating: 1},
		{ID: "B", Name: "Backend", DurationDays: 2, Predecessors: []string{"A"}, UserRiskRating: 4},
		{ID: "C", Name: "Frontend", DurationDays: 4, Predecessors: []string{"A"}, UserRiskRating: 3},
		{ID: "D", Name: "Release", DurationDays: 1, Predecessors: []string{"B", "C"}, UserRiskRating: 0},
	}
}

func TestCalculate_Diamond(t *testing.T) {
	result, err := Calculate(diamond())
	require.NoError(t, err)

	assert.Equal(t, 8.0, result.TotalDurationDays)
	assert.Equal(t, []string{"A", "C", "D"}, result.CriticalPathIDs)

	a, _ := result.Task("A")
	assert.Equal(t, []string{"B", "C"}, a.BlocksTasks)
	assert.Empty(t, a.BlockedByTasks)

	b, _ := result.Task("B")
	assert.Equal(t, 3.0, b.ScheduledStartDay)
	assert.Equal(t, 5.0, b.ScheduledFinishDay)
	assert.Equal(t, 2.0, b.FloatDays)
	assert.False(t, b.IsCritical)
	assert.Equal(t, []string{"A"}, b.BlockedByTasks)
	assert.Equal(t, []string{"D"}, b.BlocksTasks)

	d, _ := result.Task("D")
	assert.Equal(t, 7.0, d.ScheduledStartDay)
	assert.Equal(t, 8.0, d.ScheduledFinishDay)
	assert.Equal(t, []string{"B", "C"}, d.BlockedByTasks)
	assert.Empty(t, d.BlocksTasks)

	// Output keeps the input order
	ids := make([]string, len(result.Tasks))
	for i, tr := range result.Tasks {
		ids[i] = tr.ID
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids)
}

func TestCalculate_Risk(t *testing.T) {
	result, err := Calculate(diamond())
	require.NoError(t, err)

	cases := map[string]struct {
		score float64
		level RiskLevel
	}{
		"A": {35, RiskLevelMedium}, // 20 + 15 critical
		"B": {80, RiskLevelHigh},   // not critical
		"C": {75, RiskLevelHigh},   // 60 + 15 critical
		"D": {15, RiskLevelLow},
	}
	for id, want := range cases {
		tr, ok := result.Task(id)
		require.True(t, ok)
		assert.Equal(t, want.score, tr.RiskScore, id)
		assert.Equal(t, want.level, tr.RiskLevel, id)
	}

	assert.Equal(t, 2, result.HighRiskTaskCount)
	assert.Equal(t, RiskLevelHigh, result.OverallRiskLevel)
}

func TestCalculate_NoPartialResult(t *testing.T) {
	tasks := diamond()
	tasks[0].Predecessors = []string{"D"}

	result, err := Calculate(tasks)
	assert.Nil(t, result)
	var cyc *CyclicDependencyError
	assert.ErrorAs(t, err, &cyc)
}

func TestCalculate_OrderIndependence(t *testing.T) {
	tasks := []TaskInput{
		{ID: "A", DurationDays: 2, UserRiskRating: 2},
		{ID: "B", DurationDays: 5, Predecessors: []string{"A"}, UserRiskRating: 3},
		{ID: "C", DurationDays: 1, Predecessors: []string{"A"}, UserRiskRating: 5},
		{ID: "D", DurationDays: 3, Predecessors: []string{"C"}},
		{ID: "E", DurationDays: 2, Predecessors: []string{"B", "D"}, UserRiskRating: 1},
		{ID: "F", DurationDays: 7, UserRiskRating: 4},
		{ID: "G", DurationDays: 1.5, Predecessors: []string{"F"}},
	}
	base, err := Calculate(tasks)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		shuffled := make([]TaskInput, len(tasks))
		copy(shuffled, tasks)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := Calculate(shuffled)
		require.NoError(t, err)

		assert.Equal(t, base.TotalDurationDays, got.TotalDurationDays)
		assert.Equal(t, base.OverallRiskLevel, got.OverallRiskLevel)
		assert.Equal(t, base.HighRiskTaskCount, got.HighRiskTaskCount)
		assert.ElementsMatch(t, base.CriticalPathIDs, got.CriticalPathIDs)

		for _, want := range base.Tasks {
			tr, ok := got.Task(want.ID)
			require.True(t, ok)
			assert.Equal(t, want.ScheduledStartDay, tr.ScheduledStartDay)
			assert.Equal(t, want.ScheduledFinishDay, tr.ScheduledFinishDay)
			assert.Equal(t, want.FloatDays, tr.FloatDays)
			assert.Equal(t, want.IsCritical, tr.IsCritical)
			assert.Equal(t, want.RiskScore, tr.RiskScore)
			assert.ElementsMatch(t, want.BlocksTasks, tr.BlocksTasks)
		}

		// Critical path follows the order of this particular input
		var expected []string
		for _, tr := range got.Tasks {
			if tr.IsCritical {
				expected = append(expected, tr.ID)
			}
		}
		assert.Equal(t, expected, got.CriticalPathIDs)
	}
}

func TestCalculate_DoesNotAliasInput(t *testing.T) {
	tasks := diamond()
	result, err := Calculate(tasks)
	require.NoError(t, err)

	result.Tasks[3].Predecessors[0] = "mutated"
	result.Tasks[3].BlockedByTasks[1] = "mutated"
	assert.Equal(t, []string{"B", "C"}, tasks[3].Predecessors)
}

func TestCalculate_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := Calculate(diamond())
			if assert.NoError(t, err) {
				assert.Equal(t, 8.0, result.TotalDurationDays)
			}
		}()
	}
	wg.Wait()
}
