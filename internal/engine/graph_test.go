package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(id string, duration float64, preds ...string) TaskInput {
	return TaskInput{ID: id, Name: "Task " + id, DurationDays: duration, Predecessors: preds}
}

func TestBuildGraph_Diamond(t *testing.T) {
	g, err := BuildGraph([]TaskInput{
		task("A", 3),
		task("B", 2, "A"),
		task("C", 4, "A"),
		task("D", 1, "B", "C"),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3}, g.Order)
	assert.Equal(t, []int{1, 2}, g.Succs[0])
	assert.Equal(t, []int{1, 2}, g.Preds[3])
}

func TestBuildGraph_OrderFollowsInputOnTies(t *testing.T) {
	// Input lists the dependent first; the topological order must still put
	// its predecessor ahead while keeping independent tasks in input order.
	g, err := BuildGraph([]TaskInput{
		task("late", 1, "early"),
		task("x", 1),
		task("early", 1),
		task("y", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0, 3}, g.Order)
}

func TestBuildGraph_DuplicatePredecessorCollapsed(t *testing.T) {
	g, err := BuildGraph([]TaskInput{
		task("A", 1),
		task("B", 1, "A", "A"),
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, g.Preds[1])
	assert.Equal(t, []int{1}, g.Succs[0])
}

func TestBuildGraph_ValidationErrors(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		_, err := BuildGraph(nil)
		require.ErrorIs(t, err, ErrEmptyTaskSet)
		assert.ErrorIs(t, err, ErrInvalidTaskSet)
	})

	t.Run("Duplicate ID", func(t *testing.T) {
		_, err := BuildGraph([]TaskInput{task("A", 1), task("B", 1), task("A", 2)})
		var dup *DuplicateTaskIDError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "A", dup.ID)
		assert.ErrorIs(t, err, ErrInvalidTaskSet)
	})

	t.Run("Unknown predecessor", func(t *testing.T) {
		_, err := BuildGraph([]TaskInput{task("A", 1), task("B", 1, "A", "Z")})
		var unknown *UnknownPredecessorError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "B", unknown.TaskID)
		assert.Equal(t, "Z", unknown.PredecessorID)
		assert.ErrorIs(t, err, ErrInvalidTaskSet)
	})

	t.Run("Self dependency", func(t *testing.T) {
		_, err := BuildGraph([]TaskInput{task("A", 1), task("B", 1, "B")})
		var self *SelfDependencyError
		require.ErrorAs(t, err, &self)
		assert.Equal(t, "B", self.TaskID)
	})

	t.Run("Self dependency wins over unknown predecessor", func(t *testing.T) {
		_, err := BuildGraph([]TaskInput{task("A", 1, "Z"), task("B", 1, "B")})
		var self *SelfDependencyError
		assert.ErrorAs(t, err, &self)
	})

	t.Run("Negative duration", func(t *testing.T) {
		_, err := BuildGraph([]TaskInput{task("A", -1)})
		var bad *InvalidDurationError
		require.ErrorAs(t, err, &bad)
		assert.Equal(t, "A", bad.TaskID)
		assert.ErrorIs(t, err, ErrInvalidTaskSet)
	})

	t.Run("Cycle", func(t *testing.T) {
		// A -> B -> C -> A, with D hanging off the cycle
		_, err := BuildGraph([]TaskInput{
			task("D", 1, "C"),
			task("A", 1, "C"),
			task("B", 1, "A"),
			task("C", 1, "B"),
		})
		var cyc *CyclicDependencyError
		require.ErrorAs(t, err, &cyc)
		assert.ErrorIs(t, err, ErrInvalidTaskSet)
		assert.Equal(t, "A", cyc.TaskID)
		assert.Equal(t, []string{"A", "B", "C", "A"}, cyc.Cycle)
		assert.Contains(t, err.Error(), "A -> B -> C -> A")
	})

	t.Run("Two node cycle", func(t *testing.T) {
		_, err := BuildGraph([]TaskInput{task("A", 1, "B"), task("B", 1, "A")})
		var cyc *CyclicDependencyError
		require.ErrorAs(t, err, &cyc)
		assert.Equal(t, []string{"A", "B", "A"}, cyc.Cycle)
	})
}

func TestBuildGraph_ErrorsAreNotPlainSentinels(t *testing.T) {
	_, err := BuildGraph([]TaskInput{task("A", 1), task("A", 1)})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyTaskSet))
}
