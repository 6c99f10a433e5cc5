package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiffDisjointSets(t *testing.T) {
	plan := Diff([]string{"a", "b"}, []string{"c", "d"})

	require.Equal(t, []string{"c", "d"}, plan.Add)
	require.Equal(t, []string{"a", "b"}, plan.Remove)
	require.Empty(t, plan.Keep)
	require.False(t, plan.Empty())
}

func TestDiffOverlap(t *testing.T) {
	plan := Diff([]string{"a", "b", "c"}, []string{"b", "c", "d"})

	require.Equal(t, []string{"d"}, plan.Add)
	require.Equal(t, []string{"a"}, plan.Remove)
	require.Equal(t, []string{"b", "c"}, plan.Keep)
}

func TestDiffIdenticalSetsIsEmptyPlan(t *testing.T) {
	plan := Diff([]string{"a", "b"}, []string{"b", "a"})

	require.True(t, plan.Empty())
	require.ElementsMatch(t, []string{"a", "b"}, plan.Keep)
}

func TestDiffCollapsesDuplicates(t *testing.T) {
	plan := Diff([]string{"a", "a"}, []string{"b", "b", "a"})

	require.Equal(t, []string{"b"}, plan.Add)
	require.Equal(t, []string{"a"}, plan.Keep)
	require.Empty(t, plan.Remove)
}

func TestDiffEmptyDesiredRemovesEverything(t *testing.T) {
	plan := Diff([]string{"a", "b"}, nil)

	require.Empty(t, plan.Add)
	require.Equal(t, []string{"a", "b"}, plan.Remove)
}

func TestResultStatusNoOp(t *testing.T) {
	r := &Result[string]{Kept: []string{"a"}}
	require.Equal(t, NoOp, r.Status())
}

func TestResultStatusSuccess(t *testing.T) {
	r := &Result[string]{}
	r.RecordApplied("a", OpAdd)
	r.RecordApplied("b", OpRemove)
	require.Equal(t, Success, r.Status())
}

func TestResultStatusPartialSuccess(t *testing.T) {
	r := &Result[string]{}
	r.RecordApplied("a", OpAdd)
	r.RecordFailed("b", OpAdd, errors.New("boom"))
	require.Equal(t, PartialSuccess, r.Status())
	require.Equal(t, "boom", r.Failed[0].Msg)
}

func TestResultStatusFailure(t *testing.T) {
	r := &Result[string]{}
	r.RecordFailed("a", OpRemove, errors.New("boom"))
	require.Equal(t, Failure, r.Status())
}
