package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyBatchedSplitsAndReportsProgress(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	var batches [][]int
	var progress []float64
	err := applyBatched(items, 3, func(batch []int) error {
		batches = append(batches, append([]int(nil), batch...))
		return nil
	}, func(pct float64) {
		progress = append(progress, pct)
	})

	require.NoError(t, err)
	require.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, batches)
	require.Len(t, progress, 3)
	require.InDelta(t, 3.0/7*100, progress[0], 1e-9)
	require.InDelta(t, 6.0/7*100, progress[1], 1e-9)
	require.Equal(t, 100.0, progress[2])
}

func TestApplyBatchedEmptyInputSkipsOp(t *testing.T) {
	calls := 0
	var progress []float64
	err := applyBatched(nil, 3, func(batch []int) error {
		calls++
		return nil
	}, func(pct float64) {
		progress = append(progress, pct)
	})

	require.NoError(t, err)
	require.Zero(t, calls, "empty input must not produce a batch call")
	require.Equal(t, []float64{100}, progress)
}

func TestApplyBatchedStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := applyBatched([]int{1, 2, 3, 4}, 2, func(batch []int) error {
		calls++
		if calls == 1 {
			return boom
		}
		return nil
	}, nil)

	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestApplyBatchedZeroSizeUsesSingleBatch(t *testing.T) {
	var batches [][]int
	err := applyBatched([]int{1, 2, 3}, 0, func(batch []int) error {
		batches = append(batches, batch)
		return nil
	}, nil)

	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
}
