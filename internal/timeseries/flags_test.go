package timeseries_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nens/brostar-sync/internal/lizard"
	"github.com/nens/brostar-sync/internal/timeseries"
	"github.com/nens/brostar-sync/internal/types"
)

func intPtr(v int) *int { return &v }

func float64Ptr(v float64) *float64 { return &v }

func TestQualityControlFlag(t *testing.T) {
	cases := []struct {
		name string
		flag *int
		want string
	}{
		{"NilFlag", nil, timeseries.QCNotAssessed},
		{"Zero", intPtr(0), timeseries.QCApproved},
		{"One", intPtr(1), timeseries.QCApproved},
		{"Two", intPtr(2), timeseries.QCUndecided},
		{"Four", intPtr(4), timeseries.QCUndecided},
		{"Five", intPtr(5), timeseries.QCRejected},
		{"Seven", intPtr(7), timeseries.QCRejected},
		{"Eight", intPtr(8), timeseries.QCNotAssessed},
		{"NinetyNine", intPtr(99), timeseries.QCNotAssessed},
		{"Hundred", intPtr(100), timeseries.QCUnknown},
		{"BeyondTable", intPtr(250), timeseries.QCUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, timeseries.QualityControlFlag(tc.flag))
		})
	}
}

func TestBuildTimeValuePairs(t *testing.T) {
	limits := timeseries.CensorLimits{
		ReferenceLevel:    float64Ptr(2.5),
		FilterBottomLevel: float64Ptr(-10.0),
	}

	t.Run("PreservesOrderAndConvertsTime", func(t *testing.T) {
		events := []lizard.Event{
			{Time: "2024-07-01T10:00:00Z", Value: float64Ptr(1.0), Flag: intPtr(0)},
			{Time: "2024-07-01T11:00:00Z", Value: float64Ptr(1.1), Flag: intPtr(3)},
		}

		pairs, err := timeseries.BuildTimeValuePairs(events, limits)
		require.NoError(t, err)
		require.Len(t, pairs, 2)

		assert.Equal(t, "2024-07-01T12:00:00+02:00", pairs[0].Time)
		assert.Equal(t, timeseries.QCApproved, pairs[0].StatusQualityControl)
		assert.Equal(t, "2024-07-01T13:00:00+02:00", pairs[1].Time)
		assert.Equal(t, timeseries.QCUndecided, pairs[1].StatusQualityControl)
	})

	t.Run("RejectedAbsentValueAboveRange", func(t *testing.T) {
		events := []lizard.Event{
			{Time: "2024-07-01T10:00:00Z", Flag: intPtr(6), DetectionLimit: ">"},
		}
		pairs, err := timeseries.BuildTimeValuePairs(events, limits)
		require.NoError(t, err)

		require.NotNil(t, pairs[0].CensorReason)
		assert.Equal(t, timeseries.CensorAboveMax, *pairs[0].CensorReason)
		require.NotNil(t, pairs[0].CensoringLimitvalue)
		assert.InDelta(t, 2.5, float64(*pairs[0].CensoringLimitvalue), 1e-9)
	})

	t.Run("RejectedAbsentValueBelowRange", func(t *testing.T) {
		events := []lizard.Event{
			{Time: "2024-07-01T10:00:00Z", Flag: intPtr(6), DetectionLimit: "<"},
		}
		pairs, err := timeseries.BuildTimeValuePairs(events, limits)
		require.NoError(t, err)

		require.NotNil(t, pairs[0].CensorReason)
		assert.Equal(t, timeseries.CensorBelowMin, *pairs[0].CensorReason)
		require.NotNil(t, pairs[0].CensoringLimitvalue)
		assert.InDelta(t, -10.0, float64(*pairs[0].CensoringLimitvalue), 1e-9)
	})

	t.Run("RejectedAbsentValueWithoutMarker", func(t *testing.T) {
		events := []lizard.Event{
			{Time: "2024-07-01T10:00:00Z", Flag: intPtr(6)},
		}
		pairs, err := timeseries.BuildTimeValuePairs(events, limits)
		require.NoError(t, err)

		require.NotNil(t, pairs[0].CensorReason)
		assert.Equal(t, timeseries.QCUnknown, *pairs[0].CensorReason)
		assert.Nil(t, pairs[0].CensoringLimitvalue)
	})

	t.Run("AbsentValueNotRejected", func(t *testing.T) {
		events := []lizard.Event{
			{Time: "2024-07-01T10:00:00Z", Flag: intPtr(0)},
		}
		pairs, err := timeseries.BuildTimeValuePairs(events, limits)
		require.NoError(t, err)

		require.NotNil(t, pairs[0].CensorReason)
		assert.Equal(t, timeseries.QCUnknown, *pairs[0].CensorReason)
		assert.Nil(t, pairs[0].CensoringLimitvalue)
	})

	t.Run("MeasuredValueNeverCensored", func(t *testing.T) {
		events := []lizard.Event{
			{Time: "2024-07-01T10:00:00Z", Value: float64Ptr(1.0), Flag: intPtr(6), DetectionLimit: ">"},
		}
		pairs, err := timeseries.BuildTimeValuePairs(events, limits)
		require.NoError(t, err)

		assert.Nil(t, pairs[0].CensorReason)
		assert.Nil(t, pairs[0].CensoringLimitvalue)
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		events := []lizard.Event{{Time: "yesterday"}}
		_, err := timeseries.BuildTimeValuePairs(events, limits)
		require.Error(t, err)
	})
}

func TestChunkPairs(t *testing.T) {
	pairs := make([]types.TimeValuePair, 15001)
	for i := range pairs {
		pairs[i].StatusQualityControl = timeseries.QCApproved
	}

	t.Run("SplitsAtChunkSize", func(t *testing.T) {
		chunks := timeseries.ChunkPairs(pairs, 7000)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 7000)
		assert.Len(t, chunks[1], 7000)
		assert.Len(t, chunks[2], 1)
	})

	t.Run("SingleChunk", func(t *testing.T) {
		chunks := timeseries.ChunkPairs(pairs[:100], 7000)
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0], 100)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, timeseries.ChunkPairs(nil, 7000))
	})

	t.Run("ExactMultiple", func(t *testing.T) {
		chunks := timeseries.ChunkPairs(pairs[:14000], 7000)
		require.Len(t, chunks, 2)
		assert.Len(t, chunks[1], 7000)
	})
}
