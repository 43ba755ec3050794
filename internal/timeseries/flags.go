package timeseries

import (
	"sort"
	"time"

	"github.com/nens/brostar-sync/internal/lizard"
	"github.com/nens/brostar-sync/internal/types"
)

const (
	QCApproved     = "goedgekeurd"
	QCUndecided    = "onbeslist"
	QCRejected     = "afgekeurd"
	QCNotAssessed  = "nogNietBeoordeeld"
	QCUnknown      = "onbekend"
	CensorAboveMax = "groterDanLimietwaarde"
	CensorBelowMin = "kleinerDanLimietwaarde"
)

// Upper-exclusive flag buckets: a flag maps to the label of the smallest
// threshold strictly greater than it.
var qcThresholds = map[int]string{
	2:   QCApproved,
	5:   QCUndecided,
	8:   QCRejected,
	100: QCNotAssessed,
	200: QCUnknown,
}

// QualityControlFlag maps an asset-platform validation flag onto the
// registry's quality-control vocabulary. An absent flag means the value was
// never assessed.
func QualityControlFlag(flag *int) string {
	if flag == nil {
		return QCNotAssessed
	}

	thresholds := make([]int, 0, len(qcThresholds))
	for threshold := range qcThresholds {
		thresholds = append(thresholds, threshold)
	}
	sort.Ints(thresholds)

	for _, threshold := range thresholds {
		if *flag < threshold {
			return qcThresholds[threshold]
		}
	}
	return QCUnknown
}

// CensorLimits carries the tube levels bounding censored values: a value
// above the detection range is capped by the reference level, one below it
// by the filter bottom.
type CensorLimits struct {
	ReferenceLevel    *float64
	FilterBottomLevel *float64
}

// censor applies only to absent values: a rejected absent value is censored
// by its detection-limit marker, any other absent value is simply unknown.
// Measured values are never censored.
func censor(status string, value *float64, detectionLimit string, limits CensorLimits) (*string, *types.Float) {
	if value != nil {
		return nil, nil
	}

	if status != QCRejected {
		reason := QCUnknown
		return &reason, nil
	}

	switch detectionLimit {
	case ">":
		reason := CensorAboveMax
		return &reason, floatPtr(limits.ReferenceLevel)
	case "<":
		reason := CensorBelowMin
		return &reason, floatPtr(limits.FilterBottomLevel)
	default:
		reason := QCUnknown
		return &reason, nil
	}
}

func floatPtr(v *float64) *types.Float {
	if v == nil {
		return nil
	}
	f := types.Float(*v)
	return &f
}

// BuildTimeValuePairs converts asset-platform events into registry
// time/value pairs, preserving order. Event timestamps are rebased onto
// Amsterdam wall time with an explicit offset.
func BuildTimeValuePairs(events []lizard.Event, limits CensorLimits) ([]types.TimeValuePair, error) {
	pairs := make([]types.TimeValuePair, 0, len(events))
	for _, event := range events {
		when, err := time.Parse(time.RFC3339, event.Time)
		if err != nil {
			return nil, err
		}

		status := QualityControlFlag(event.Flag)
		reason, limit := censor(status, event.Value, event.DetectionLimit, limits)
		pairs = append(pairs, types.TimeValuePair{
			Time:                 types.FormatTimestamp(when),
			Value:                floatPtr(event.Value),
			StatusQualityControl: status,
			CensorReason:         reason,
			CensoringLimitvalue:  limit,
		})
	}
	return pairs, nil
}

// DefaultChunkSize is the registry's practical upload ceiling per addition.
const DefaultChunkSize = 7000

// ChunkPairs splits a series into consecutive chunks of at most size pairs.
// Order within and across chunks matches the input.
func ChunkPairs(pairs []types.TimeValuePair, size int) [][]types.TimeValuePair {
	if size <= 0 {
		size = DefaultChunkSize
	}

	chunks := make([][]types.TimeValuePair, 0, (len(pairs)+size-1)/size)
	for start := 0; start < len(pairs); start += size {
		end := start + size
		if end > len(pairs) {
			end = len(pairs)
		}
		chunks = append(chunks, pairs[start:end])
	}
	return chunks
}
