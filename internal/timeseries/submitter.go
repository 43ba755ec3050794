package timeseries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nens/brostar-sync/internal/audit"
	"github.com/nens/brostar-sync/internal/brostar"
	"github.com/nens/brostar-sync/internal/lizard"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

var tracer = otel.Tracer("github.com/nens/brostar-sync/internal/timeseries")

const (
	defaultConfirmPause = 5 * time.Second
	// five status checks in all: the initial attempt plus four retries
	defaultConfirmRetries = 4
)

// Series names the dossier one run of additions is delivered against, plus
// the shared observation metadata every chunk inherits.
type Series struct {
	BroID            string
	ProjectNumber    string
	QualityRegime    string
	RequestReference string

	// Template carries the observation process fields; positions, pairs and
	// identifiers are filled per chunk.
	Template types.GLDAddition

	// TimeseriesURL is the asset-platform source, needed to advance the
	// delivery watermark.
	TimeseriesURL string
}

// ChunkOutcome reports the delivery of one chunk.
type ChunkOutcome struct {
	Index     int
	Pairs     int
	TaskUUID  string
	Status    types.TaskStatus
	Delivered bool
}

// Submitter delivers long observation series as ordered chunks of additions
// and advances the asset platform's watermark only for chunks the registry
// confirmed.
type Submitter struct {
	registry       *brostar.Client
	assets         *lizard.Client
	auditCtx       audit.Context
	chunkSize      int
	confirmPause   time.Duration
	confirmRetries uint64
}

type SubmitterOption func(*Submitter)

func WithChunkSize(size int) SubmitterOption {
	return func(s *Submitter) {
		s.chunkSize = size
	}
}

func WithAuditContext(c audit.Context) SubmitterOption {
	return func(s *Submitter) {
		s.auditCtx = c
	}
}

func WithConfirmPause(pause time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.confirmPause = pause
	}
}

func NewSubmitter(registry *brostar.Client, assets *lizard.Client, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		registry:       registry,
		assets:         assets,
		chunkSize:      DefaultChunkSize,
		confirmPause:   defaultConfirmPause,
		confirmRetries: defaultConfirmRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit converts the events into time/value pairs and delivers them chunk
// by chunk. A chunk that cannot be confirmed is logged with its payload
// context and skipped, its watermark left untouched, and delivery moves on
// to the next chunk. The outcomes show per chunk what was delivered; the
// returned error aggregates the failed ones.
func (s *Submitter) Submit(
	ctx context.Context,
	series Series,
	events []lizard.Event,
	limits CensorLimits,
) ([]ChunkOutcome, error) {
	ctx, span := tracer.Start(ctx, "Submitter.Submit", trace.WithAttributes(
		attribute.String("bro_id", series.BroID),
		attribute.Int("events.count", len(events)),
	))
	defer span.End()

	pairs, err := BuildTimeValuePairs(events, limits)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build time value pairs")
		return nil, err
	}

	chunks := ChunkPairs(pairs, s.chunkSize)
	outcomes := make([]ChunkOutcome, 0, len(chunks))
	var failures []error
	offset := 0

	for index, chunk := range chunks {
		chunkEvents := events[offset : offset+len(chunk)]
		offset += len(chunk)

		outcome, err := s.submitChunk(ctx, series, index, chunk)
		outcomes = append(outcomes, outcome)
		if err == nil {
			err = s.advanceWatermark(ctx, series.TimeseriesURL, chunkEvents)
		}
		if err != nil {
			span.RecordError(err)
			logger.Logger.ErrorContext(ctx, "chunk delivery failed, continuing",
				"bro_id", series.BroID,
				"chunk", index+1,
				"pairs", len(chunk),
				"begin_position", types.DatePart(chunk[0].Time),
				"end_position", types.DatePart(chunk[len(chunk)-1].Time),
				"task_uuid", outcome.TaskUUID,
				"error", err)
			failures = append(failures, err)
		}
	}

	span.SetAttributes(attribute.Int("chunks.count", len(chunks)))
	if len(failures) > 0 {
		span.SetStatus(codes.Error, "delivery ended with failed chunks")
		return outcomes, fmt.Errorf("timeseries: %d of %d chunks failed: %w",
			len(failures), len(chunks), errors.Join(failures...))
	}
	span.SetStatus(codes.Ok, "delivered series")
	return outcomes, nil
}

func (s *Submitter) submitChunk(
	ctx context.Context,
	series Series,
	index int,
	chunk []types.TimeValuePair,
) (ChunkOutcome, error) {
	outcome := ChunkOutcome{Index: index, Pairs: len(chunk)}

	addition := series.Template
	addition.TimeValuePairs = chunk
	addition.BeginPosition = types.DatePart(chunk[0].Time)
	addition.EndPosition = types.DatePart(chunk[len(chunk)-1].Time)
	addition.ResultTime = chunk[len(chunk)-1].Time
	addition.Date = addition.EndPosition
	if err := addition.Validate(); err != nil {
		return outcome, err
	}

	task := types.UploadTask{
		BroDomain:        types.BroDomainGLD,
		ProjectNumber:    series.ProjectNumber,
		RegistrationType: types.RegistrationTypeGLDAddition,
		RequestType:      types.RequestTypeRegistration,
		Metadata: types.UploadTaskMetadata{
			RequestReference: fmt.Sprintf("%s-chunk-%d", series.RequestReference, index+1),
			QualityRegime:    series.QualityRegime,
			BroID:            series.BroID,
		},
		SourceDocument: &addition,
	}
	if err := task.Validate(); err != nil {
		return outcome, err
	}

	created, err := s.registry.PostUpload(ctx, &task, true)
	if err != nil {
		return outcome, err
	}
	outcome.TaskUUID = created.UUID

	final, err := s.registry.AwaitCompleted(ctx, created.UUID)
	if err != nil {
		return outcome, err
	}

	if !final.Status.Terminal() && final.Status != types.TaskStatusUnfinished {
		final, err = s.confirmDelivery(ctx, created.UUID)
		if err != nil {
			return outcome, err
		}
	}
	outcome.Status = final.Status

	// UNFINISHED means the registry accepted the delivery but has not closed
	// it out yet; the observations are on record, so the chunk counts as
	// delivered.
	switch final.Status {
	case types.TaskStatusCompleted, types.TaskStatusUnfinished:
		outcome.Delivered = true
		audit.LogChunkDelivered(s.auditCtx, series.BroID, index, len(chunk), string(final.Status))
		return outcome, nil
	default:
		audit.LogTaskFailed(s.auditCtx, final.UUID, string(final.Status), final.Diagnostics())
		return outcome, fmt.Errorf("timeseries: chunk %d of %s ended %s: %s",
			index, series.BroID, final.Status, final.Diagnostics())
	}
}

// confirmDelivery nudges a task that is still processing after the polling
// ceiling: ask the registry to re-evaluate, then re-read, a few times over.
func (s *Submitter) confirmDelivery(ctx context.Context, id string) (*types.UploadTask, error) {
	var task *types.UploadTask

	backoff := retry.WithMaxRetries(s.confirmRetries, retry.NewConstant(s.confirmPause))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.registry.CheckStatus(ctx, id); err != nil {
			logger.Logger.WarnContext(ctx, "status check failed, retrying", "uuid", id, "error", err)
			return retry.RetryableError(err)
		}

		next, err := s.registry.UploadTaskDetail(ctx, id)
		if err != nil {
			logger.Logger.WarnContext(ctx, "status fetch failed, retrying", "uuid", id, "error", err)
			return retry.RetryableError(err)
		}
		task = next

		if !task.Status.Terminal() && task.Status != types.TaskStatusUnfinished {
			return retry.RetryableError(fmt.Errorf("timeseries: task %s still %s", id, task.Status))
		}
		return nil
	})
	if err != nil {
		if task != nil {
			return task, nil
		}
		return nil, err
	}
	return task, nil
}

// advanceWatermark marks the source events as delivered so the next run
// starts past them. Only confirmed chunks reach this point.
func (s *Submitter) advanceWatermark(ctx context.Context, timeseriesURL string, events []lizard.Event) error {
	if timeseriesURL == "" {
		return nil
	}

	marked := make([]lizard.Event, len(events))
	copy(marked, events)
	for i := range marked {
		marked[i].ValidationCode = "V"
	}
	return s.assets.PostEvents(ctx, timeseriesURL, marked)
}
