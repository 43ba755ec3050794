package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nens/brostar-sync/internal/audit"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

// ObservationsProbe reports whether a GLD dossier already holds observations
// on the public registry. Used by the skip-registered dedup policy.
type ObservationsProbe func(ctx context.Context, broID string) (bool, error)

const publicGLDSummaryURL = "https://publiek.broservices.nl/gm/gld/v1/objects/%s/observationsSummary"

// NewPublicObservationsProbe builds a probe against the public BRO service.
// The public service needs no credentials.
func NewPublicObservationsProbe() ObservationsProbe {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 6
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.CheckRetry = func(ctx context.Context, _ *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = 30 * time.Second
	client := retryClient.StandardClient()

	return func(ctx context.Context, broID string) (bool, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet, fmt.Sprintf(publicGLDSummaryURL, broID), nil)
		if err != nil {
			return false, fmt.Errorf("coordinator: construct observations probe: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return false, fmt.Errorf("coordinator: probe observations of %s: %w", broID, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("coordinator: read observations of %s: %w", broID, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return false, fmt.Errorf("coordinator: observations probe of %s returned %d", broID, resp.StatusCode)
		}

		var summaries []json.RawMessage
		if err := json.Unmarshal(body, &summaries); err != nil {
			return false, fmt.Errorf("coordinator: decode observations of %s: %w", broID, err)
		}
		return len(summaries) > 0, nil
	}
}

// RetargetResult reports the outcome of moving one dossier's additions.
type RetargetResult struct {
	CurrentID string
	TargetID  string
	Moved     int
	Skipped   bool
	Err       error
}

// RetargetDossier moves every GLD addition from one dossier to another:
// each addition is deleted from the current dossier first, and only
// after that delete reaches COMPLETED is it resubmitted as a registration
// against the target. A failed delete aborts the recreate for that addition,
// otherwise the same observation would exist in two dossiers at once.
func (c *Coordinator) RetargetDossier(ctx context.Context, currentID, targetID string) RetargetResult {
	ctx, span := tracer.Start(ctx, "Coordinator.RetargetDossier", trace.WithAttributes(
		attribute.String("current_bro_id", currentID),
		attribute.String("target_bro_id", targetID),
	))
	defer span.End()

	result := RetargetResult{CurrentID: currentID, TargetID: targetID}

	if c.dedup == DedupSkipRegistered && c.probe != nil {
		registered, err := c.probe(ctx, targetID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "observations probe failed")
			result.Err = err
			return result
		}
		if registered {
			audit.LogTaskSkipped(c.auditCtx, targetID, "target dossier already holds observations")
			span.SetStatus(codes.Ok, "skipped, target already registered")
			result.Skipped = true
			return result
		}
	}

	tasks, err := c.registry.ListUploadTasks(ctx, url.Values{
		"registration_type": {string(types.RegistrationTypeGLDAddition)},
		"bro_id":            {currentID},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list dossier additions")
		result.Err = err
		return result
	}

	for _, listed := range tasks {
		task, err := c.registry.UploadTaskDetail(ctx, listed.UUID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch addition detail")
			result.Err = err
			return result
		}

		if err := c.moveAddition(ctx, task, currentID, targetID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to move addition")
			result.Err = err
			return result
		}
		result.Moved++
	}

	span.SetAttributes(attribute.Int("moved", result.Moved))
	span.SetStatus(codes.Ok, "retargeted dossier")
	return result
}

// moveAddition runs the two-phase move of one addition: delete from the
// current dossier, then recreate against the target.
func (c *Coordinator) moveAddition(ctx context.Context, task *types.UploadTask, currentID, targetID string) error {
	task.StripServerManaged()
	task.ClearDeliveryState()

	task.RequestType = types.RequestTypeDelete
	task.Metadata.CorrectionReason = types.CorrectionReasonOwn
	task.Metadata.BroID = currentID

	deleted, err := c.registry.PostUpload(ctx, task, true)
	if err != nil {
		return fmt.Errorf("coordinator: submit delete for %s: %w", currentID, err)
	}
	final, err := c.registry.AwaitCompleted(ctx, deleted.UUID)
	if err != nil {
		return fmt.Errorf("coordinator: await delete for %s: %w", currentID, err)
	}
	if final.Status != types.TaskStatusCompleted {
		audit.LogTaskFailed(c.auditCtx, final.UUID, string(final.Status), final.Diagnostics())
		return fmt.Errorf("coordinator: delete of addition in %s ended %s, recreate withheld: %s",
			currentID, final.Status, final.Diagnostics())
	}

	task.ClearDeliveryState()
	task.RequestType = types.RequestTypeRegistration
	task.Metadata.CorrectionReason = ""
	task.Metadata.BroID = targetID
	task.Metadata.RequestReference = strings.ReplaceAll(task.Metadata.RequestReference, currentID, targetID)

	created, err := c.registry.PostUpload(ctx, task, true)
	if err != nil {
		return fmt.Errorf("coordinator: submit recreate for %s: %w", targetID, err)
	}
	final, err = c.registry.AwaitCompleted(ctx, created.UUID)
	if err != nil {
		return fmt.Errorf("coordinator: await recreate for %s: %w", targetID, err)
	}
	if final.Status != types.TaskStatusCompleted {
		audit.LogTaskFailed(c.auditCtx, final.UUID, string(final.Status), final.Diagnostics())
		return fmt.Errorf("coordinator: recreate of addition in %s ended %s: %s",
			targetID, final.Status, final.Diagnostics())
	}

	audit.LogTaskCompleted(c.auditCtx, final.UUID, targetID)
	return nil
}

// RetargetPair names one dossier move in a batch run.
type RetargetPair struct {
	CurrentID string
	TargetID  string
}

// RetargetBatch retargets a set of dossiers, continuing past per-dossier
// failures. Every source dossier processed without error ends up on the
// delete list so the originals can be cleaned up manually afterwards;
// skipped ones too, since their target already holds the observations.
func (c *Coordinator) RetargetBatch(
	ctx context.Context,
	pairs []RetargetPair,
	deleteList *audit.DeleteList,
) []RetargetResult {
	results := make([]RetargetResult, 0, len(pairs))
	for _, pair := range pairs {
		result := c.RetargetDossier(ctx, pair.CurrentID, pair.TargetID)
		if result.Err != nil {
			logger.Logger.ErrorContext(ctx, "dossier retarget failed, continuing",
				"current_bro_id", pair.CurrentID, "target_bro_id", pair.TargetID, "error", result.Err)
		} else if deleteList != nil {
			deleteList.Add(pair.CurrentID)
		}
		results = append(results, result)
	}
	return results
}
