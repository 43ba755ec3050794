package coordinator

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/audit"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

// Signatures the registry's Dutch-language error log is scanned for. The
// match is exact and case-sensitive; an unrecognised log is left untouched
// for a human to look at.
const (
	SignatureEventOrder       = "mag niet voor de laatst geregistreerde gebeurtenis"
	SignatureEventDate        = "moet liggen na of op de inrichtingsdatum"
	SignatureAlreadyDelivered = "al eerder via het bronhouderportaal aangeleverd"
)

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

type remediation struct {
	signature string
	apply     func(ctx context.Context, c *Coordinator, task *types.UploadTask) error
}

// Ordered: the first matching row wins and at most one row is applied per
// task per pass.
var remediations = []remediation{
	{SignatureEventOrder, remediateEventOrder},
	{SignatureEventDate, remediateEventDate},
	{SignatureAlreadyDelivered, remediateAlreadyDelivered},
}

// RemediateFailed scans every FAILED task's diagnostics for known error
// signatures and patches the matching ones so the registry can retry them.
// Per-task failures are logged and the scan continues.
func (c *Coordinator) RemediateFailed(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.RemediateFailed")
	defer span.End()

	tasks, err := c.registry.ListUploadTasks(ctx, url.Values{
		"status": {string(types.TaskStatusFailed)},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list failed tasks")
		return 0, err
	}

	remediated := 0
	for i := range tasks {
		task := &tasks[i]
		diagnostics := task.Diagnostics()

		for _, row := range remediations {
			if !strings.Contains(diagnostics, row.signature) {
				continue
			}
			if err := row.apply(ctx, c, task); err != nil {
				logger.Logger.ErrorContext(ctx, "remediation failed, continuing",
					"uuid", task.UUID, "signature", row.signature, "error", err)
				break
			}
			audit.LogTaskRemediated(c.auditCtx, task.UUID, row.signature)
			remediated++
			break
		}
	}

	span.SetAttributes(attribute.Int("remediated", remediated))
	span.SetStatus(codes.Ok, "finished remediation pass")
	return remediated, nil
}

// The registry rejected the addition because it predates the last registered
// event. Mark it an own correction and resubmit as an insert, which is
// allowed to land between existing events.
func remediateEventOrder(ctx context.Context, c *Coordinator, task *types.UploadTask) error {
	metadata := task.Metadata
	metadata.CorrectionReason = types.CorrectionReasonOwn
	if err := c.registry.PatchUploadTask(ctx, task.UUID, map[string]any{
		"metadata": metadata,
	}); err != nil {
		return err
	}
	return c.registry.PatchUploadTask(ctx, task.UUID, map[string]any{
		"request_type": types.RequestTypeInsert,
	})
}

// The event date precedes the well's construction date. The registry's
// message quotes both dates; the second one is the construction date, which
// becomes the new event date.
func remediateEventDate(ctx context.Context, c *Coordinator, task *types.UploadTask) error {
	dates := datePattern.FindAllString(task.Diagnostics(), -1)
	if len(dates) < 2 {
		return fmt.Errorf("coordinator: expected two dates in log of %s, found %d", task.UUID, len(dates))
	}

	document, ok := task.SourceDocument.(map[string]any)
	if !ok {
		return fmt.Errorf("coordinator: task %s has no patchable source document", task.UUID)
	}
	document["eventDate"] = dates[1]

	return c.registry.PatchUploadTask(ctx, task.UUID, map[string]any{
		"sourcedocument_data": document,
	})
}

// The portal already holds this delivery, so the failure is a false
// negative. Close the task out as completed and clear the log.
func remediateAlreadyDelivered(ctx context.Context, c *Coordinator, task *types.UploadTask) error {
	if err := c.registry.PatchUploadTask(ctx, task.UUID, map[string]any{
		"status": types.TaskStatusCompleted,
	}); err != nil {
		return err
	}
	if err := c.registry.PatchUploadTask(ctx, task.UUID, map[string]any{
		"progress": 100.0,
	}); err != nil {
		return err
	}
	return c.registry.PatchUploadTask(ctx, task.UUID, map[string]any{
		"log": "",
	})
}
