package brostar

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

// AwaitCompleted polls an upload task at a fixed interval until it reports
// COMPLETED or the ceiling elapses. Hitting the ceiling is not an error: the
// last observed task is returned and callers branch on its status. Transient
// poll failures are logged while the clock keeps running.
func (c *Client) AwaitCompleted(ctx context.Context, id string) (*types.UploadTask, error) {
	ctx, span := tracer.Start(ctx, "Client.AwaitCompleted", trace.WithAttributes(
		attribute.String("uploadtask.uuid", id),
	))
	defer span.End()

	task, err := c.UploadTaskDetail(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed initial status fetch")
		return nil, err
	}

	elapsed := time.Duration(0)
	for task.Status != types.TaskStatusCompleted && elapsed < c.pollCeiling {
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context done while polling")
			return task, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		elapsed += c.pollInterval

		next, err := c.UploadTaskDetail(ctx, id)
		if err != nil {
			logger.Logger.WarnContext(ctx, "status poll failed, continuing",
				"uuid", id, "elapsed", elapsed, "error", err)
			continue
		}
		task = next
	}

	span.SetAttributes(attribute.String("uploadtask.status", string(task.Status)))
	span.SetStatus(codes.Ok, "finished waiting")
	return task, nil
}

// AwaitBroID polls until the registry has assigned a BRO ID or the ceiling
// elapses, in which case it returns the empty string without error.
func (c *Client) AwaitBroID(ctx context.Context, id string) (string, error) {
	ctx, span := tracer.Start(ctx, "Client.AwaitBroID", trace.WithAttributes(
		attribute.String("uploadtask.uuid", id),
	))
	defer span.End()

	task, err := c.UploadTaskDetail(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed initial status fetch")
		return "", err
	}

	elapsed := time.Duration(0)
	for task.BroID == "" && elapsed < c.pollCeiling {
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context done while polling")
			return task.BroID, ctx.Err()
		case <-time.After(c.pollInterval):
		}
		elapsed += c.pollInterval

		next, err := c.UploadTaskDetail(ctx, id)
		if err != nil {
			logger.Logger.WarnContext(ctx, "bro id poll failed, continuing",
				"uuid", id, "elapsed", elapsed, "error", err)
			continue
		}
		task = next
	}

	span.SetAttributes(attribute.String("uploadtask.bro_id", task.BroID))
	span.SetStatus(codes.Ok, "finished waiting")
	return task.BroID, nil
}
