package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nens/brostar-sync/internal/audit"
	"github.com/nens/brostar-sync/internal/brostar"
	"github.com/nens/brostar-sync/internal/types"
)

var tracer = otel.Tracer("github.com/nens/brostar-sync/internal/coordinator")

// DedupPolicy controls whether flows that resubmit existing registrations
// first probe for already-registered data and skip it.
type DedupPolicy int

const (
	DedupNone DedupPolicy = iota
	DedupSkipRegistered
)

type document interface {
	Validate() error
}

// Coordinator drives the upload-task lifecycle: build a registry-compliant
// document, submit it, poll to a terminal state and branch on the outcome.
// It owns no state of its own; the registry's task queue is the only store.
type Coordinator struct {
	registry *brostar.Client
	auditCtx audit.Context
	dedup    DedupPolicy
	probe    ObservationsProbe
}

type Option func(*Coordinator)

func WithAuditContext(c audit.Context) Option {
	return func(co *Coordinator) {
		co.auditCtx = c
	}
}

func WithDedupPolicy(policy DedupPolicy) Option {
	return func(co *Coordinator) {
		co.dedup = policy
	}
}

func WithObservationsProbe(probe ObservationsProbe) Option {
	return func(co *Coordinator) {
		co.probe = probe
	}
}

func New(registry *brostar.Client, opts ...Option) *Coordinator {
	c := &Coordinator{registry: registry}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type SubmitRequest struct {
	Domain           types.BroDomain
	ProjectNumber    string
	RegistrationType types.RegistrationType
	RequestType      types.RequestType
	Metadata         types.UploadTaskMetadata
	Document         any
}

// Submit validates, creates and polls one upload task. Hitting the polling
// ceiling is not an error; the caller checks the returned task's status.
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*types.UploadTask, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.Submit", trace.WithAttributes(
		attribute.String("bro_domain", string(req.Domain)),
		attribute.String("registration_type", string(req.RegistrationType)),
		attribute.String("request_type", string(req.RequestType)),
	))
	defer span.End()

	if doc, ok := req.Document.(document); ok {
		if err := doc.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "document failed validation")
			return nil, err
		}
	}

	task := types.UploadTask{
		BroDomain:        req.Domain,
		ProjectNumber:    req.ProjectNumber,
		RegistrationType: req.RegistrationType,
		RequestType:      req.RequestType,
		Metadata:         req.Metadata,
		SourceDocument:   req.Document,
	}
	if err := task.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "task failed validation")
		return nil, err
	}

	created, err := c.registry.PostUpload(ctx, &task, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create upload task")
		return nil, err
	}

	final, err := c.registry.AwaitCompleted(ctx, created.UUID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed while polling upload task")
		return nil, err
	}

	if final.Status == types.TaskStatusCompleted {
		audit.LogTaskCompleted(c.auditCtx, final.UUID, final.BroID)
	} else {
		audit.LogTaskFailed(c.auditCtx, final.UUID, string(final.Status), final.Diagnostics())
	}

	span.SetAttributes(attribute.String("uploadtask.status", string(final.Status)))
	span.SetStatus(codes.Ok, "submitted upload task")
	return final, nil
}

// Register submits an initial registration. On COMPLETED the returned task
// carries the newly assigned BRO ID.
func (c *Coordinator) Register(ctx context.Context, req SubmitRequest) (*types.UploadTask, error) {
	req.RequestType = types.RequestTypeRegistration
	return c.Submit(ctx, req)
}

// MoveConstruction submits a move request that shifts a well construction
// to its corrected date. The construction is fetched from the registry
// first (read-modify-write); the caller applied its overrides already.
func (c *Coordinator) MoveConstruction(
	ctx context.Context,
	projectNumber string,
	construction *types.GMWConstruction,
	metadata types.UploadTaskMetadata,
) (*types.UploadTask, error) {
	return c.Submit(ctx, SubmitRequest{
		Domain:           types.BroDomainGMW,
		ProjectNumber:    projectNumber,
		RegistrationType: types.RegistrationTypeGMWConstruction,
		RequestType:      types.RequestTypeMove,
		Metadata:         metadata,
		Document:         construction,
	})
}

// ReplaceConstruction submits a replace request correcting a registered well
// construction.
func (c *Coordinator) ReplaceConstruction(
	ctx context.Context,
	projectNumber string,
	construction *types.GMWConstruction,
	metadata types.UploadTaskMetadata,
) (*types.UploadTask, error) {
	return c.Submit(ctx, SubmitRequest{
		Domain:           types.BroDomainGMW,
		ProjectNumber:    projectNumber,
		RegistrationType: types.RegistrationTypeGMWConstruction,
		RequestType:      types.RequestTypeReplace,
		Metadata:         metadata,
		Document:         construction,
	})
}

// FetchConstruction assembles a GMWConstruction from the registry's well and
// monitoring-tube read endpoints, the starting point for corrections.
func (c *Coordinator) FetchConstruction(ctx context.Context, broID string) (*types.GMWConstruction, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.FetchConstruction", trace.WithAttributes(
		attribute.String("bro_id", broID),
	))
	defer span.End()

	wells, err := c.registry.GetAll(ctx, brostar.EndpointGMWs, url.Values{"bro_id": {broID}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch well")
		return nil, err
	}
	if len(wells) == 0 {
		err := fmt.Errorf("no GMW found with BRO-ID %s", broID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "well not found")
		return nil, err
	}

	var construction types.GMWConstruction
	if err := json.Unmarshal(wells[0], &construction); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode well")
		return nil, fmt.Errorf("decode GMW %s: %w", broID, err)
	}

	rawTubes, err := c.registry.GetAll(ctx, brostar.EndpointMonitoringTubes, url.Values{"gmw_bro_id": {broID}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch tubes")
		return nil, err
	}

	tubes := make([]types.MonitoringTube, 0, len(rawTubes))
	for _, message := range rawTubes {
		var tube types.MonitoringTube
		if err := json.Unmarshal(message, &tube); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode tube")
			return nil, fmt.Errorf("decode monitoring tube of %s: %w", broID, err)
		}
		tubes = append(tubes, tube)
	}
	construction.MonitoringTubes = tubes
	construction.NumberOfMonitoringTubes = types.Int(len(tubes))

	span.SetStatus(codes.Ok, "fetched construction")
	return &construction, nil
}

// DeleteInvalidTasks removes every processing task stuck on invalid XML.
func (c *Coordinator) DeleteInvalidTasks(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Coordinator.DeleteInvalidTasks")
	defer span.End()

	tasks, err := c.registry.ListUploadTasks(ctx, url.Values{
		"status": {string(types.TaskStatusProcessing)},
		"log":    {"XML is not valid"},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list invalid tasks")
		return 0, err
	}

	deleted := 0
	for _, task := range tasks {
		if err := c.registry.DeleteUploadTask(ctx, task.UUID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to delete invalid task")
			return deleted, err
		}
		deleted++
	}

	span.SetAttributes(attribute.Int("deleted", deleted))
	span.SetStatus(codes.Ok, "deleted invalid tasks")
	return deleted, nil
}
