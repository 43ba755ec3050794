// Package sync writes registry identifiers assigned by BRO back onto the
// matching asset-platform locations, keeping the two systems linked.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nens/brostar-sync/internal/brostar"
	"github.com/nens/brostar-sync/internal/lizard"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

var tracer = otel.Tracer("github.com/nens/brostar-sync/internal/sync")

// Extra-metadata keys under which the GLD identifiers live, one per quality
// regime.
const (
	MetadataKeyIMBRO  = "gldIdImbro"
	MetadataKeyIMBROA = "gldIdImbroA"
)

type Syncer struct {
	registry *brostar.Client
	assets   *lizard.Client
}

func New(registry *brostar.Client, assets *lizard.Client) *Syncer {
	return &Syncer{registry: registry, assets: assets}
}

// LocationCode derives the asset-platform location code of one monitoring
// tube: the well's BRO ID with the zero-padded tube number appended.
func LocationCode(gmwBroID string, tubeNumber int) string {
	return fmt.Sprintf("%s-%03d", gmwBroID, tubeNumber)
}

func metadataKey(qualityRegime string) string {
	if qualityRegime == types.QualityRegimeIMBROA {
		return MetadataKeyIMBROA
	}
	return MetadataKeyIMBRO
}

// IngestResult summarises one ingest run.
type IngestResult struct {
	Matched int
	Missing int
	Patched int
}

// IngestGLDIDs walks every completed GLD start registration on the registry
// and writes its assigned BRO ID onto the matching asset-platform location.
// Locations that cannot be matched are logged and skipped.
func (s *Syncer) IngestGLDIDs(ctx context.Context) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "Syncer.IngestGLDIDs")
	defer span.End()

	var result IngestResult

	tasks, err := s.registry.ListUploadTasks(ctx, url.Values{
		"registration_type": {string(types.RegistrationTypeGLDStartRegistration)},
		"status":            {string(types.TaskStatusCompleted)},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list start registrations")
		return result, err
	}

	for _, task := range tasks {
		if task.BroID == "" {
			continue
		}

		registration, err := startRegistrationOf(&task)
		if err != nil {
			logger.Logger.WarnContext(ctx, "skipping task without readable source document",
				"uuid", task.UUID, "error", err)
			result.Missing++
			continue
		}

		code := LocationCode(registration.GmwBroID, int(registration.TubeNumber))
		patched, err := s.RecordGLDID(ctx, code, task.BroID, task.Metadata.QualityRegime)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to record gld id")
			return result, err
		}
		if patched {
			result.Matched++
			result.Patched++
		} else {
			logger.Logger.WarnContext(ctx, "no location for start registration",
				"code", code, "bro_id", task.BroID)
			result.Missing++
		}
	}

	span.SetAttributes(
		attribute.Int("patched", result.Patched),
		attribute.Int("missing", result.Missing),
	)
	span.SetStatus(codes.Ok, "ingested gld ids")
	return result, nil
}

// RecordGLDID writes one GLD BRO ID onto the location with the given code,
// keyed by quality regime. Returns false when no location matches. An
// already-recorded identical ID is left untouched.
func (s *Syncer) RecordGLDID(ctx context.Context, code, gldBroID, qualityRegime string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Syncer.RecordGLDID", trace.WithAttributes(
		attribute.String("location.code", code),
		attribute.String("bro_id", gldBroID),
	))
	defer span.End()

	locations, err := s.assets.Locations(ctx, url.Values{"code": {code}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to look up location")
		return false, err
	}
	if len(locations) == 0 {
		span.SetStatus(codes.Ok, "no matching location")
		return false, nil
	}

	location := locations[0]
	key := metadataKey(qualityRegime)

	metadata := location.ExtraMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	bro, _ := metadata["bro"].(map[string]any)
	if bro == nil {
		bro = map[string]any{}
	}
	if existing, ok := bro[key].(string); ok && existing == gldBroID {
		span.SetStatus(codes.Ok, "id already recorded")
		return true, nil
	}
	bro[key] = gldBroID
	metadata["bro"] = bro

	if err := s.assets.PatchLocation(ctx, location.URL, map[string]any{
		"extra_metadata": metadata,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to patch location")
		return false, err
	}

	span.SetStatus(codes.Ok, "recorded gld id")
	return true, nil
}

func startRegistrationOf(task *types.UploadTask) (*types.GLDStartRegistration, error) {
	encoded, err := json.Marshal(task.SourceDocument)
	if err != nil {
		return nil, fmt.Errorf("sync: encode source document of %s: %w", task.UUID, err)
	}

	var registration types.GLDStartRegistration
	if err := json.Unmarshal(encoded, &registration); err != nil {
		return nil, fmt.Errorf("sync: decode start registration of %s: %w", task.UUID, err)
	}
	if registration.GmwBroID == "" {
		return nil, fmt.Errorf("sync: start registration of %s has no well id", task.UUID)
	}
	return &registration, nil
}
