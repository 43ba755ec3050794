package cmds

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/timeseries"
	"github.com/nens/brostar-sync/internal/types"
)

var (
	deliverBroID        string
	deliverLocationCode string
	deliverTemplateFile string
	deliverReference    string
	deliverChunkSize    int
	deliverStart        string
	deliverEnd          string
)

// deliverCmd ships the observations of one asset-platform timeseries into a
// GLD dossier, chunked and in order.
var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Deliver groundwater level observations into a dossier",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "deliverCmd")
		defer span.End()

		span.SetAttributes(
			attribute.String("bro_id", deliverBroID),
			attribute.String("location_code", deliverLocationCode),
		)

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		raw, err := os.ReadFile(deliverTemplateFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read template")
			return err
		}
		var template types.GLDAddition
		if err := json.Unmarshal(raw, &template); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode template")
			return fmt.Errorf("decode %s: %w", deliverTemplateFile, err)
		}

		registry, err := registryClient(conf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build registry client")
			return err
		}
		assets, err := assetClient(conf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build asset client")
			return err
		}

		series, err := assets.Timeseries(ctx, url.Values{"location__code": {deliverLocationCode}})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to look up timeseries")
			return err
		}
		if len(series) == 0 {
			err := fmt.Errorf("no timeseries at location %s", deliverLocationCode)
			span.RecordError(err)
			span.SetStatus(codes.Error, "timeseries not found")
			return err
		}
		source := series[0]

		eventParams := url.Values{}
		if deliverStart != "" {
			eventParams.Set("time__gte", deliverStart)
		}
		if deliverEnd != "" {
			eventParams.Set("time__lte", deliverEnd)
		}
		events, err := assets.Events(ctx, source.URL, eventParams)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch events")
			return err
		}
		if len(events) == 0 {
			logger.Logger.InfoContext(ctx, "nothing to deliver", "location_code", deliverLocationCode)
			span.SetStatus(codes.Ok, "no events")
			return nil
		}

		submitter := timeseries.NewSubmitter(registry, assets,
			timeseries.WithChunkSize(deliverChunkSize),
			timeseries.WithAuditContext(auditContext(conf)),
		)

		outcomes, err := submitter.Submit(ctx, timeseries.Series{
			BroID:            deliverBroID,
			ProjectNumber:    conf.Delivery.ProjectNumber,
			QualityRegime:    conf.Delivery.QualityRegime,
			RequestReference: deliverReference,
			Template:         template,
			TimeseriesURL:    source.URL,
		}, events, censorLimits(source.ExtraMetadata))
		for _, outcome := range outcomes {
			logger.Logger.InfoContext(ctx, "chunk outcome",
				"index", outcome.Index, "pairs", outcome.Pairs,
				"status", outcome.Status, "delivered", outcome.Delivered)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delivery ended with failed chunks")
			return err
		}

		span.SetAttributes(attribute.Int("chunks", len(outcomes)))
		span.SetStatus(codes.Ok, "delivered observations")
		return nil
	},
}

// censorLimits pulls the tube levels bounding censored values out of the
// timeseries metadata, when recorded there.
func censorLimits(metadata map[string]any) timeseries.CensorLimits {
	limits := timeseries.CensorLimits{}
	if v, ok := metadata["reference_level"].(float64); ok {
		limits.ReferenceLevel = &v
	}
	if v, ok := metadata["filter_bottom_level"].(float64); ok {
		limits.FilterBottomLevel = &v
	}
	return limits
}

func init() {
	rootCmd.AddCommand(deliverCmd)

	deliverCmd.PersistentFlags().
		StringVarP(&deliverBroID, "bro-id", "b", "", "BRO ID of the dossier to deliver into")
	deliverCmd.PersistentFlags().
		StringVarP(&deliverLocationCode, "location-code", "l", "", "Asset-platform location code of the tube")
	deliverCmd.PersistentFlags().
		StringVarP(&deliverTemplateFile, "template", "f", "", "Path to the observation template JSON document")
	deliverCmd.PersistentFlags().
		StringVarP(&deliverReference, "reference", "r", "", "Request reference prefix")
	deliverCmd.PersistentFlags().
		IntVar(&deliverChunkSize, "chunk-size", timeseries.DefaultChunkSize, "Observations per addition")
	deliverCmd.PersistentFlags().
		StringVar(&deliverStart, "start", "", "Only deliver events at or after this timestamp")
	deliverCmd.PersistentFlags().
		StringVar(&deliverEnd, "end", "", "Only deliver events at or before this timestamp")

	for _, flag := range []string{"bro-id", "location-code", "template", "reference"} {
		if err := deliverCmd.MarkPersistentFlagRequired(flag); err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}
}
