package cmds

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

var (
	bulkReference     string
	bulkFieldworkFile string
	bulkLabFile       string
	bulkTVPFile       string
	bulkPointsFile    string
	bulkBroID         string
	bulkControlMethod string
	bulkNets          []string
)

// bulkGARCmd ships a groundwater-quality delivery as one multipart upload:
// the registry parses the fieldwork and lab CSVs server-side and fans them
// out into upload tasks itself.
var bulkGARCmd = &cobra.Command{
	Use:   "bulk-gar",
	Short: "Submit a groundwater quality bulk delivery from fieldwork and lab CSVs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "bulkGARCmd")
		defer span.End()

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		metadata := types.GARBulkUploadMetadata{
			RequestReference:          bulkReference,
			QualityRegime:             conf.Delivery.QualityRegime,
			DeliveryAccountableParty:  conf.Delivery.Organisation,
			QualityControlMethod:      bulkControlMethod,
			GroundwaterMonitoringNets: bulkNets,
		}
		if err := metadata.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid bulk metadata")
			return err
		}

		registry, err := registryClient(conf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build registry client")
			return err
		}

		fieldwork, err := os.Open(bulkFieldworkFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open fieldwork file")
			return err
		}
		defer fieldwork.Close()
		lab, err := os.Open(bulkLabFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open lab file")
			return err
		}
		defer lab.Close()

		fields, err := bulkFields("GAR", conf.Delivery.ProjectNumber, &metadata)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to encode metadata")
			return err
		}

		if _, err := registry.PostBulkGAR(ctx, fields, fieldwork, lab); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk upload failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "bulk gar delivery accepted", "reference", bulkReference)
		span.SetStatus(codes.Ok, "submitted gar bulk")
		return nil
	},
}

// bulkGLDCmd ships a long observation series as one CSV instead of chunked
// additions; the registry does the chunking server-side.
var bulkGLDCmd = &cobra.Command{
	Use:   "bulk-gld",
	Short: "Submit a groundwater level bulk delivery from a time/value CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "bulkGLDCmd")
		defer span.End()

		span.SetAttributes(attribute.String("bro_id", bulkBroID))

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		metadata := types.GLDBulkUploadMetadata{
			RequestReference:         bulkReference,
			QualityRegime:            conf.Delivery.QualityRegime,
			DeliveryAccountableParty: conf.Delivery.Organisation,
			BroID:                    bulkBroID,
		}
		if err := metadata.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid bulk metadata")
			return err
		}

		registry, err := registryClient(conf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build registry client")
			return err
		}

		tvp, err := os.Open(bulkTVPFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open measurement file")
			return err
		}
		defer tvp.Close()

		fields, err := bulkFields("GLD", conf.Delivery.ProjectNumber, &metadata)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to encode metadata")
			return err
		}

		if _, err := registry.PostBulkGLD(ctx, fields, tvp); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk upload failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "bulk gld delivery accepted",
			"reference", bulkReference, "bro_id", bulkBroID)
		span.SetStatus(codes.Ok, "submitted gld bulk")
		return nil
	},
}

// bulkGMNCmd ships a monitoring-network delivery as one measuring-point CSV;
// the registry turns the rows into measuring-point events itself.
var bulkGMNCmd = &cobra.Command{
	Use:   "bulk-gmn",
	Short: "Submit a monitoring network bulk delivery from a measuring point CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "bulkGMNCmd")
		defer span.End()

		span.SetAttributes(attribute.String("bro_id", bulkBroID))

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		metadata := types.GMNBulkUploadMetadata{
			RequestReference:         bulkReference,
			QualityRegime:            conf.Delivery.QualityRegime,
			DeliveryAccountableParty: conf.Delivery.Organisation,
			BroID:                    bulkBroID,
		}
		if err := metadata.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid bulk metadata")
			return err
		}

		registry, err := registryClient(conf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build registry client")
			return err
		}

		points, err := os.Open(bulkPointsFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to open measuring point file")
			return err
		}
		defer points.Close()

		fields, err := bulkFields("GMN", conf.Delivery.ProjectNumber, &metadata)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to encode metadata")
			return err
		}

		if _, err := registry.PostBulkGMN(ctx, fields, points); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk upload failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "bulk gmn delivery accepted",
			"reference", bulkReference, "bro_id", bulkBroID)
		span.SetStatus(codes.Ok, "submitted gmn bulk")
		return nil
	},
}

func bulkFields(uploadType, projectNumber string, metadata any) (map[string]string, error) {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"bulk_upload_type": uploadType,
		"project_number":   projectNumber,
		"metadata":         string(encoded),
	}, nil
}

func init() {
	rootCmd.AddCommand(bulkGARCmd)
	rootCmd.AddCommand(bulkGLDCmd)
	rootCmd.AddCommand(bulkGMNCmd)

	bulkGARCmd.PersistentFlags().
		StringVarP(&bulkReference, "reference", "r", "", "Request reference")
	bulkGARCmd.PersistentFlags().
		StringVar(&bulkFieldworkFile, "fieldwork", "", "Path to the fieldwork CSV")
	bulkGARCmd.PersistentFlags().
		StringVar(&bulkLabFile, "lab", "", "Path to the lab CSV")
	bulkGARCmd.PersistentFlags().
		StringVar(&bulkControlMethod, "control-method", "", "Quality control method")
	bulkGARCmd.PersistentFlags().
		StringSliceVarP(&bulkNets, "monitoring-net", "n", nil, "Monitoring network ids")
	for _, flag := range []string{"reference", "fieldwork", "lab"} {
		if err := bulkGARCmd.MarkPersistentFlagRequired(flag); err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}

	bulkGLDCmd.PersistentFlags().
		StringVarP(&bulkReference, "reference", "r", "", "Request reference")
	bulkGLDCmd.PersistentFlags().
		StringVarP(&bulkBroID, "bro-id", "b", "", "BRO ID of the dossier")
	bulkGLDCmd.PersistentFlags().
		StringVar(&bulkTVPFile, "measurements", "", "Path to the time/value CSV")
	for _, flag := range []string{"reference", "bro-id", "measurements"} {
		if err := bulkGLDCmd.MarkPersistentFlagRequired(flag); err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}

	bulkGMNCmd.PersistentFlags().
		StringVarP(&bulkReference, "reference", "r", "", "Request reference")
	bulkGMNCmd.PersistentFlags().
		StringVarP(&bulkBroID, "bro-id", "b", "", "BRO ID of the monitoring network")
	bulkGMNCmd.PersistentFlags().
		StringVar(&bulkPointsFile, "measuringpoints", "", "Path to the measuring point CSV")
	for _, flag := range []string{"reference", "bro-id", "measuringpoints"} {
		if err := bulkGMNCmd.MarkPersistentFlagRequired(flag); err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}
}
