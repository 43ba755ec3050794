package cmds

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/coordinator"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

var (
	registerGMWFile      string
	registerGMWReference string
)

var registerGMWCmd = &cobra.Command{
	Use:   "register-gmw",
	Short: "Register a monitoring well construction from a JSON document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "registerGMWCmd")
		defer span.End()

		span.SetAttributes(attribute.String("file", registerGMWFile))

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		raw, err := os.ReadFile(registerGMWFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read document")
			return err
		}

		var construction types.GMWConstruction
		if err := json.Unmarshal(raw, &construction); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode document")
			return fmt.Errorf("decode %s: %w", registerGMWFile, err)
		}

		coord, err := newCoordinator(conf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build coordinator")
			return err
		}

		task, err := coord.Register(ctx, coordinator.SubmitRequest{
			Domain:           types.BroDomainGMW,
			ProjectNumber:    conf.Delivery.ProjectNumber,
			RegistrationType: types.RegistrationTypeGMWConstruction,
			Metadata: types.UploadTaskMetadata{
				RequestReference:         registerGMWReference,
				DeliveryAccountableParty: conf.Delivery.Organisation,
				QualityRegime:            conf.Delivery.QualityRegime,
			},
			Document: &construction,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "registration failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "well registration finished",
			"uuid", task.UUID, "status", task.Status, "bro_id", task.BroID)
		span.SetStatus(codes.Ok, "registered well")
		return nil
	},
}

var (
	registerGLDWell string
	registerGLDTube int
	registerGLDNets []string
	registerGLDRef  string
)

var registerGLDCmd = &cobra.Command{
	Use:   "register-gld",
	Short: "Open a groundwater level dossier for one monitoring tube",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "registerGLDCmd")
		defer span.End()

		span.SetAttributes(
			attribute.String("gmw_bro_id", registerGLDWell),
			attribute.Int("tube_number", registerGLDTube),
		)

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		coord, err := newCoordinator(conf)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build coordinator")
			return err
		}

		task, err := coord.Register(ctx, coordinator.SubmitRequest{
			Domain:           types.BroDomainGLD,
			ProjectNumber:    conf.Delivery.ProjectNumber,
			RegistrationType: types.RegistrationTypeGLDStartRegistration,
			Metadata: types.UploadTaskMetadata{
				RequestReference:         registerGLDRef,
				DeliveryAccountableParty: conf.Delivery.Organisation,
				QualityRegime:            conf.Delivery.QualityRegime,
			},
			Document: &types.GLDStartRegistration{
				GroundwaterMonitoringNets: registerGLDNets,
				GmwBroID:                  registerGLDWell,
				TubeNumber:                types.Int(registerGLDTube),
			},
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "start registration failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "dossier registration finished",
			"uuid", task.UUID, "status", task.Status, "bro_id", task.BroID)
		span.SetStatus(codes.Ok, "registered dossier")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerGMWCmd)
	rootCmd.AddCommand(registerGLDCmd)

	registerGMWCmd.PersistentFlags().
		StringVarP(&registerGMWFile, "file", "f", "", "Path to the construction JSON document")
	registerGMWCmd.PersistentFlags().
		StringVarP(&registerGMWReference, "reference", "r", "", "Request reference")
	for _, flag := range []string{"file", "reference"} {
		if err := registerGMWCmd.MarkPersistentFlagRequired(flag); err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}

	registerGLDCmd.PersistentFlags().
		StringVarP(&registerGLDWell, "gmw-bro-id", "g", "", "BRO ID of the monitoring well")
	registerGLDCmd.PersistentFlags().
		IntVarP(&registerGLDTube, "tube-number", "t", 0, "Tube number within the well")
	registerGLDCmd.PersistentFlags().
		StringSliceVarP(&registerGLDNets, "monitoring-net", "n", nil, "Monitoring network ids the dossier joins")
	registerGLDCmd.PersistentFlags().
		StringVarP(&registerGLDRef, "reference", "r", "", "Request reference")
	for _, flag := range []string{"gmw-bro-id", "tube-number", "reference"} {
		if err := registerGLDCmd.MarkPersistentFlagRequired(flag); err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}
}
