package cmds

import (
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write assigned GLD ids back onto the asset-platform locations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "syncCmd")
		defer span.End()

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
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

		result, err := sync.New(registry, assets).IngestGLDIDs(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "ingest failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "gld id ingest finished",
			"patched", result.Patched, "missing", result.Missing)
		span.SetAttributes(
			attribute.Int("patched", result.Patched),
			attribute.Int("missing", result.Missing),
		)
		span.SetStatus(codes.Ok, "ingested gld ids")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
