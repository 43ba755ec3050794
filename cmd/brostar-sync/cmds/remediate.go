package cmds

import (
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/logger"
)

var remediateCmd = &cobra.Command{
	Use:   "remediate",
	Short: "Patch failed upload tasks with known error signatures",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "remediateCmd")
		defer span.End()

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

		remediated, err := coord.RemediateFailed(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "remediation pass failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "remediation pass finished", "remediated", remediated)
		span.SetAttributes(attribute.Int("remediated", remediated))
		span.SetStatus(codes.Ok, "remediated failed tasks")
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete processing tasks stuck on invalid XML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "cleanupCmd")
		defer span.End()

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

		deleted, err := coord.DeleteInvalidTasks(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cleanup failed")
			return err
		}

		logger.Logger.InfoContext(ctx, "cleanup finished", "deleted", deleted)
		span.SetAttributes(attribute.Int("deleted", deleted))
		span.SetStatus(codes.Ok, "deleted invalid tasks")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remediateCmd)
	rootCmd.AddCommand(cleanupCmd)
}
