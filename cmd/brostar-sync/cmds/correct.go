package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

var (
	correctBroID     string
	correctDate      string
	correctReference string
	correctReason    string
	correctMove      bool
)

// correctCmd fixes a registered well construction through read-modify-write:
// the current construction is fetched from the registry, the date corrected,
// and the result resubmitted as a move or replace request.
var correctCmd = &cobra.Command{
	Use:   "correct-gmw",
	Short: "Correct the construction date of a registered monitoring well",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "correctCmd")
		defer span.End()

		span.SetAttributes(
			attribute.String("bro_id", correctBroID),
			attribute.String("date", correctDate),
			attribute.Bool("move", correctMove),
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

		construction, err := coord.FetchConstruction(ctx, correctBroID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch construction")
			return err
		}

		metadata := types.UploadTaskMetadata{
			RequestReference:         correctReference,
			DeliveryAccountableParty: conf.Delivery.Organisation,
			QualityRegime:            conf.Delivery.QualityRegime,
			BroID:                    correctBroID,
			CorrectionReason:         correctReason,
		}

		var task *types.UploadTask
		if correctMove {
			// A move shifts the construction to the corrected date; the
			// registry needs to know which date it replaces.
			construction.DateToBeCorrected = construction.WellConstructionDate
			construction.WellConstructionDate = correctDate
			task, err = coord.MoveConstruction(ctx, conf.Delivery.ProjectNumber, construction, metadata)
		} else {
			construction.WellConstructionDate = correctDate
			task, err = coord.ReplaceConstruction(ctx, conf.Delivery.ProjectNumber, construction, metadata)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "correction failed")
			return err
		}

		if task.Status != types.TaskStatusCompleted {
			err := fmt.Errorf("correction of %s ended %s: %s", correctBroID, task.Status, task.Diagnostics())
			span.RecordError(err)
			span.SetStatus(codes.Error, "correction not completed")
			return err
		}

		logger.Logger.InfoContext(ctx, "construction corrected",
			"bro_id", correctBroID, "uuid", task.UUID)
		span.SetStatus(codes.Ok, "corrected construction")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(correctCmd)

	correctCmd.PersistentFlags().
		StringVarP(&correctBroID, "bro-id", "b", "", "BRO ID of the well to correct")
	correctCmd.PersistentFlags().
		StringVarP(&correctDate, "date", "d", "", "Corrected construction date (YYYY-MM-DD)")
	correctCmd.PersistentFlags().
		StringVarP(&correctReference, "reference", "r", "", "Request reference")
	correctCmd.PersistentFlags().
		StringVar(&correctReason, "reason", types.CorrectionReasonOwn, "Correction reason")
	correctCmd.PersistentFlags().
		BoolVar(&correctMove, "move", false, "Submit as a move request instead of a replace")

	for _, flag := range []string{"bro-id", "date", "reference"} {
		if err := correctCmd.MarkPersistentFlagRequired(flag); err != nil {
			logger.Logger.Error("error setting flag required", "flag", flag, "error", err)
			os.Exit(1)
		}
	}
}
