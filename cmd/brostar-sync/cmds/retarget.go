package cmds

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nens/brostar-sync/internal/audit"
	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/coordinator"
	"github.com/nens/brostar-sync/internal/logger"
)

var (
	retargetPairsFile  string
	retargetDeleteList string
	retargetSkipProbe  bool
)

// retargetCmd moves GLD additions between dossiers in bulk. The input CSV
// holds one current,target pair of BRO IDs per row. Emptied source dossiers
// are collected on a delete list for manual follow-up.
var retargetCmd = &cobra.Command{
	Use:   "retarget",
	Short: "Move GLD additions from one dossier to another",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "retargetCmd")
		defer span.End()

		span.SetAttributes(attribute.String("pairs_file", retargetPairsFile))

		conf, err := config.GetConfig()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		pairs, err := readPairs(retargetPairsFile)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read pairs")
			return err
		}

		opts := []coordinator.Option{}
		if !retargetSkipProbe {
			opts = append(opts,
				coordinator.WithDedupPolicy(coordinator.DedupSkipRegistered),
				coordinator.WithObservationsProbe(coordinator.NewPublicObservationsProbe()),
			)
		}
		coord, err := newCoordinator(conf, opts...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to build coordinator")
			return err
		}

		deleteList := &audit.DeleteList{}
		results := coord.RetargetBatch(ctx, pairs, deleteList)

		failed := 0
		for _, result := range results {
			if result.Err != nil {
				failed++
				continue
			}
			logger.Logger.InfoContext(ctx, "dossier retargeted",
				"current_bro_id", result.CurrentID, "target_bro_id", result.TargetID,
				"moved", result.Moved, "skipped", result.Skipped)
		}

		if deleteList.Len() > 0 {
			if err := deleteList.WriteCSV(retargetDeleteList); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to write delete list")
				return err
			}
			logger.Logger.InfoContext(ctx, "delete list written",
				"path", retargetDeleteList, "count", deleteList.Len())
		}

		span.SetAttributes(
			attribute.Int("dossiers", len(results)),
			attribute.Int("failed", failed),
		)
		if failed > 0 {
			err := fmt.Errorf("%d of %d dossiers failed to retarget", failed, len(results))
			span.RecordError(err)
			span.SetStatus(codes.Error, "retarget incomplete")
			return err
		}

		span.SetStatus(codes.Ok, "retargeted dossiers")
		return nil
	},
}

func readPairs(path string) ([]coordinator.RetargetPair, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read pairs from %s: %w", path, err)
	}

	pairs := make([]coordinator.RetargetPair, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d of %s needs two columns", i+1, path)
		}
		// tolerate a header row
		if i == 0 && (row[0] == "current" || row[0] == "currentBroId") {
			continue
		}
		pairs = append(pairs, coordinator.RetargetPair{CurrentID: row[0], TargetID: row[1]})
	}
	return pairs, nil
}

func init() {
	rootCmd.AddCommand(retargetCmd)

	retargetCmd.PersistentFlags().
		StringVarP(&retargetPairsFile, "pairs", "p", "", "CSV with current,target BRO ID pairs")
	retargetCmd.PersistentFlags().
		StringVarP(&retargetDeleteList, "delete-list", "o", "delete_list.csv", "Path for the manual-deletion CSV")
	retargetCmd.PersistentFlags().
		BoolVar(&retargetSkipProbe, "skip-probe", false, "Skip the public-registry observations probe")

	if err := retargetCmd.MarkPersistentFlagRequired("pairs"); err != nil {
		logger.Logger.Error("error setting flag required", "flag", "pairs", "error", err)
		os.Exit(1)
	}
}
