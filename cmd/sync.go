package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncLocation string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one ingestion pass for a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initIngest(ctx, "sync")
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Orchestrator.Sync(ctx, syncLocation)
		if err != nil {
			return eris.Wrap(err, "sync run")
		}

		zap.L().Info("sync finished",
			zap.String("location", syncLocation),
			zap.Int("saved", report.Saved),
			zap.Float64("quality_score", report.QualityScore),
		)

		// Print report JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncLocation, "location", "", "search location (required)")
	_ = syncCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(syncCmd)
}
