package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	watchLocation string
	watchInterval int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync a location on an interval until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if watchInterval > 0 {
			cfg.Sync.IntervalMins = watchInterval
		}

		env, err := initIngest(ctx, "watch")
		if err != nil {
			return err
		}
		defer env.Close()

		interval := time.Duration(cfg.Sync.IntervalMins) * time.Minute
		log := zap.L().With(zap.String("location", watchLocation))
		log.Info("watch started", zap.Duration("interval", interval))

		runOnce := func() {
			report, runErr := env.Orchestrator.Sync(ctx, watchLocation)
			if runErr != nil {
				log.Error("watch: sync failed", zap.Error(runErr))
				return
			}
			log.Info("watch: sync finished",
				zap.Int("saved", report.Saved),
				zap.Int("clusters", report.Clusters),
				zap.Float64("quality_score", report.QualityScore),
			)
		}

		runOnce()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("watch stopped")
				return nil
			case <-ticker.C:
				runOnce()
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchLocation, "location", "", "search location (required)")
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "minutes between syncs (default from config)")
	_ = watchCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(watchCmd)
}
