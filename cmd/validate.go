package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propfolio/catalog-cli/internal/quality"
	"github.com/propfolio/catalog-cli/internal/store"
)

var (
	validateSource string
	validateCity   string
	validateLimit  int
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run quality validation over stored listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		listings, err := st.ListListings(ctx, store.ListingFilter{
			Source: validateSource,
			City:   validateCity,
			Limit:  validateLimit,
		})
		if err != nil {
			return eris.Wrap(err, "load listings")
		}

		validator := quality.NewValidator(cfg.Quality.Bounds, nil)
		report := validator.ValidateBatch(listings)

		zap.L().Info("validation finished",
			zap.Int("listings", report.Total),
			zap.Int("valid", report.ValidCount),
			zap.Int("issues", len(report.Issues)),
			zap.Float64("score", report.OverallScore),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateSource, "source", "", "only validate listings from this source")
	validateCmd.Flags().StringVar(&validateCity, "city", "", "only validate listings in this city")
	validateCmd.Flags().IntVar(&validateLimit, "limit", 1000, "maximum listings to validate")
	rootCmd.AddCommand(validateCmd)
}
