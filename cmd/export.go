package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/propfolio/catalog-cli/internal/model"
	"github.com/propfolio/catalog-cli/internal/store"
)

var (
	exportSource string
	exportCity   string
	exportLimit  int
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored listings to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		listings, err := st.ListListings(ctx, store.ListingFilter{
			Source: exportSource,
			City:   exportCity,
			Limit:  exportLimit,
		})
		if err != nil {
			return eris.Wrap(err, "load listings")
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.Export.OutputDir,
				fmt.Sprintf("listings-%s.xlsx", time.Now().Format("2006-01-02")))
		}

		if err := writeWorkbook(out, listings); err != nil {
			return err
		}

		zap.L().Info("export finished",
			zap.String("file", out),
			zap.Int("listings", len(listings)),
		)
		return nil
	},
}

var exportHeader = []string{
	"source", "source_id", "title", "price", "bedrooms", "bathrooms",
	"property_type", "address", "postcode", "city", "latitude", "longitude",
	"garden", "parking", "furnished", "listing_url", "last_updated",
	"reliability_score",
}

func writeWorkbook(path string, listings []model.NormalizedListing) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Listings")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range exportHeader {
		header.AddCell().SetString(name)
	}

	for i := range listings {
		l := &listings[i]
		row := sheet.AddRow()
		row.AddCell().SetString(l.Lineage.Source)
		row.AddCell().SetString(l.Lineage.SourceID)
		row.AddCell().SetString(l.Title)
		addFloatCell(row, l.Price)
		addFloatCell(row, l.Bedrooms)
		addFloatCell(row, l.Bathrooms)
		row.AddCell().SetString(string(l.PropertyType))
		row.AddCell().SetString(l.Address)
		row.AddCell().SetString(l.Postcode)
		row.AddCell().SetString(l.City)
		addFloatCell(row, l.Latitude)
		addFloatCell(row, l.Longitude)
		row.AddCell().SetBool(l.Garden)
		row.AddCell().SetBool(l.Parking)
		row.AddCell().SetString(string(l.Furnished))
		row.AddCell().SetString(l.ListingURL)
		if l.LastUpdated != nil && !l.LastUpdated.IsZero() {
			row.AddCell().SetString(l.LastUpdated.Format(time.RFC3339))
		} else {
			row.AddCell()
		}
		row.AddCell().SetFloat(l.Lineage.ReliabilityScore)
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addFloatCell(row *xlsx.Row, f *float64) {
	cell := row.AddCell()
	if f != nil {
		cell.SetFloat(*f)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportSource, "source", "", "only export listings from this source")
	exportCmd.Flags().StringVar(&exportCity, "city", "", "only export listings in this city")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "maximum listings to export")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default listings-<date>.xlsx)")
	rootCmd.AddCommand(exportCmd)
}
