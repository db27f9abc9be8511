package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/propfolio/catalog-cli/internal/adapter"
	"github.com/propfolio/catalog-cli/internal/dedupe"
	"github.com/propfolio/catalog-cli/internal/model"
	"github.com/propfolio/catalog-cli/internal/observability"
	"github.com/propfolio/catalog-cli/internal/quality"
	"github.com/propfolio/catalog-cli/internal/store"
)

// Options tunes a sync run.
type Options struct {
	RadiusKM   float64
	MaxResults int
}

// DefaultOptions returns the standard search window.
func DefaultOptions() Options {
	return Options{RadiusKM: 5, MaxResults: 100}
}

// Orchestrator runs the fetch-normalize-validate-dedupe-save pipeline.
type Orchestrator struct {
	adapters  []adapter.SourceAdapter
	validator *quality.Validator
	deduper   *dedupe.Deduplicator
	store     store.Store
	opts      Options
}

// New creates an Orchestrator. A nil validator or deduper falls back to
// defaults; adapters and store are required.
func New(adapters []adapter.SourceAdapter, v *quality.Validator, d *dedupe.Deduplicator, st store.Store, opts Options) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, eris.New("ingest: no source adapters configured")
	}
	if st == nil {
		return nil, eris.New("ingest: no store configured")
	}
	if v == nil {
		v = quality.NewValidator(quality.DefaultBounds(), nil)
	}
	if d == nil {
		d = dedupe.NewDeduplicator(dedupe.DefaultConfig(), nil)
	}
	if opts.RadiusKM <= 0 {
		opts.RadiusKM = DefaultOptions().RadiusKM
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultOptions().MaxResults
	}
	return &Orchestrator{
		adapters:  adapters,
		validator: v,
		deduper:   d,
		store:     st,
		opts:      opts,
	}, nil
}

// Sync runs one full ingestion pass for a location. Source and per-record
// failures are logged and counted, never fatal; the returned error is
// non-nil only when every source failed or nothing could be saved. The
// report is always returned, even alongside an error.
func (o *Orchestrator) Sync(ctx context.Context, location string) (*SyncReport, error) {
	start := time.Now()
	report := &SyncReport{
		RunID:           uuid.New(),
		Location:        location,
		StartedAt:       start,
		FetchedBySource: make(map[string]int, len(o.adapters)),
		SourceErrors:    make(map[string]string),
	}

	log := zap.L().With(
		zap.String("run_id", report.RunID.String()),
		zap.String("location", location),
	)
	log.Info("ingest: starting sync", zap.Int("sources", len(o.adapters)))

	normalized := o.fetchAll(ctx, location, report, log)
	report.Normalized = len(normalized)

	if len(normalized) == 0 {
		report.Duration = time.Since(start)
		report.QualityScore = 1.0
		if len(report.SourceErrors) == len(o.adapters) {
			return report, eris.New("ingest: all sources failed")
		}
		log.Info("ingest: no listings fetched")
		return report, nil
	}

	qr := o.validator.ValidateBatch(normalized)
	report.QualityScore = qr.OverallScore
	report.IssuesBySeverity = qr.CountBySeverity()
	for severity, n := range report.IssuesBySeverity {
		observability.QualityIssues.WithLabelValues(string(severity)).Add(float64(n))
	}
	log.Info("ingest: batch validated",
		zap.Int("listings", qr.Total),
		zap.Int("valid", qr.ValidCount),
		zap.Int("issues", len(qr.Issues)),
		zap.Float64("score", qr.OverallScore),
	)

	dr := o.deduper.Deduplicate(normalized)
	report.Matches = len(dr.Matches)
	report.Clusters = len(dr.Clusters)
	report.Unique = len(dr.Listings)
	observability.DuplicateClusters.Add(float64(len(dr.Clusters)))

	for i := range dr.Listings {
		l := &dr.Listings[i]
		if err := o.store.UpsertListing(ctx, l); err != nil {
			report.SaveErrors++
			log.Warn("ingest: upsert failed", zap.String("key", l.Key()), zap.Error(err))
			continue
		}
		report.Saved++
	}
	observability.ListingsSaved.Add(float64(report.Saved))

	report.Duration = time.Since(start)
	observability.SyncDuration.Observe(report.Duration.Seconds())

	log.Info("ingest: sync complete",
		zap.Int("normalized", report.Normalized),
		zap.Int("clusters", report.Clusters),
		zap.Int("unique", report.Unique),
		zap.Int("saved", report.Saved),
		zap.Duration("duration", report.Duration),
	)

	if report.Saved == 0 && report.SaveErrors > 0 {
		return report, eris.New("ingest: every upsert failed")
	}
	return report, nil
}

// fetchAll searches every adapter concurrently and normalizes the raw
// records. One goroutine per source; a failed source is recorded in the
// report and the rest continue.
func (o *Orchestrator) fetchAll(ctx context.Context, location string, report *SyncReport, log *zap.Logger) []model.NormalizedListing {
	var mu sync.Mutex
	var normalized []model.NormalizedListing

	g, gCtx := errgroup.WithContext(ctx)
	for _, a := range o.adapters {
		g.Go(func() error {
			source := a.Source()
			raws, err := a.Search(gCtx, location, o.opts.RadiusKM, o.opts.MaxResults)
			if err != nil {
				observability.SourceFailures.WithLabelValues(source).Inc()
				log.Error("ingest: source search failed", zap.String("source", source), zap.Error(err))
				mu.Lock()
				report.SourceErrors[source] = err.Error()
				mu.Unlock()
				return nil
			}
			observability.ListingsFetched.WithLabelValues(source).Add(float64(len(raws)))

			var batch []model.NormalizedListing
			skipped := 0
			for i := range raws {
				l, normErr := a.Normalize(&raws[i])
				if normErr != nil {
					skipped++
					observability.NormalizeFailures.WithLabelValues(source).Inc()
					log.Warn("ingest: skipping record",
						zap.String("source", source),
						zap.String("source_id", raws[i].SourceID),
						zap.Error(normErr),
					)
					continue
				}
				batch = append(batch, *l)
			}

			mu.Lock()
			report.FetchedBySource[source] = len(raws)
			report.Skipped += skipped
			normalized = append(normalized, batch...)
			mu.Unlock()

			log.Info("ingest: source fetched",
				zap.String("source", source),
				zap.Int("raw", len(raws)),
				zap.Int("normalized", len(batch)),
			)
			return nil
		})
	}
	// Per-source errors never propagate; Wait only orders the goroutines.
	_ = g.Wait()

	return normalized
}
