// internal/scan/orchestrator.go
package scan

import (
	"context"
	"time"

	commonerrors "edgarwatch/internal/common/errors"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/common/metrics"
	"edgarwatch/internal/edgar"
	"edgarwatch/internal/models"
)

// knownSetHorizon bounds how far back the in-memory novelty set reaches.
// Anything older is caught by the insert conflict clause instead.
const knownSetHorizon = 30 * 24 * time.Hour

// submissionsWindow bounds which filings from a fresh structured payload are
// considered new candidates. The payload carries the issuer's full recent
// history; only recently dated entries can be novel.
const submissionsWindow = 7 * 24 * time.Hour

// SubmissionsSource is the structured per-issuer discovery strategy.
type SubmissionsSource interface {
	FetchIssuerFilings(ctx context.Context, cik string) (*edgar.IssuerFilings, error)
}

// FeedSource is the broad semi-structured discovery strategy.
type FeedSource interface {
	FetchRecentFilings(ctx context.Context, lookback time.Duration) ([]models.FilingRecord, error)
}

// IssuerLister provides the tracked issuer registry.
type IssuerLister interface {
	ListActive(ctx context.Context) ([]models.TrackedIssuer, error)
}

// FilingSink persists discovered filings with idempotent inserts.
type FilingSink interface {
	KnownAccessions(ctx context.Context, since time.Time) (map[string]struct{}, error)
	Insert(ctx context.Context, f models.FilingRecord) (bool, error)
}

// ScanStats summarizes one per-issuer scan pass.
type ScanStats struct {
	Checked    int
	CacheHits  int
	NotFound   int
	Errors     int
	NewFilings int
}

// Orchestrator runs the two discovery strategies and turns their raw results
// into persisted, novel filing records.
type Orchestrator struct {
	issuers     IssuerLister
	filings     FilingSink
	submissions SubmissionsSource
	feed        FeedSource
	lookback    time.Duration
	logger      logger.Logger
	now         func() time.Time
}

func NewOrchestrator(issuers IssuerLister, filings FilingSink,
	submissions SubmissionsSource, feed FeedSource,
	lookback time.Duration, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		issuers:     issuers,
		filings:     filings,
		submissions: submissions,
		feed:        feed,
		lookback:    lookback,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ScanIssuers walks every tracked issuer through the structured endpoint and
// returns the filings that were new this pass. One issuer failing does not
// stop the walk; failures surface in the stats and the summary log line.
func (o *Orchestrator) ScanIssuers(ctx context.Context) ([]models.FilingRecord, *ScanStats, error) {
	start := o.now()
	defer func() {
		metrics.ScansTotal.WithLabelValues(models.SourceSubmissions).Inc()
		metrics.ScanDuration.WithLabelValues(models.SourceSubmissions).Observe(o.now().Sub(start).Seconds())
	}()

	issuers, err := o.issuers.ListActive(ctx)
	if err != nil {
		return nil, nil, err
	}

	known, err := o.filings.KnownAccessions(ctx, start.Add(-knownSetHorizon))
	if err != nil {
		return nil, nil, err
	}

	stats := &ScanStats{}
	var discovered []models.FilingRecord
	dateCutoff := start.Add(-submissionsWindow)

	for _, issuer := range issuers {
		if err := ctx.Err(); err != nil {
			return discovered, stats, err
		}
		stats.Checked++

		result, err := o.submissions.FetchIssuerFilings(ctx, issuer.CIK)
		if err != nil {
			if commonerrors.IsCode(err, commonerrors.ErrCodeIssuerNotFound) {
				stats.NotFound++
				metrics.IssuerFetchOutcomes.WithLabelValues("not_found").Inc()
			} else {
				stats.Errors++
				metrics.IssuerFetchOutcomes.WithLabelValues("error").Inc()
			}
			o.logger.WithError(err).Warn("issuer fetch failed", map[string]interface{}{
				"cik": issuer.CIK,
			})
			continue
		}

		if result.Status == edgar.StatusNotModified {
			stats.CacheHits++
			metrics.IssuerFetchOutcomes.WithLabelValues("cache_hit").Inc()
			continue
		}
		metrics.IssuerFetchOutcomes.WithLabelValues("fresh").Inc()

		for _, filing := range result.Filings {
			if filing.FilingDate.Before(dateCutoff) {
				continue
			}
			if _, dup := known[filing.AccessionNumber]; dup {
				continue
			}
			if filing.Ticker == "" {
				filing.Ticker = issuer.Ticker
			}
			filing.DetectedAt = start

			inserted, err := o.filings.Insert(ctx, filing)
			if err != nil {
				stats.Errors++
				o.logger.WithError(err).Error("filing insert failed", map[string]interface{}{
					"accession": filing.AccessionNumber,
				})
				continue
			}
			known[filing.AccessionNumber] = struct{}{}
			if !inserted {
				continue
			}
			stats.NewFilings++
			metrics.FilingsDiscovered.WithLabelValues(models.SourceSubmissions).Inc()
			discovered = append(discovered, filing)
		}
	}

	o.logger.Info("issuer scan pass complete", map[string]interface{}{
		"checked":    stats.Checked,
		"cacheHits":  stats.CacheHits,
		"notFound":   stats.NotFound,
		"errors":     stats.Errors,
		"newFilings": stats.NewFilings,
		"duration":   o.now().Sub(start).String(),
	})
	return discovered, stats, nil
}

// ScanFeed runs the broad feed strategy and returns the filings that were new
// this pass. Registration statements are kept regardless of tracking because
// their issuers are, almost by definition, not yet tracked. Every other form
// must belong to a tracked issuer.
func (o *Orchestrator) ScanFeed(ctx context.Context) ([]models.FilingRecord, error) {
	start := o.now()
	defer func() {
		metrics.ScansTotal.WithLabelValues(models.SourceFeed).Inc()
		metrics.ScanDuration.WithLabelValues(models.SourceFeed).Observe(o.now().Sub(start).Seconds())
	}()

	issuers, err := o.issuers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	tracked := make(map[string]models.TrackedIssuer, len(issuers))
	for _, iss := range issuers {
		tracked[iss.CIK] = iss
	}

	entries, err := o.feed.FetchRecentFilings(ctx, o.lookback)
	if err != nil {
		return nil, err
	}

	known, err := o.filings.KnownAccessions(ctx, start.Add(-knownSetHorizon))
	if err != nil {
		return nil, err
	}

	var discovered []models.FilingRecord
	for _, filing := range entries {
		issuer, isTracked := tracked[filing.CIK]
		if !isTracked && filing.FormType != models.FormRegistration {
			metrics.FeedEntriesDropped.WithLabelValues("untracked_issuer").Inc()
			continue
		}
		if _, dup := known[filing.AccessionNumber]; dup {
			continue
		}
		if filing.Ticker == "" {
			filing.Ticker = issuer.Ticker
		}
		filing.DetectedAt = start

		inserted, err := o.filings.Insert(ctx, filing)
		if err != nil {
			o.logger.WithError(err).Error("filing insert failed", map[string]interface{}{
				"accession": filing.AccessionNumber,
			})
			continue
		}
		known[filing.AccessionNumber] = struct{}{}
		if !inserted {
			continue
		}
		metrics.FilingsDiscovered.WithLabelValues(models.SourceFeed).Inc()
		discovered = append(discovered, filing)
	}

	o.logger.Info("feed scan pass complete", map[string]interface{}{
		"entries":    len(entries),
		"newFilings": len(discovered),
		"duration":   o.now().Sub(start).String(),
	})
	return discovered, nil
}
