// internal/scan/pipeline.go
package scan

import (
	"context"

	"github.com/google/uuid"

	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
	"edgarwatch/internal/notify"
)

// RecipientResolver decides who hears about a filing.
type RecipientResolver interface {
	Recipients(ctx context.Context, filing models.FilingRecord) ([]int64, error)
}

// Deliverer fans one notification out to a set of users.
type Deliverer interface {
	NotifyUsers(ctx context.Context, userIDs []int64, content notify.Content, notifType string) (int, error)
}

// FilingIndexer mirrors new filings into the search index.
type FilingIndexer interface {
	IndexFilings(ctx context.Context, filings []models.FilingRecord) int
}

// Pipeline is one end-to-end pass: discover, index, notify. Discovery
// persists filings before any notification is attempted, so a crash between
// the two phases loses notifications, never filings. The affected accession
// numbers are in the log for manual replay.
type Pipeline struct {
	orch       *Orchestrator
	targeter   RecipientResolver
	dispatcher Deliverer
	indexer    FilingIndexer
	logger     logger.Logger
}

// NewPipeline wires a pipeline. indexer may be nil when search is not
// configured.
func NewPipeline(orch *Orchestrator, targeter RecipientResolver, dispatcher Deliverer,
	indexer FilingIndexer, log logger.Logger) *Pipeline {
	return &Pipeline{
		orch:       orch,
		targeter:   targeter,
		dispatcher: dispatcher,
		indexer:    indexer,
		logger:     log,
	}
}

// RunOnce executes one scheduled pass. The two discovery strategies are
// independent: one failing does not stop the other, and notification runs
// for whatever was discovered.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	// Correlation id tying all log lines of one pass together.
	log := p.logger.WithFields(map[string]interface{}{
		"passId": uuid.NewString(),
	})

	var discovered []models.FilingRecord

	fromIssuers, _, err := p.orch.ScanIssuers(ctx)
	if err != nil {
		log.WithError(err).Error("issuer scan failed", nil)
	}
	discovered = append(discovered, fromIssuers...)

	fromFeed, err := p.orch.ScanFeed(ctx)
	if err != nil {
		log.WithError(err).Error("feed scan failed", nil)
	}
	discovered = append(discovered, fromFeed...)

	if len(discovered) == 0 {
		return ctx.Err()
	}

	if p.indexer != nil {
		p.indexer.IndexFilings(ctx, discovered)
	}

	for _, filing := range discovered {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.notifyFiling(ctx, log, filing)
	}
	return ctx.Err()
}

// notifyFiling resolves recipients and dispatches for one filing. The filing
// row already exists, so any failure here strands the notification; the
// accession number is logged so an operator can replay it.
func (p *Pipeline) notifyFiling(ctx context.Context, log logger.Logger, filing models.FilingRecord) {
	recipients, err := p.targeter.Recipients(ctx, filing)
	if err != nil {
		log.WithError(err).Error("targeting failed, notification stranded", map[string]interface{}{
			"accession": filing.AccessionNumber,
		})
		return
	}
	if len(recipients) == 0 {
		log.Debug("no recipients for filing", map[string]interface{}{
			"accession": filing.AccessionNumber,
			"formType":  filing.FormType,
		})
		return
	}

	sent, err := p.dispatcher.NotifyUsers(ctx, recipients, notify.FilingContent(filing), models.TypeFilingRelease)
	if err != nil {
		log.WithError(err).Error("dispatch failed, notification stranded", map[string]interface{}{
			"accession":  filing.AccessionNumber,
			"recipients": len(recipients),
		})
		return
	}
	log.Info("filing notification dispatched", map[string]interface{}{
		"accession":  filing.AccessionNumber,
		"formType":   filing.FormType,
		"issuer":     filing.IssuerName,
		"recipients": len(recipients),
		"deliveries": sent,
	})
}
