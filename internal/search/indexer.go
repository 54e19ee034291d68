// internal/search/indexer.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// Indexer mirrors newly discovered filings into the search index so the
// lookup surfaces can query them by issuer, form type or full text. Indexing
// is best effort; the filing of record lives in Postgres.
type Indexer struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewIndexer(es *database.ElasticsearchClient, index string, log logger.Logger) *Indexer {
	return &Indexer{es: es, index: index, logger: log}
}

// filingDocument is the indexed shape of one filing.
type filingDocument struct {
	CIK             string    `json:"cik"`
	IssuerName      string    `json:"issuer_name"`
	Ticker          string    `json:"ticker,omitempty"`
	FormType        string    `json:"form_type"`
	AccessionNumber string    `json:"accession_number"`
	FilingDate      time.Time `json:"filing_date"`
	DetectedAt      time.Time `json:"detected_at"`
	FilingURL       string    `json:"filing_url,omitempty"`
	Source          string    `json:"source"`
}

// IndexFiling upserts one filing document. The accession number is the
// document id, so re-indexing the same filing is idempotent.
func (ix *Indexer) IndexFiling(ctx context.Context, f models.FilingRecord) error {
	doc := filingDocument{
		CIK:             f.CIK,
		IssuerName:      f.IssuerName,
		Ticker:          f.Ticker,
		FormType:        f.FormType,
		AccessionNumber: f.AccessionNumber,
		FilingDate:      f.FilingDate,
		DetectedAt:      f.DetectedAt,
		FilingURL:       f.FilingURL,
		Source:          f.Source,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode filing document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      ix.index,
		DocumentID: f.AccessionNumber,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, ix.es.Client)
	if err != nil {
		return fmt.Errorf("index filing %s: %w", f.AccessionNumber, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index filing %s: %s", f.AccessionNumber, res.Status())
	}
	return nil
}

// IndexFilings indexes a batch, logging and skipping individual failures.
// Returns the number of documents indexed.
func (ix *Indexer) IndexFilings(ctx context.Context, filings []models.FilingRecord) int {
	indexed := 0
	for _, f := range filings {
		if err := ix.IndexFiling(ctx, f); err != nil {
			ix.logger.WithError(err).Warn("search index write failed", map[string]interface{}{
				"accession": f.AccessionNumber,
			})
			continue
		}
		indexed++
	}
	return indexed
}
