// internal/store/filings.go
package store

import (
	"context"
	"fmt"
	"time"

	"edgarwatch/internal/common/database"
	commonerrors "edgarwatch/internal/common/errors"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// FilingStore persists discovered filings. The accession number is the
// primary key, which makes inserts idempotent across scan passes and across
// the two discovery sources.
type FilingStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewFilingStore(db *database.PostgresClient, log logger.Logger) *FilingStore {
	return &FilingStore{db: db, logger: log}
}

// KnownAccessions loads the accession numbers recorded since the given time
// into a set. Loaded once per scan pass so novelty checks are in-memory.
func (s *FilingStore) KnownAccessions(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `
		SELECT accession_number
		FROM filings
		WHERE detected_at >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("load known accessions: %w", err)
	}
	defer rows.Close()

	known := make(map[string]struct{})
	for rows.Next() {
		var accession string
		if err := rows.Scan(&accession); err != nil {
			return nil, fmt.Errorf("scan accession row: %w", err)
		}
		known[accession] = struct{}{}
	}
	return known, rows.Err()
}

// Insert records one filing. The conflict clause absorbs races between the
// two discovery strategies and concurrent scan passes; inserted is false when
// the filing was already known.
func (s *FilingStore) Insert(ctx context.Context, f models.FilingRecord) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, err
	}
	res, err := s.db.Exec(ctx, `
		INSERT INTO filings
			(accession_number, cik, issuer_name, ticker, form_type,
			 filing_date, detected_at, primary_document, filing_url, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (accession_number) DO NOTHING`,
		f.AccessionNumber, f.CIK, f.IssuerName, f.Ticker, f.FormType,
		f.FilingDate, f.DetectedAt, f.PrimaryDocument, f.FilingURL, f.Source)
	if err != nil {
		return false, commonerrors.NewInsertFailedError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert filing %s: %w", f.AccessionNumber, err)
	}
	return n > 0, nil
}

// GetByAccession fetches one filing. Returns (nil, nil) when unknown.
func (s *FilingStore) GetByAccession(ctx context.Context, accession string) (*models.FilingRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT accession_number, cik, issuer_name, ticker, form_type,
		       filing_date, detected_at, primary_document, filing_url, source
		FROM filings
		WHERE accession_number = $1`, accession)
	if err != nil {
		return nil, fmt.Errorf("get filing %s: %w", accession, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var f models.FilingRecord
	if err := rows.Scan(&f.AccessionNumber, &f.CIK, &f.IssuerName, &f.Ticker,
		&f.FormType, &f.FilingDate, &f.DetectedAt, &f.PrimaryDocument,
		&f.FilingURL, &f.Source); err != nil {
		return nil, fmt.Errorf("scan filing row: %w", err)
	}
	return &f, nil
}

// ListRecent returns the newest filings, most recent filing date first.
func (s *FilingStore) ListRecent(ctx context.Context, limit int) ([]models.FilingRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT accession_number, cik, issuer_name, ticker, form_type,
		       filing_date, detected_at, primary_document, filing_url, source
		FROM filings
		ORDER BY filing_date DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent filings: %w", err)
	}
	defer rows.Close()

	var filings []models.FilingRecord
	for rows.Next() {
		var f models.FilingRecord
		if err := rows.Scan(&f.AccessionNumber, &f.CIK, &f.IssuerName, &f.Ticker,
			&f.FormType, &f.FilingDate, &f.DetectedAt, &f.PrimaryDocument,
			&f.FilingURL, &f.Source); err != nil {
			return nil, fmt.Errorf("scan filing row: %w", err)
		}
		filings = append(filings, f)
	}
	return filings, rows.Err()
}
