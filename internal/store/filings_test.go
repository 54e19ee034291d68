// internal/store/filings_test.go
package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

func newMockDB(t *testing.T) (*database.PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &database.PostgresClient{DB: db}, mock
}

func sampleFiling() models.FilingRecord {
	return models.FilingRecord{
		CIK:             "0000320193",
		IssuerName:      "Apple Inc.",
		Ticker:          "AAPL",
		FormType:        models.FormAnnual,
		AccessionNumber: "0000320193-24-000123",
		FilingDate:      time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC),
		DetectedAt:      time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC),
		PrimaryDocument: "aapl-20240928.htm",
		FilingURL:       "https://www.sec.gov/Archives/edgar/data/320193/000032019324000123/aapl-20240928.htm",
		Source:          models.SourceSubmissions,
	}
}

func TestFilingStoreInsert_New(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewFilingStore(pg, logger.NewNoOpLogger())
	f := sampleFiling()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO filings")).
		WithArgs(f.AccessionNumber, f.CIK, f.IssuerName, f.Ticker, f.FormType,
			f.FilingDate, f.DetectedAt, f.PrimaryDocument, f.FilingURL, f.Source).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := store.Insert(context.Background(), f)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilingStoreInsert_Duplicate(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewFilingStore(pg, logger.NewNoOpLogger())
	f := sampleFiling()

	// Conflict clause swallows the duplicate: zero rows affected.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO filings")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.Insert(context.Background(), f)
	require.NoError(t, err)
	assert.False(t, inserted, "replay of a known accession number is not an insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilingStoreInsert_RejectsInvalidRecord(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewFilingStore(pg, logger.NewNoOpLogger())

	f := sampleFiling()
	f.AccessionNumber = "not-an-accession"

	_, err := store.Insert(context.Background(), f)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "invalid record must not reach the database")
}

func filingColumns() []string {
	return []string{"accession_number", "cik", "issuer_name", "ticker", "form_type",
		"filing_date", "detected_at", "primary_document", "filing_url", "source"}
}

func filingRow(f models.FilingRecord) []driver.Value {
	return []driver.Value{f.AccessionNumber, f.CIK, f.IssuerName, f.Ticker, f.FormType,
		f.FilingDate, f.DetectedAt, f.PrimaryDocument, f.FilingURL, f.Source}
}

func TestFilingStoreGetByAccession(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewFilingStore(pg, logger.NewNoOpLogger())
	want := sampleFiling()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE accession_number = $1")).
		WithArgs(want.AccessionNumber).
		WillReturnRows(sqlmock.NewRows(filingColumns()).AddRow(filingRow(want)...))

	got, err := store.GetByAccession(context.Background(), want.AccessionNumber)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilingStoreGetByAccession_Unknown(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewFilingStore(pg, logger.NewNoOpLogger())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE accession_number = $1")).
		WithArgs("0000320193-24-999999").
		WillReturnRows(sqlmock.NewRows(filingColumns()))

	got, err := store.GetByAccession(context.Background(), "0000320193-24-999999")
	require.NoError(t, err)
	assert.Nil(t, got, "unknown accession is nil, not an error")
}

func TestFilingStoreListRecent(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewFilingStore(pg, logger.NewNoOpLogger())

	newer := sampleFiling()
	older := sampleFiling()
	older.AccessionNumber = "0000789019-24-000050"
	older.FilingDate = newer.FilingDate.AddDate(0, 0, -3)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY filing_date DESC")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(filingColumns()).
			AddRow(filingRow(newer)...).
			AddRow(filingRow(older)...))

	filings, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Equal(t, newer.AccessionNumber, filings[0].AccessionNumber)
	assert.Equal(t, older.AccessionNumber, filings[1].AccessionNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilingStoreKnownAccessions(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewFilingStore(pg, logger.NewNoOpLogger())

	since := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT accession_number")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"accession_number"}).
			AddRow("0000320193-24-000123").
			AddRow("0000987654-24-000010"))

	known, err := store.KnownAccessions(context.Background(), since)
	require.NoError(t, err)
	assert.Len(t, known, 2)
	_, ok := known["0000320193-24-000123"]
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
