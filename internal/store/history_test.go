// internal/store/history_test.go
package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

func TestHistoryStoreAppend(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewHistoryStore(pg, logger.NewNoOpLogger())
	now := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	rec := &models.NotificationRecord{
		UserID: 42,
		Type:   models.TypeFilingRelease,
		Title:  "New 10-K Filing",
		Body:   "Apple Inc. filed its annual report",
		Data:   map[string]string{"accessionNumber": "0000320193-24-000123"},
		Status: models.StatusSent,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notification_history")).
		WithArgs(rec.UserID, rec.Type, rec.Title, rec.Body, sqlmock.AnyArg(),
			rec.Status, rec.SentAt, rec.Error, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(101)))

	require.NoError(t, store.Append(context.Background(), rec))
	assert.Equal(t, int64(101), rec.ID)
	assert.Equal(t, now, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryStoreListByUser(t *testing.T) {
	pg, mock := newMockDB(t)
	store := NewHistoryStore(pg, logger.NewNoOpLogger())

	created := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_history")).
		WithArgs(int64(42), 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "title", "body", "data", "status", "sent_at", "error", "created_at",
		}).AddRow(int64(101), int64(42), models.TypeFilingRelease, "New 10-K Filing",
			"Apple Inc. filed its annual report",
			[]byte(`{"accessionNumber":"0000320193-24-000123"}`),
			models.StatusSent, created, "", created))

	records, err := store.ListByUser(context.Background(), 42, 20)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0000320193-24-000123", records[0].Data["accessionNumber"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
