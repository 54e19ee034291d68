// internal/store/history.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// HistoryStore is the append-only per-user notification ledger. One row per
// user per notification, regardless of how many of that user's devices were
// reached.
type HistoryStore struct {
	db     *database.PostgresClient
	logger logger.Logger
	now    func() time.Time
}

func NewHistoryStore(db *database.PostgresClient, log logger.Logger) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append writes one ledger row and fills in the record's id and creation
// time.
func (s *HistoryStore) Append(ctx context.Context, rec *models.NotificationRecord) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}
	rec.CreatedAt = s.now()

	err = s.db.QueryRow(ctx, `
		INSERT INTO notification_history
			(user_id, type, title, body, data, status, sent_at, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		rec.UserID, rec.Type, rec.Title, rec.Body, data,
		rec.Status, rec.SentAt, rec.Error, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("append history for user %d: %w", rec.UserID, err)
	}
	return nil
}

// ListByUser returns one user's ledger, newest first.
func (s *HistoryStore) ListByUser(ctx context.Context, userID int64, limit int) ([]models.NotificationRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, type, title, body, data, status, sent_at, error, created_at
		FROM notification_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history for user %d: %w", userID, err)
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var rec models.NotificationRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Type, &rec.Title, &rec.Body,
			&data, &rec.Status, &rec.SentAt, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &rec.Data); err != nil {
				s.logger.WithError(err).Warn("corrupt history data field", map[string]interface{}{
					"id": rec.ID,
				})
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
