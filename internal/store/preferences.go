// internal/store/preferences.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// PreferenceStore manages per-user notification settings.
type PreferenceStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewPreferenceStore(db *database.PostgresClient, log logger.Logger) *PreferenceStore {
	return &PreferenceStore{db: db, logger: log}
}

const preferenceColumns = `user_id, enabled, filing_10k, filing_10q, filing_8k, filing_s1, watchlist_only`

func scanPreference(row interface{ Scan(...interface{}) error }) (models.NotificationPreference, error) {
	var p models.NotificationPreference
	err := row.Scan(&p.UserID, &p.Enabled, &p.FilingAnnual, &p.FilingQuarter,
		&p.FilingCurrent, &p.FilingRegist, &p.WatchlistOnly)
	return p, err
}

// Get returns one user's settings. A user with no stored row gets the
// defaults: notifications off.
func (s *PreferenceStore) Get(ctx context.Context, userID int64) (models.NotificationPreference, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+preferenceColumns+`
		FROM notification_preferences
		WHERE user_id = $1`, userID)
	p, err := scanPreference(row)
	if err == sql.ErrNoRows {
		return models.NotificationPreference{UserID: userID}, nil
	}
	if err != nil {
		return models.NotificationPreference{}, fmt.Errorf("get preferences for user %d: %w", userID, err)
	}
	return p, nil
}

// Save upserts one user's settings.
func (s *PreferenceStore) Save(ctx context.Context, p models.NotificationPreference) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notification_preferences
			(`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			filing_10k = EXCLUDED.filing_10k,
			filing_10q = EXCLUDED.filing_10q,
			filing_8k = EXCLUDED.filing_8k,
			filing_s1 = EXCLUDED.filing_s1,
			watchlist_only = EXCLUDED.watchlist_only`,
		p.UserID, p.Enabled, p.FilingAnnual, p.FilingQuarter,
		p.FilingCurrent, p.FilingRegist, p.WatchlistOnly)
	if err != nil {
		return fmt.Errorf("save preferences for user %d: %w", p.UserID, err)
	}
	return nil
}

// UsersForForm returns the settings of every user whose master switch and
// per-form flag for formType are both on. Watchlist scoping is applied by the
// targeting step, not here.
func (s *PreferenceStore) UsersForForm(ctx context.Context, formType string) ([]models.NotificationPreference, error) {
	column, ok := formColumn(formType)
	if !ok {
		s.logger.Warn("targeting query for unknown form type", map[string]interface{}{
			"formType": formType,
		})
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+preferenceColumns+`
		FROM notification_preferences
		WHERE enabled = TRUE AND `+column+` = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("list users for form %s: %w", formType, err)
	}
	defer rows.Close()

	var prefs []models.NotificationPreference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preference row: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// formColumn maps a form type to its flag column. The column name comes from
// this fixed table, never from input, so it is safe to splice into SQL.
func formColumn(formType string) (string, bool) {
	switch formType {
	case models.FormAnnual:
		return "filing_10k", true
	case models.FormQuarterly:
		return "filing_10q", true
	case models.FormCurrent:
		return "filing_8k", true
	case models.FormRegistration:
		return "filing_s1", true
	}
	return "", false
}
