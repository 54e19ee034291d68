// internal/store/watchlist.go
package store

import (
	"context"
	"fmt"

	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// WatchlistStore manages per-user issuer watchlists.
type WatchlistStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewWatchlistStore(db *database.PostgresClient, log logger.Logger) *WatchlistStore {
	return &WatchlistStore{db: db, logger: log}
}

// UsersWatching returns the ids of every user with cik on their watchlist.
// Loaded once per filing so watchlist scoping is a set lookup.
func (s *WatchlistStore) UsersWatching(ctx context.Context, cik string) (map[int64]struct{}, error) {
	cik = models.NormalizeCIK(cik)
	rows, err := s.db.Query(ctx, `
		SELECT user_id FROM watchlists WHERE cik = $1`, cik)
	if err != nil {
		return nil, fmt.Errorf("list users watching %s: %w", cik, err)
	}
	defer rows.Close()

	watching := make(map[int64]struct{})
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		watching[userID] = struct{}{}
	}
	return watching, rows.Err()
}

// Add puts cik on the user's watchlist. Adding an existing entry is a no-op.
func (s *WatchlistStore) Add(ctx context.Context, userID int64, cik string) error {
	cik = models.NormalizeCIK(cik)
	_, err := s.db.Exec(ctx, `
		INSERT INTO watchlists (user_id, cik)
		VALUES ($1, $2)
		ON CONFLICT (user_id, cik) DO NOTHING`, userID, cik)
	if err != nil {
		return fmt.Errorf("add %s to watchlist of user %d: %w", cik, userID, err)
	}
	return nil
}

// Remove takes cik off the user's watchlist.
func (s *WatchlistStore) Remove(ctx context.Context, userID int64, cik string) error {
	cik = models.NormalizeCIK(cik)
	_, err := s.db.Exec(ctx, `
		DELETE FROM watchlists WHERE user_id = $1 AND cik = $2`, userID, cik)
	if err != nil {
		return fmt.Errorf("remove %s from watchlist of user %d: %w", cik, userID, err)
	}
	return nil
}
