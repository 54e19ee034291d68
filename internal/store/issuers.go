// internal/store/issuers.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// IssuerStore manages the registry of tracked issuers.
type IssuerStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewIssuerStore(db *database.PostgresClient, log logger.Logger) *IssuerStore {
	return &IssuerStore{db: db, logger: log}
}

// ListActive returns the issuers currently being monitored, ordered by CIK so
// scan passes walk them in a stable order.
func (s *IssuerStore) ListActive(ctx context.Context) ([]models.TrackedIssuer, error) {
	rows, err := s.db.Query(ctx, `
		SELECT cik, ticker, name, active
		FROM tracked_issuers
		WHERE active = TRUE
		ORDER BY cik`)
	if err != nil {
		return nil, fmt.Errorf("list active issuers: %w", err)
	}
	defer rows.Close()

	var issuers []models.TrackedIssuer
	for rows.Next() {
		var iss models.TrackedIssuer
		if err := rows.Scan(&iss.CIK, &iss.Ticker, &iss.Name, &iss.Active); err != nil {
			return nil, fmt.Errorf("scan issuer row: %w", err)
		}
		issuers = append(issuers, iss)
	}
	return issuers, rows.Err()
}

// GetByCIK looks up one issuer. Returns (nil, nil) when the issuer is not
// registered.
func (s *IssuerStore) GetByCIK(ctx context.Context, cik string) (*models.TrackedIssuer, error) {
	cik = models.NormalizeCIK(cik)
	var iss models.TrackedIssuer
	err := s.db.QueryRow(ctx, `
		SELECT cik, ticker, name, active
		FROM tracked_issuers
		WHERE cik = $1`, cik).Scan(&iss.CIK, &iss.Ticker, &iss.Name, &iss.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issuer %s: %w", cik, err)
	}
	return &iss, nil
}

// Upsert registers or refreshes an issuer. Existing rows keep their active
// flag; name and ticker are overwritten with the newer values.
func (s *IssuerStore) Upsert(ctx context.Context, iss models.TrackedIssuer) error {
	iss.CIK = models.NormalizeCIK(iss.CIK)
	_, err := s.db.Exec(ctx, `
		INSERT INTO tracked_issuers (cik, ticker, name, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cik) DO UPDATE
		SET ticker = EXCLUDED.ticker, name = EXCLUDED.name`,
		iss.CIK, iss.Ticker, iss.Name, iss.Active)
	if err != nil {
		return fmt.Errorf("upsert issuer %s: %w", iss.CIK, err)
	}
	return nil
}

// SetActive flips monitoring on or off for one issuer.
func (s *IssuerStore) SetActive(ctx context.Context, cik string, active bool) error {
	cik = models.NormalizeCIK(cik)
	res, err := s.db.Exec(ctx, `
		UPDATE tracked_issuers SET active = $2 WHERE cik = $1`, cik, active)
	if err != nil {
		return fmt.Errorf("set issuer %s active=%t: %w", cik, active, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Warn("set active on unknown issuer", map[string]interface{}{
			"cik": cik,
		})
	}
	return nil
}
