// internal/store/devices.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"edgarwatch/internal/common/database"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// DeviceStore manages per-user device registrations. Each user's devices are
// stored as one JSON document, matching how the registration endpoints write
// them.
type DeviceStore struct {
	db     *database.PostgresClient
	logger logger.Logger
	now    func() time.Time
}

func NewDeviceStore(db *database.PostgresClient, log logger.Logger) *DeviceStore {
	return &DeviceStore{
		db:     db,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetDevices returns one user's registrations. A user with no row has no
// devices; that is not an error.
func (s *DeviceStore) GetDevices(ctx context.Context, userID int64) (models.DeviceList, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT devices FROM user_devices WHERE user_id = $1`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get devices for user %d: %w", userID, err)
	}

	var devices models.DeviceList
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("decode devices for user %d: %w", userID, err)
	}
	return devices.Normalize(), nil
}

// GetAllDevices returns every user's registrations, keyed by user id. Loaded
// once per dispatch so cross-user token dedup sees the whole population.
func (s *DeviceStore) GetAllDevices(ctx context.Context) (map[int64]models.DeviceList, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id, devices FROM user_devices`)
	if err != nil {
		return nil, fmt.Errorf("list all devices: %w", err)
	}
	defer rows.Close()

	all := make(map[int64]models.DeviceList)
	for rows.Next() {
		var userID int64
		var raw []byte
		if err := rows.Scan(&userID, &raw); err != nil {
			return nil, fmt.Errorf("scan devices row: %w", err)
		}
		var devices models.DeviceList
		if err := json.Unmarshal(raw, &devices); err != nil {
			// One corrupt document must not block dispatch for everyone.
			s.logger.WithError(err).Error("skipping corrupt device document", map[string]interface{}{
				"userId": userID,
			})
			continue
		}
		all[userID] = devices.Normalize()
	}
	return all, rows.Err()
}

func (s *DeviceStore) saveDevices(ctx context.Context, userID int64, devices models.DeviceList) error {
	raw, err := json.Marshal(devices)
	if err != nil {
		return fmt.Errorf("encode devices for user %d: %w", userID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO user_devices (user_id, devices, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET devices = EXCLUDED.devices, updated_at = EXCLUDED.updated_at`,
		userID, raw, s.now())
	if err != nil {
		return fmt.Errorf("save devices for user %d: %w", userID, err)
	}
	return nil
}

// Register upserts one token on one user's list.
func (s *DeviceStore) Register(ctx context.Context, userID int64, token, platform string) error {
	devices, err := s.GetDevices(ctx, userID)
	if err != nil {
		return err
	}
	return s.saveDevices(ctx, userID, devices.Register(token, platform, s.now()))
}

// Unregister removes one token from one user's list. Used both by the
// registration endpoints and by pruning after delivery reports the token
// invalid for that user.
func (s *DeviceStore) Unregister(ctx context.Context, userID int64, token string) error {
	devices, err := s.GetDevices(ctx, userID)
	if err != nil {
		return err
	}
	return s.saveDevices(ctx, userID, devices.Unregister(token))
}
