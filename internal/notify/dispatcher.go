// internal/notify/dispatcher.go
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	commonerrors "edgarwatch/internal/common/errors"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/common/metrics"
	"edgarwatch/internal/models"
)

// DeviceSource is the slice of the device store the dispatcher needs.
type DeviceSource interface {
	GetDevices(ctx context.Context, userID int64) (models.DeviceList, error)
	GetAllDevices(ctx context.Context) (map[int64]models.DeviceList, error)
	Unregister(ctx context.Context, userID int64, token string) error
}

// HistoryAppender records per-user ledger rows.
type HistoryAppender interface {
	Append(ctx context.Context, rec *models.NotificationRecord) error
}

// Dispatcher fans one notification out to a set of users. It owns the two
// delivery invariants: a physical device hears about a notification at most
// once even when several recipients share it, and a history row is written
// only for users at least one of whose own deliveries succeeded. A shared
// token belongs to its first holder in recipient order for both attribution
// and pruning.
type Dispatcher struct {
	devices    DeviceSource
	history    HistoryAppender
	transports map[models.TokenKind]Transport
	logger     logger.Logger
	now        func() time.Time
}

func NewDispatcher(devices DeviceSource, history HistoryAppender, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		devices:    devices,
		history:    history,
		transports: make(map[models.TokenKind]Transport),
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RegisterTransport wires one transport for its token family. A family
// without a transport is skipped at send time with a warning.
func (d *Dispatcher) RegisterTransport(kind models.TokenKind, t Transport) {
	d.transports[kind] = t
}

// Configured reports whether at least one transport is wired.
func (d *Dispatcher) Configured() bool {
	return len(d.transports) > 0
}

// NotifyUsers delivers content to every device of the given users. Returns
// the number of device deliveries that succeeded. Tokens shared between
// recipients are sent once, attributed to the first user in recipient order
// holding them; a recipient gets a ledger row only when at least one token
// attributed to them was confirmed delivered.
func (d *Dispatcher) NotifyUsers(ctx context.Context, userIDs []int64, content Content, notifType string) (int, error) {
	if !d.Configured() {
		return 0, commonerrors.NewNotConfiguredError("all")
	}
	if len(userIDs) == 0 {
		return 0, nil
	}

	all, err := d.devices.GetAllDevices(ctx)
	if err != nil {
		return 0, err
	}

	byKind, owners := d.dedupTokens(userIDs, all)
	reports := d.sendAll(ctx, byKind, content)

	totalSuccess, totalFailure := 0, 0
	var invalid []string
	reached := make(map[int64]struct{})
	for kind, report := range reports {
		if report == nil {
			continue
		}
		totalSuccess += report.Success
		totalFailure += report.Failure
		metrics.NotificationsSent.WithLabelValues(string(kind)).Add(float64(report.Success))
		metrics.NotificationsFailed.WithLabelValues(string(kind)).Add(float64(report.Failure))
		invalid = append(invalid, report.InvalidTokens...)
		for _, token := range report.Delivered {
			if userID, ok := owners[token]; ok {
				reached[userID] = struct{}{}
			}
		}
	}

	d.pruneTokens(ctx, invalid, owners)

	var sentTo []int64
	for _, userID := range userIDs {
		if _, ok := reached[userID]; ok {
			sentTo = append(sentTo, userID)
		}
	}
	if len(sentTo) > 0 {
		d.appendHistory(ctx, sentTo, content, notifType)
	} else if totalFailure > 0 {
		d.logger.Error("notification reached no device", map[string]interface{}{
			"recipients": len(userIDs),
			"failures":   totalFailure,
		})
	}
	return totalSuccess, nil
}

// SendTest pushes a test notification to one user's devices so they can
// verify their setup. The error code tells the settings surface what went
// wrong: nothing configured, no devices, or delivery failure.
func (d *Dispatcher) SendTest(ctx context.Context, userID int64) error {
	if !d.Configured() {
		return commonerrors.NewNotConfiguredError("all")
	}

	devices, err := d.devices.GetDevices(ctx, userID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return commonerrors.NewNoDeviceRegisteredError(userID)
	}

	byKind := make(map[models.TokenKind][]string)
	owners := make(map[string]int64)
	for _, dev := range devices {
		byKind[dev.Kind] = append(byKind[dev.Kind], dev.Token)
		owners[dev.Token] = userID
	}

	content := TestContent()
	reports := d.sendAll(ctx, byKind, content)

	success := 0
	var invalid []string
	for _, report := range reports {
		if report == nil {
			continue
		}
		success += report.Success
		invalid = append(invalid, report.InvalidTokens...)
	}
	d.pruneTokens(ctx, invalid, owners)

	if success == 0 {
		return commonerrors.NewSendFailedError("all", errors.New("no device delivery succeeded"))
	}
	d.appendHistory(ctx, []int64{userID}, content, models.TypeTest)
	return nil
}

// dedupTokens collects the users' tokens grouped by transport family, each
// physical token exactly once, and records which user each token counts for.
// userIDs order decides which holder a shared token is attributed to.
func (d *Dispatcher) dedupTokens(userIDs []int64, all map[int64]models.DeviceList) (map[models.TokenKind][]string, map[string]int64) {
	owners := make(map[string]int64)
	byKind := make(map[models.TokenKind][]string)
	for _, userID := range userIDs {
		for _, dev := range all[userID] {
			if _, dup := owners[dev.Token]; dup {
				continue
			}
			owners[dev.Token] = userID
			byKind[dev.Kind] = append(byKind[dev.Kind], dev.Token)
		}
	}
	return byKind, owners
}

// sendAll runs the wired transports concurrently, one batch per token
// family. A transport error is logged and surfaces as a nil report; the
// other family still delivers.
func (d *Dispatcher) sendAll(ctx context.Context, byKind map[models.TokenKind][]string, content Content) map[models.TokenKind]*DeliveryReport {
	var mu sync.Mutex
	var wg sync.WaitGroup
	reports := make(map[models.TokenKind]*DeliveryReport)

	for kind, tokens := range byKind {
		if len(tokens) == 0 {
			continue
		}
		transport, ok := d.transports[kind]
		if !ok {
			d.logger.Warn("no transport for token family", map[string]interface{}{
				"kind":   string(kind),
				"tokens": len(tokens),
			})
			continue
		}

		wg.Add(1)
		go func(kind models.TokenKind, transport Transport, tokens []string) {
			defer wg.Done()
			report, err := transport.Send(ctx, tokens, content)
			if err != nil {
				d.logger.WithError(err).Error("transport batch failed", map[string]interface{}{
					"transport": transport.Name(),
					"tokens":    len(tokens),
				})
				return
			}
			mu.Lock()
			reports[kind] = report
			mu.Unlock()
		}(kind, transport, tokens)
	}
	wg.Wait()
	return reports
}

// pruneTokens removes permanently dead tokens from the registration list of
// the user they were sent for. Pruning is best effort; a store failure
// leaves the token to be pruned on the next delivery.
func (d *Dispatcher) pruneTokens(ctx context.Context, tokens []string, owners map[string]int64) {
	for _, token := range tokens {
		userID, ok := owners[token]
		if !ok {
			continue
		}
		if err := d.devices.Unregister(ctx, userID, token); err != nil {
			d.logger.WithError(err).Warn("token prune failed", map[string]interface{}{
				"token":  token,
				"userId": userID,
			})
			continue
		}
		metrics.TokensPruned.Inc()
		d.logger.Info("pruned dead device token", map[string]interface{}{
			"token":  token,
			"userId": userID,
		})
	}
}

// appendHistory writes one ledger row per user. Rows start pending and are
// marked sent before the append, so the record's own state machine guards
// the transition.
func (d *Dispatcher) appendHistory(ctx context.Context, userIDs []int64, content Content, notifType string) {
	sentAt := d.now()
	for _, userID := range userIDs {
		rec := &models.NotificationRecord{
			UserID: userID,
			Type:   notifType,
			Title:  content.Title,
			Body:   content.Body,
			Data:   content.Data,
			Status: models.StatusPending,
		}
		if err := rec.MarkSent(sentAt); err != nil {
			d.logger.WithError(err).Error("history record transition rejected", map[string]interface{}{
				"userId": userID,
			})
			continue
		}
		if err := d.history.Append(ctx, rec); err != nil {
			d.logger.WithError(err).Error("history append failed", map[string]interface{}{
				"userId": userID,
			})
		}
	}
}
