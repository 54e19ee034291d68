// internal/notify/dispatcher_test.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "edgarwatch/internal/common/errors"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

type fakeDevices struct {
	mu      sync.Mutex
	byUser  map[int64]models.DeviceList
	removed []string // "userID:token" per unregister call
}

func (f *fakeDevices) GetDevices(_ context.Context, userID int64) (models.DeviceList, error) {
	return f.byUser[userID], nil
}

func (f *fakeDevices) GetAllDevices(_ context.Context) (map[int64]models.DeviceList, error) {
	return f.byUser, nil
}

func (f *fakeDevices) Unregister(_ context.Context, userID int64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, fmt.Sprintf("%d:%s", userID, token))
	f.byUser[userID] = f.byUser[userID].Unregister(token)
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []models.NotificationRecord
}

func (f *fakeHistory) Append(_ context.Context, rec *models.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

type fakeTransport struct {
	name string
	mu   sync.Mutex
	sent [][]string

	report *DeliveryReport
	err    error
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(_ context.Context, tokens []string, _ Content) (*DeliveryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tokens)
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &DeliveryReport{Success: len(tokens), Delivered: tokens}, nil
}

func (f *fakeTransport) allTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []string
	for _, batch := range f.sent {
		all = append(all, batch...)
	}
	return all
}

func device(token string) models.DeviceRegistration {
	return models.DeviceRegistration{Token: token, Kind: models.ClassifyToken(token)}
}

func newTestDispatcher(devices *fakeDevices, history *fakeHistory) (*Dispatcher, *fakeTransport, *fakeTransport) {
	relay := &fakeTransport{name: "relay"}
	direct := &fakeTransport{name: "direct"}
	d := NewDispatcher(devices, history, logger.NewNoOpLogger())
	d.RegisterTransport(models.TokenKindRelay, relay)
	d.RegisterTransport(models.TokenKindDirect, direct)
	return d, relay, direct
}

func TestNotifyUsers_SharedTokenSentOnce(t *testing.T) {
	shared := "ExponentPushToken[shared]"
	devices := &fakeDevices{byUser: map[int64]models.DeviceList{
		1: {device(shared), device("fcm-user1")},
		2: {device(shared)},
	}}
	history := &fakeHistory{}
	d, relay, direct := newTestDispatcher(devices, history)

	sent, err := d.NotifyUsers(context.Background(), []int64{1, 2}, TestContent(), models.TypeFilingRelease)
	require.NoError(t, err)
	assert.Equal(t, 2, sent, "one relay delivery plus one direct delivery")

	assert.Equal(t, []string{shared}, relay.allTokens(), "shared device hears about the filing once")
	assert.Equal(t, []string{"fcm-user1"}, direct.allTokens())

	// The shared token counts for user 1, its first holder; user 2 had no
	// delivery of their own, so only user 1 gets a ledger row.
	require.Len(t, history.records, 1)
	assert.Equal(t, int64(1), history.records[0].UserID)
	assert.Equal(t, models.StatusSent, history.records[0].Status)
	require.NotNil(t, history.records[0].SentAt)
}

func TestNotifyUsers_SharedOnlyDeviceYieldsOneLedgerRow(t *testing.T) {
	shared := "ExponentPushToken[shared]"
	devices := &fakeDevices{byUser: map[int64]models.DeviceList{
		1: {device(shared)},
		2: {device(shared)},
	}}
	history := &fakeHistory{}
	d, relay, _ := newTestDispatcher(devices, history)

	sent, err := d.NotifyUsers(context.Background(), []int64{1, 2}, TestContent(), models.TypeFilingRelease)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	assert.Equal(t, []string{shared}, relay.allTokens())
	require.Len(t, history.records, 1, "one physical delivery yields one history entry")
	assert.Equal(t, int64(1), history.records[0].UserID, "attributed to the first holder in recipient order")
}

func TestNotifyUsers_HistoryOnlyForReachedUsers(t *testing.T) {
	devices := &fakeDevices{byUser: map[int64]models.DeviceList{
		1: {device("fcm-dead")},
		2: {device("fcm-live")},
	}}
	history := &fakeHistory{}
	d, _, direct := newTestDispatcher(devices, history)
	direct.report = &DeliveryReport{
		Success:   1,
		Failure:   1,
		Delivered: []string{"fcm-live"},
	}

	sent, err := d.NotifyUsers(context.Background(), []int64{1, 2}, TestContent(), models.TypeFilingRelease)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, history.records, 1, "only the user whose own device was reached gets a row")
	assert.Equal(t, int64(2), history.records[0].UserID)
}

func TestNotifyUsers_PrunesInvalidTokenFromOwner(t *testing.T) {
	devices := &fakeDevices{byUser: map[int64]models.DeviceList{
		1: {device("fcm-dead")},
		2: {device("fcm-dead"), device("fcm-live")},
	}}
	history := &fakeHistory{}
	d, _, direct := newTestDispatcher(devices, history)
	direct.report = &DeliveryReport{
		Success:       1,
		Failure:       1,
		Delivered:     []string{"fcm-live"},
		InvalidTokens: []string{"fcm-dead"},
	}

	sent, err := d.NotifyUsers(context.Background(), []int64{1, 2}, TestContent(), models.TypeFilingRelease)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// The dead token was sent for user 1, its first holder, so only user 1's
	// registration is pruned; user 2's copy goes when a send for user 2
	// reports it invalid.
	assert.Equal(t, []string{"1:fcm-dead"}, devices.removed)
	assert.Empty(t, devices.byUser[1])
	require.Len(t, devices.byUser[2], 2)
}

func TestNotifyUsers_NoHistoryWhenNothingDelivered(t *testing.T) {
	devices := &fakeDevices{byUser: map[int64]models.DeviceList{
		1: {device("fcm-a")},
	}}
	history := &fakeHistory{}
	d, _, direct := newTestDispatcher(devices, history)
	direct.report = &DeliveryReport{Failure: 1}

	sent, err := d.NotifyUsers(context.Background(), []int64{1}, TestContent(), models.TypeFilingRelease)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, history.records, "no ledger rows when no device was reached")
}

func TestNotifyUsers_TransportErrorDoesNotBlockOtherFamily(t *testing.T) {
	devices := &fakeDevices{byUser: map[int64]models.DeviceList{
		1: {device("ExponentPushToken[a]"), device("fcm-b")},
	}}
	history := &fakeHistory{}
	d, relay, _ := newTestDispatcher(devices, history)
	relay.err = commonerrors.NewSendFailedError("relay", assert.AnError)

	sent, err := d.NotifyUsers(context.Background(), []int64{1}, TestContent(), models.TypeFilingRelease)
	require.NoError(t, err)
	assert.Equal(t, 1, sent, "direct family delivers despite relay batch failure")
	require.Len(t, history.records, 1)
}

func TestNotifyUsers_NotConfigured(t *testing.T) {
	d := NewDispatcher(&fakeDevices{}, &fakeHistory{}, logger.NewNoOpLogger())

	_, err := d.NotifyUsers(context.Background(), []int64{1}, TestContent(), models.TypeFilingRelease)
	require.Error(t, err)
	assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeNotConfigured))
}

func TestSendTest(t *testing.T) {
	t.Run("no devices", func(t *testing.T) {
		devices := &fakeDevices{byUser: map[int64]models.DeviceList{}}
		d, _, _ := newTestDispatcher(devices, &fakeHistory{})

		err := d.SendTest(context.Background(), 42)
		require.Error(t, err)
		assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeNoDeviceRegistered))
	})

	t.Run("delivery fails", func(t *testing.T) {
		devices := &fakeDevices{byUser: map[int64]models.DeviceList{
			42: {device("fcm-a")},
		}}
		d, _, direct := newTestDispatcher(devices, &fakeHistory{})
		direct.report = &DeliveryReport{Failure: 1}

		err := d.SendTest(context.Background(), 42)
		require.Error(t, err)
		assert.True(t, commonerrors.IsCode(err, commonerrors.ErrCodeSendFailed))
	})

	t.Run("dead token pruned from the tested user", func(t *testing.T) {
		devices := &fakeDevices{byUser: map[int64]models.DeviceList{
			42: {device("fcm-dead"), device("fcm-live")},
		}}
		d, _, direct := newTestDispatcher(devices, &fakeHistory{})
		direct.report = &DeliveryReport{
			Success:       1,
			Failure:       1,
			Delivered:     []string{"fcm-live"},
			InvalidTokens: []string{"fcm-dead"},
		}

		require.NoError(t, d.SendTest(context.Background(), 42))
		assert.Equal(t, []string{"42:fcm-dead"}, devices.removed)
	})

	t.Run("success appends one row", func(t *testing.T) {
		devices := &fakeDevices{byUser: map[int64]models.DeviceList{
			42: {device("fcm-a"), device("ExponentPushToken[b]")},
		}}
		history := &fakeHistory{}
		d, _, _ := newTestDispatcher(devices, history)

		require.NoError(t, d.SendTest(context.Background(), 42))
		require.Len(t, history.records, 1)
		assert.Equal(t, models.TypeTest, history.records[0].Type)
		assert.Equal(t, int64(42), history.records[0].UserID)
		assert.Equal(t, models.StatusSent, history.records[0].Status)
	})
}
