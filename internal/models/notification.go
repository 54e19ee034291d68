// internal/models/notification.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Notification types
const (
	TypeFilingRelease = "filing_release"
	TypeTest          = "test"
)

// Notification statuses
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// NotificationPreference holds one user's push settings.
type NotificationPreference struct {
	UserID        int64 `json:"userId"`
	Enabled       bool  `json:"enabled"` // master switch
	FilingAnnual  bool  `json:"filing10k"`
	FilingQuarter bool  `json:"filing10q"`
	FilingCurrent bool  `json:"filing8k"`
	FilingRegist  bool  `json:"filingS1"`
	WatchlistOnly bool  `json:"watchlistOnly"`
}

// FormEnabled reports whether the per-form flag for formType is on.
// Unknown form types are off, so future forms fail safe.
func (p *NotificationPreference) FormEnabled(formType string) bool {
	switch formType {
	case FormAnnual:
		return p.FilingAnnual
	case FormQuarterly:
		return p.FilingQuarter
	case FormCurrent:
		return p.FilingCurrent
	case FormRegistration:
		return p.FilingRegist
	}
	return false
}

// ShouldNotify applies the full eligibility rule: master switch, per-form
// flag, and watchlist scope.
func (p *NotificationPreference) ShouldNotify(formType string, inWatchlist bool) bool {
	if !p.Enabled {
		return false
	}
	if p.WatchlistOnly && !inWatchlist {
		return false
	}
	return p.FormEnabled(formType)
}

// EnabledFormTypes returns the form types this user has switched on.
func (p *NotificationPreference) EnabledFormTypes() []string {
	var enabled []string
	for _, form := range SupportedFormTypes {
		if p.FormEnabled(form) {
			enabled = append(enabled, form)
		}
	}
	return enabled
}

// Summary returns a human-readable description of the settings, consumed by
// the settings endpoints.
func (p *NotificationPreference) Summary() string {
	if !p.Enabled {
		return "Notifications disabled"
	}
	scope := "All companies"
	if p.WatchlistOnly {
		scope = "Watchlist only"
	}
	n := len(p.EnabledFormTypes())
	if n == 0 {
		return scope + " - no filing types selected"
	}
	plural := ""
	if n > 1 {
		plural = "s"
	}
	return fmt.Sprintf("%s - %d filing type%s", scope, n, plural)
}

// TokenKind is the push transport family a device token belongs to. It is
// decided once when the registration is normalized and carried as data, not
// re-derived at send time.
type TokenKind string

const (
	TokenKindRelay  TokenKind = "relay"
	TokenKindDirect TokenKind = "direct"
)

// relayTokenPrefixes are the structural shapes of relay-network tokens.
var relayTokenPrefixes = []string{"ExponentPushToken[", "ExpoPushToken["}

// ClassifyToken assigns a raw push token to exactly one transport family.
func ClassifyToken(token string) TokenKind {
	for _, prefix := range relayTokenPrefixes {
		if strings.HasPrefix(token, prefix) {
			return TokenKindRelay
		}
	}
	return TokenKindDirect
}

// DeviceRegistration is one (token, platform) pair representing an installed
// app instance. A physical token may legitimately appear under more than one
// user when accounts share a device.
type DeviceRegistration struct {
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	Kind      TokenKind `json:"kind"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeviceList is one user's ordered device registrations.
type DeviceList []DeviceRegistration

// Register upserts a token. An existing entry keeps its position and AddedAt;
// only platform and UpdatedAt change.
func (dl DeviceList) Register(token, platform string, now time.Time) DeviceList {
	for i := range dl {
		if dl[i].Token == token {
			dl[i].Platform = platform
			dl[i].Kind = ClassifyToken(token)
			dl[i].UpdatedAt = now
			return dl
		}
	}
	return append(dl, DeviceRegistration{
		Token:     token,
		Platform:  platform,
		Kind:      ClassifyToken(token),
		AddedAt:   now,
		UpdatedAt: now,
	})
}

// Unregister removes the entry for token, if present.
func (dl DeviceList) Unregister(token string) DeviceList {
	out := dl[:0]
	for _, d := range dl {
		if d.Token != token {
			out = append(out, d)
		}
	}
	return out
}

// Normalize fills in the Kind tag for registrations persisted before the
// family was recorded.
func (dl DeviceList) Normalize() DeviceList {
	for i := range dl {
		if dl[i].Kind == "" {
			dl[i].Kind = ClassifyToken(dl[i].Token)
		}
	}
	return dl
}

// NotificationRecord is one append-only ledger entry: a per-user delivery
// attempt for one notification.
type NotificationRecord struct {
	ID        int64             `json:"id"`
	UserID    int64             `json:"userId"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Status    string            `json:"status"`
	SentAt    *time.Time        `json:"sentAt,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// MarkSent transitions pending -> sent. The transition happens exactly once.
func (n *NotificationRecord) MarkSent(at time.Time) error {
	if n.Status != StatusPending {
		return fmt.Errorf("notification already %s", n.Status)
	}
	n.Status = StatusSent
	n.SentAt = &at
	return nil
}

// MarkFailed transitions pending -> failed. The transition happens exactly once.
func (n *NotificationRecord) MarkFailed(errText string) error {
	if n.Status != StatusPending {
		return fmt.Errorf("notification already %s", n.Status)
	}
	n.Status = StatusFailed
	n.Error = errText
	return nil
}
