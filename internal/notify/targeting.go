// internal/notify/targeting.go
package notify

import (
	"context"
	"sort"

	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// PreferenceSource lists users whose settings allow a given form type.
type PreferenceSource interface {
	UsersForForm(ctx context.Context, formType string) ([]models.NotificationPreference, error)
}

// WatchlistSource reports which users watch an issuer.
type WatchlistSource interface {
	UsersWatching(ctx context.Context, cik string) (map[int64]struct{}, error)
}

// Targeter resolves which users should hear about a filing.
type Targeter struct {
	prefs      PreferenceSource
	watchlists WatchlistSource
	logger     logger.Logger
}

func NewTargeter(prefs PreferenceSource, watchlists WatchlistSource, log logger.Logger) *Targeter {
	return &Targeter{prefs: prefs, watchlists: watchlists, logger: log}
}

// Recipients returns the ids of users eligible for this filing: master switch
// on, per-form flag on, and for watchlist-scoped users the issuer must be on
// their watchlist. Each user appears at most once. An unknown form type
// yields no recipients.
func (t *Targeter) Recipients(ctx context.Context, filing models.FilingRecord) ([]int64, error) {
	if !models.IsSupportedFormType(filing.FormType) {
		t.logger.Warn("no targeting rule for form type", map[string]interface{}{
			"formType":  filing.FormType,
			"accession": filing.AccessionNumber,
		})
		return nil, nil
	}

	prefs, err := t.prefs.UsersForForm(ctx, filing.FormType)
	if err != nil {
		return nil, err
	}
	if len(prefs) == 0 {
		return nil, nil
	}

	watching, err := t.watchlists.UsersWatching(ctx, filing.CIK)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(prefs))
	var recipients []int64
	for _, p := range prefs {
		if _, dup := seen[p.UserID]; dup {
			continue
		}
		_, inWatchlist := watching[p.UserID]
		if !p.ShouldNotify(filing.FormType, inWatchlist) {
			continue
		}
		seen[p.UserID] = struct{}{}
		recipients = append(recipients, p.UserID)
	}

	// Stable order so token dedup picks the same holder on every run.
	sort.Slice(recipients, func(i, j int) bool { return recipients[i] < recipients[j] })
	return recipients, nil
}
