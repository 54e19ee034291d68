// internal/edgar/feed.go
package edgar

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	commonerrors "edgarwatch/internal/common/errors"
	"edgarwatch/internal/common/metrics"
	"edgarwatch/internal/models"
)

// Title shapes seen on the broad feed, tried in order:
//
//	10-K - ACME CORP (0000123456) (Filer)
//	10-K - ACME CORP (0000123456)
//	10-K - ACME CORP
var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([\w./-]+)\s+-\s+(.+?)\s+\((\d+)\)(?:\s+\([^)]+\))+\s*$`),
	regexp.MustCompile(`^([\w./-]+)\s+-\s+(.+?)\s+\((\d+)\)\s*$`),
	regexp.MustCompile(`^([\w./-]+)\s+-\s+(.+?)\s*$`),
}

var (
	linkCIKPattern      = regexp.MustCompile(`CIK=(\d+)`)
	summaryCIKPattern   = regexp.MustCompile(`CIK[:\s]+(\d+)`)
	accessionPattern    = regexp.MustCompile(`(\d{10}-\d{2}-\d{6})`)
	trailingParenSuffix = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// Timestamp layouts observed on the feed. Zone abbreviations are mapped to
// numeric offsets first because time.Parse resolves abbreviations unreliably.
var publishedLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var zoneOffsets = map[string]string{
	"EDT": "-0400",
	"EST": "-0500",
	"PDT": "-0700",
	"PST": "-0800",
}

// feedEntry is the intermediate parse of one Atom item before it becomes a
// FilingRecord.
type feedEntry struct {
	formType   string
	issuerName string
	cik        string
	accession  string
	link       string
	published  time.Time
}

// FetchRecentFilings queries the broad feed once per queried form type and
// returns every parseable entry published within the lookback window, newest
// first. Entries at exactly the cutoff instant are kept. Tracking-based
// filtering is the caller's concern; this method only parses and windows.
func (c *Client) FetchRecentFilings(ctx context.Context, lookback time.Duration) ([]models.FilingRecord, error) {
	now := c.now()
	cutoff := now.Add(-lookback)

	parser := gofeed.NewParser()
	parser.UserAgent = c.userAgent
	parser.Client = c.httpClient.Underlying()

	var records []models.FilingRecord
	var lastErr error
	fetched := 0

	for _, form := range models.FeedQueryForms() {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		feed, err := parser.ParseURLWithContext(c.feedQueryURL(form), ctx)
		if err != nil {
			c.logger.WithError(err).Warn("feed query failed", map[string]interface{}{
				"formType": form,
			})
			lastErr = err
			continue
		}
		fetched++

		for _, item := range feed.Items {
			entry, err := c.parseFeedItem(item, now)
			if err != nil {
				metrics.FeedEntriesDropped.WithLabelValues("unparseable").Inc()
				c.logger.WithError(err).Warn("dropping unparseable feed entry", map[string]interface{}{
					"title": item.Title,
				})
				continue
			}
			if !models.IsSupportedFormType(entry.formType) {
				metrics.FeedEntriesDropped.WithLabelValues("unsupported_form").Inc()
				continue
			}
			if entry.published.Before(cutoff) {
				metrics.FeedEntriesDropped.WithLabelValues("outside_window").Inc()
				c.logger.Debug("dropping feed entry outside lookback window", map[string]interface{}{
					"accession": entry.accession,
					"published": entry.published,
				})
				continue
			}
			records = append(records, models.FilingRecord{
				CIK:             entry.cik,
				IssuerName:      entry.issuerName,
				FormType:        entry.formType,
				AccessionNumber: entry.accession,
				FilingDate:      entry.published,
				FilingURL:       entry.link,
				Source:          models.SourceFeed,
			})
		}
	}

	// Only fail the pass when every per-form query failed.
	if fetched == 0 && lastErr != nil {
		return nil, commonerrors.NewUpstreamUnavailableError("feed", lastErr)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FilingDate.After(records[j].FilingDate)
	})
	return records, nil
}

func (c *Client) feedQueryURL(form string) string {
	q := url.Values{}
	q.Set("action", "getcurrent")
	q.Set("type", form)
	q.Set("owner", "exclude")
	q.Set("output", "atom")
	q.Set("count", fmt.Sprintf("%d", c.feedPageSize))
	return c.feedBaseURL + "?" + q.Encode()
}

// parseFeedItem extracts the filing identity from one Atom item. The CIK is
// taken from the title when present, then from the link query string, then
// from the summary text. Entries without an accession number or CIK cannot
// be deduplicated and are rejected.
func (c *Client) parseFeedItem(item *gofeed.Item, now time.Time) (*feedEntry, error) {
	form, name, cik, ok := parseFeedTitle(item.Title)
	if !ok {
		return nil, commonerrors.NewParseFailureError(fmt.Sprintf("unrecognized title: %q", item.Title))
	}

	if cik == "" {
		cik = cikFromLink(item.Link)
	}
	if cik == "" {
		cik = cikFromSummary(item.Description)
	}
	if cik == "" {
		return nil, commonerrors.NewParseFailureError(fmt.Sprintf("no cik in entry: %q", item.Title))
	}

	accession := accessionFromEntry(item)
	if accession == "" {
		return nil, commonerrors.NewParseFailureError(fmt.Sprintf("no accession number in entry: %q", item.Title))
	}

	return &feedEntry{
		formType:   form,
		issuerName: name,
		cik:        models.NormalizeCIK(cik),
		accession:  accession,
		link:       item.Link,
		published:  c.parsePublished(item, now),
	}, nil
}

// parseFeedTitle splits a feed title into form type, issuer name and optional
// CIK. ok is false only when the title has no recognizable form prefix.
func parseFeedTitle(title string) (form, name, cik string, ok bool) {
	title = strings.TrimSpace(title)
	for _, pat := range titlePatterns {
		m := pat.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		form = strings.TrimSpace(m[1])
		name = strings.TrimSpace(m[2])
		if len(m) > 3 {
			cik = m[3]
		}
		// The CIK-less shape can leave annotations stuck to the name.
		for trailingParenSuffix.MatchString(name) {
			name = trailingParenSuffix.ReplaceAllString(name, "")
		}
		return form, name, cik, true
	}
	return "", "", "", false
}

func cikFromLink(link string) string {
	if m := linkCIKPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

func cikFromSummary(summary string) string {
	if m := summaryCIKPattern.FindStringSubmatch(summary); m != nil {
		return m[1]
	}
	return ""
}

// accessionFromEntry pulls the accession number from the entry link, falling
// back to the entry GUID and summary.
func accessionFromEntry(item *gofeed.Item) string {
	for _, s := range []string{item.Link, item.GUID, item.Description} {
		if m := accessionPattern.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

// parsePublished parses the entry timestamp, normalizing zone abbreviations
// to numeric offsets first. An unparseable timestamp falls back to the
// current scan time with a warning rather than dropping the entry.
func (c *Client) parsePublished(item *gofeed.Item, now time.Time) time.Time {
	raw := item.Published
	if raw == "" {
		raw = item.Updated
	}
	if raw == "" {
		c.logger.Warn("feed entry has no timestamp, using scan time", map[string]interface{}{
			"title": item.Title,
		})
		return now
	}

	normalized := strings.TrimSpace(raw)
	for abbrev, offset := range zoneOffsets {
		if strings.HasSuffix(normalized, " "+abbrev) {
			normalized = strings.TrimSuffix(normalized, abbrev) + offset
			break
		}
	}

	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UTC()
		}
	}

	c.logger.Warn("unparseable feed timestamp, using scan time", map[string]interface{}{
		"title":     item.Title,
		"published": raw,
	})
	return now
}
