// internal/edgar/feed_test.go
package edgar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgarwatch/internal/models"
)

func TestParseFeedTitle(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		wantForm string
		wantName string
		wantCIK  string
		wantOK   bool
	}{
		{
			name:     "form name cik and annotation",
			title:    "10-K - ACME CORP (0000123456) (Filer)",
			wantForm: "10-K",
			wantName: "ACME CORP",
			wantCIK:  "0000123456",
			wantOK:   true,
		},
		{
			name:     "form name and cik",
			title:    "8-K - Widget Industries Inc. (0000987654)",
			wantForm: "8-K",
			wantName: "Widget Industries Inc.",
			wantCIK:  "0000987654",
			wantOK:   true,
		},
		{
			name:     "form and name only",
			title:    "S-1 - NewCo Holdings",
			wantForm: "S-1",
			wantName: "NewCo Holdings",
			wantOK:   true,
		},
		{
			name:     "multiple trailing annotations",
			title:    "10-Q - Conglomerate plc (0000555555) (Filer) (Subject)",
			wantForm: "10-Q",
			wantName: "Conglomerate plc",
			wantCIK:  "0000555555",
			wantOK:   true,
		},
		{
			name:   "no form separator",
			title:  "EDGAR Online notice",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, name, cik, ok := parseFeedTitle(tt.title)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantForm, form)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantCIK, cik)
		})
	}
}

func TestParsePublished(t *testing.T) {
	client, _ := newTestClient(t, "http://unused")
	now := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		published string
		want      time.Time
	}{
		{
			name:      "rfc3339",
			published: "2024-11-01T09:30:00-04:00",
			want:      time.Date(2024, 11, 1, 13, 30, 0, 0, time.UTC),
		},
		{
			name:      "abbreviated eastern daylight zone",
			published: "Fri, 01 Nov 2024 09:30:00 EDT",
			want:      time.Date(2024, 11, 1, 13, 30, 0, 0, time.UTC),
		},
		{
			name:      "abbreviated pacific standard zone",
			published: "Mon, 02 Dec 2024 08:00:00 PST",
			want:      time.Date(2024, 12, 2, 16, 0, 0, 0, time.UTC),
		},
		{
			name:      "bare datetime",
			published: "2024-11-01T05:00:00",
			want:      time.Date(2024, 11, 1, 5, 0, 0, 0, time.UTC),
		},
		{
			name:      "garbage falls back to scan time",
			published: "yesterday-ish",
			want:      now,
		},
		{
			name:      "empty falls back to scan time",
			published: "",
			want:      now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &gofeed.Item{Title: "10-K - ACME CORP", Published: tt.published}
			got := client.parsePublished(item, now)
			assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
		})
	}
}

func feedXML(entries string) string {
	return `<?xml version="1.0" encoding="ISO-8859-1"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Latest Filings</title>
  <updated>2024-11-01T12:00:00-04:00</updated>
` + entries + `
</feed>`
}

func feedEntryXML(title, link, updated string) string {
	return fmt.Sprintf(`  <entry>
    <title>%s</title>
    <link rel="alternate" href=%q/>
    <updated>%s</updated>
  </entry>
`, title, link, updated)
}

func TestFetchRecentFilings(t *testing.T) {
	inWindow := feedEntryXML(
		"8-K - Widget Industries Inc. (0000987654) (Filer)",
		"https://www.sec.gov/Archives/edgar/data/987654/000098765424000010/0000987654-24-000010-index.htm",
		"2024-11-01T11:30:00-04:00")
	newest := feedEntryXML(
		"8-K - ACME CORP (0000123456) (Filer)",
		"https://www.sec.gov/Archives/edgar/data/123456/000012345624000099/0000123456-24-000099-index.htm",
		"2024-11-01T11:45:00-04:00")
	atCutoff := feedEntryXML(
		"8-K - Borderline Co (0000111111) (Filer)",
		"https://www.sec.gov/Archives/edgar/data/111111/000011111124000001/0000111111-24-000001-index.htm",
		"2024-11-01T11:00:00-04:00")
	tooOld := feedEntryXML(
		"8-K - Stale Corp (0000222222) (Filer)",
		"https://www.sec.gov/Archives/edgar/data/222222/000022222224000001/0000222222-24-000001-index.htm",
		"2024-11-01T10:59:59-04:00")
	noAccession := feedEntryXML(
		"8-K - Mystery Co (0000333333) (Filer)",
		"https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=0000333333",
		"2024-11-01T11:30:00-04:00")

	var queriedForms []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		form := r.URL.Query().Get("type")
		queriedForms = append(queriedForms, form)
		assert.Equal(t, "getcurrent", r.URL.Query().Get("action"))
		assert.Equal(t, "atom", r.URL.Query().Get("output"))
		w.Header().Set("Content-Type", "application/atom+xml")
		if form == "8-K" {
			fmt.Fprint(w, feedXML(inWindow+newest+atCutoff+tooOld+noAccession))
			return
		}
		fmt.Fprint(w, feedXML(""))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	// Deterministic scan time: cutoff is 11:00 EDT with a one hour lookback.
	client.now = func() time.Time { return time.Date(2024, 11, 1, 16, 0, 0, 0, time.UTC) }

	records, err := client.FetchRecentFilings(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.ElementsMatch(t, models.FeedQueryForms(), queriedForms)

	// Three survive: the stale entry is outside the window, the one without
	// an accession number cannot be deduplicated.
	require.Len(t, records, 3)
	assert.Equal(t, "0000123456-24-000099", records[0].AccessionNumber, "newest first")
	assert.Equal(t, "0000987654-24-000010", records[1].AccessionNumber)
	assert.Equal(t, "0000111111-24-000001", records[2].AccessionNumber, "entry at the cutoff instant is kept")

	first := records[0]
	assert.Equal(t, "0000123456", first.CIK)
	assert.Equal(t, "ACME CORP", first.IssuerName)
	assert.Equal(t, models.SourceFeed, first.Source)
	require.NoError(t, first.Validate())
}

func TestFetchRecentFilings_CIKFallbackFromLink(t *testing.T) {
	entry := feedEntryXML(
		"10-K - Linkonly Corp",
		"https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=444555&accession_number=0000444555-24-000007",
		"2024-11-01T11:30:00-04:00")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") == "10-K" {
			fmt.Fprint(w, feedXML(entry))
			return
		}
		fmt.Fprint(w, feedXML(""))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	client.now = func() time.Time { return time.Date(2024, 11, 1, 16, 0, 0, 0, time.UTC) }

	records, err := client.FetchRecentFilings(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0000444555", records[0].CIK, "cik recovered from link and zero padded")
	assert.Equal(t, "Linkonly Corp", records[0].IssuerName)
}

func TestFetchRecentFilings_AllQueriesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	_, err := client.FetchRecentFilings(context.Background(), time.Hour)
	require.Error(t, err)
}

func TestCursorStores(t *testing.T) {
	store := NewMemoryCursorStore()
	ctx := context.Background()

	val, err := store.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.Empty(t, val, "missing cursor is empty, not an error")

	require.NoError(t, store.Set(ctx, "0000320193", `"abc"`))
	val, err = store.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, val)
}
