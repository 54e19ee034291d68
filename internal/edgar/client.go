// internal/edgar/client.go
package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edgarwatch/internal/common/config"
	commonerrors "edgarwatch/internal/common/errors"
	httpx "edgarwatch/internal/common/http"
	"edgarwatch/internal/common/logger"
	"edgarwatch/internal/models"
)

// FetchStatus classifies the outcome of one per-issuer structured fetch.
type FetchStatus string

const (
	StatusFresh       FetchStatus = "fresh"
	StatusNotModified FetchStatus = "not_modified"
)

// IssuerFilings is the result of one structured fetch. On a cache hit
// Filings is nil and Status is StatusNotModified.
type IssuerFilings struct {
	Status     FetchStatus
	CIK        string
	IssuerName string
	Ticker     string
	Filings    []models.FilingRecord
}

// Client talks to the two upstream discovery mechanisms. All requests go
// through the shared Pacer and carry the configured User-Agent, which the
// upstream requires for identification.
type Client struct {
	submissionsBaseURL string
	feedBaseURL        string
	userAgent          string
	feedPageSize       int
	httpClient         *httpx.Client
	pacer              *Pacer
	cursors            CursorStore
	logger             logger.Logger
	now                func() time.Time
}

// NewClient builds a Client from config. cursors may be a RedisCursorStore in
// production or a MemoryCursorStore in tests.
func NewClient(cfg config.SECConfig, cursors CursorStore, log logger.Logger) *Client {
	return &Client{
		submissionsBaseURL: strings.TrimRight(cfg.SubmissionsBaseURL, "/"),
		feedBaseURL:        cfg.FeedBaseURL,
		userAgent:          cfg.UserAgent,
		feedPageSize:       cfg.FeedPageSize,
		httpClient:         httpx.NewClient(time.Duration(cfg.RequestTimeout) * time.Millisecond),
		pacer:              NewPacer(time.Duration(cfg.RateLimitMs) * time.Millisecond),
		cursors:            cursors,
		logger:             log,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// submissionsResponse mirrors the structured endpoint payload. The recent
// filings block is a set of parallel arrays sharing one index space.
type submissionsResponse struct {
	CIK     string   `json:"cik"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// FetchIssuerFilings performs one conditional fetch against the structured
// submissions endpoint for a single issuer. The cached validation token is
// sent as If-None-Match; a 304 answer is reported as a cache hit without
// touching the body. The cursor is only advanced when the upstream returns a
// new token, so a response without one keeps the previous token valid.
func (c *Client) FetchIssuerFilings(ctx context.Context, cik string) (*IssuerFilings, error) {
	cik = models.NormalizeCIK(cik)

	cursor, err := c.cursors.Get(ctx, cik)
	if err != nil {
		// A cursor read failure degrades to an unconditional fetch.
		c.logger.WithError(err).Warn("cursor read failed, fetching unconditionally", map[string]interface{}{
			"cik": cik,
		})
		cursor = ""
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.submissionsBaseURL, cik)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build submissions request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if cursor != "" {
		req.Header.Set("If-None-Match", cursor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, commonerrors.NewUpstreamUnavailableError("submissions", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return &IssuerFilings{Status: StatusNotModified, CIK: cik}, nil
	case http.StatusOK:
		// fall through
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, commonerrors.NewIssuerNotFoundError(cik)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, commonerrors.NewUpstreamUnavailableError("submissions",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload submissionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, commonerrors.NewUpstreamUnavailableError("submissions",
			fmt.Errorf("decode body: %w", err))
	}

	if etag := resp.Header.Get("ETag"); etag != "" && etag != cursor {
		if err := c.cursors.Set(ctx, cik, etag); err != nil {
			c.logger.WithError(err).Warn("cursor write failed", map[string]interface{}{
				"cik": cik,
			})
		}
	}

	result := &IssuerFilings{
		Status:     StatusFresh,
		CIK:        cik,
		IssuerName: payload.Name,
	}
	if len(payload.Tickers) > 0 {
		result.Ticker = payload.Tickers[0]
	}
	result.Filings = c.zipRecentFilings(cik, result, &payload)
	return result, nil
}

// zipRecentFilings converts the parallel arrays into records, keeping only
// supported form types. Rows past the shortest array are skipped so a
// truncated payload cannot cause an index mismatch.
func (c *Client) zipRecentFilings(cik string, meta *IssuerFilings, payload *submissionsResponse) []models.FilingRecord {
	recent := &payload.Filings.Recent

	n := len(recent.AccessionNumber)
	if len(recent.Form) < n {
		n = len(recent.Form)
	}
	if len(recent.FilingDate) < n {
		n = len(recent.FilingDate)
	}

	var out []models.FilingRecord
	for i := 0; i < n; i++ {
		form := recent.Form[i]
		if !models.IsSupportedFormType(form) {
			continue
		}
		accession := recent.AccessionNumber[i]
		if !models.ValidAccessionNumber(accession) {
			c.logger.Warn("skipping filing with malformed accession number", map[string]interface{}{
				"cik":       cik,
				"accession": accession,
			})
			continue
		}

		filingDate, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			c.logger.WithError(err).Warn("skipping filing with malformed date", map[string]interface{}{
				"cik":       cik,
				"accession": accession,
			})
			continue
		}

		primaryDoc := ""
		if i < len(recent.PrimaryDocument) {
			primaryDoc = recent.PrimaryDocument[i]
		}

		out = append(out, models.FilingRecord{
			CIK:             cik,
			IssuerName:      meta.IssuerName,
			Ticker:          meta.Ticker,
			FormType:        form,
			AccessionNumber: accession,
			FilingDate:      filingDate.UTC(),
			PrimaryDocument: primaryDoc,
			FilingURL:       filingURL(cik, accession, primaryDoc),
			Source:          models.SourceSubmissions,
		})
	}
	return out
}

// filingURL builds the archive link for one filing document.
func filingURL(cik, accession, primaryDoc string) string {
	trimmed := strings.TrimLeft(cik, "0")
	if trimmed == "" {
		trimmed = "0"
	}
	compact := strings.ReplaceAll(accession, "-", "")
	if primaryDoc == "" {
		return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s-index.htm",
			trimmed, compact, accession)
	}
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
		trimmed, compact, primaryDoc)
}
