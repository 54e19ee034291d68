// internal/models/filing.go
package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Form types retained from discovery. Exact match only; amendment variants
// like 10-K/A are not part of the set.
const (
	FormAnnual       = "10-K"
	FormQuarterly    = "10-Q"
	FormCurrent      = "8-K"
	FormRegistration = "S-1"
)

// SupportedFormTypes is the fixed set of form types the system tracks.
var SupportedFormTypes = []string{FormAnnual, FormQuarterly, FormCurrent, FormRegistration}

// FeedQueryForms returns the form types queried individually against the
// broad feed: the periodic/current forms plus the registration statement,
// which is how not-yet-tracked issuers are discovered.
func FeedQueryForms() []string {
	return []string{FormAnnual, FormQuarterly, FormCurrent, FormRegistration}
}

// IsSupportedFormType reports whether form is in the supported set.
func IsSupportedFormType(form string) bool {
	switch form {
	case FormAnnual, FormQuarterly, FormCurrent, FormRegistration:
		return true
	}
	return false
}

// Discovery source tags carried on FilingRecord.
const (
	SourceSubmissions = "submissions"
	SourceFeed        = "feed"
)

const cikWidth = 10

var accessionPattern = regexp.MustCompile(`^\d{10}-\d{2}-\d{6}$`)

// NormalizeCIK zero-pads a numeric CIK to the canonical 10-digit form.
func NormalizeCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= cikWidth {
		return cik
	}
	return strings.Repeat("0", cikWidth-len(cik)) + cik
}

// ValidAccessionNumber reports whether s has the canonical
// 0000000000-00-000000 shape.
func ValidAccessionNumber(s string) bool {
	return accessionPattern.MatchString(s)
}

// TrackedIssuer is an entity whose disclosures are monitored.
type TrackedIssuer struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// FilingRecord is one discovered disclosure. Created by a scan pass and
// never mutated afterwards except by downstream enrichment.
type FilingRecord struct {
	CIK             string    `json:"cik"`
	IssuerName      string    `json:"issuerName"`
	Ticker          string    `json:"ticker,omitempty"`
	FormType        string    `json:"formType"`
	AccessionNumber string    `json:"accessionNumber"`
	FilingDate      time.Time `json:"filingDate"`
	DetectedAt      time.Time `json:"detectedAt"`
	PrimaryDocument string    `json:"primaryDocument,omitempty"`
	FilingURL       string    `json:"filingUrl,omitempty"`
	Source          string    `json:"source"`
}

// Validate checks the fields a FilingRecord must carry before persistence.
func (f *FilingRecord) Validate() error {
	if !ValidAccessionNumber(f.AccessionNumber) {
		return fmt.Errorf("invalid accession number: %q", f.AccessionNumber)
	}
	if len(f.CIK) != cikWidth {
		return fmt.Errorf("invalid cik: %q", f.CIK)
	}
	if !IsSupportedFormType(f.FormType) {
		return fmt.Errorf("unsupported form type: %q", f.FormType)
	}
	if f.FilingDate.IsZero() {
		return fmt.Errorf("missing filing date")
	}
	return nil
}
