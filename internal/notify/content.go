// internal/notify/content.go
package notify

import (
	"fmt"
	"strings"
	"time"

	"edgarwatch/internal/models"
)

var filingTitles = map[string]string{
	models.FormAnnual:       "%s Annual Report Filed",
	models.FormQuarterly:    "%s Quarterly Report Filed",
	models.FormCurrent:      "%s Major Event Filed",
	models.FormRegistration: "%s IPO Registration Filed",
}

var filingBodies = map[string]string{
	models.FormAnnual:       "%s published their latest annual report",
	models.FormQuarterly:    "%s published their latest quarterly earnings",
	models.FormCurrent:      "%s filed a major event disclosure",
	models.FormRegistration: "%s submitted IPO registration documents",
}

// FilingContent renders the notification for one filing. Titles lead with the
// ticker when known, otherwise the issuer name.
func FilingContent(f models.FilingRecord) Content {
	label := f.Ticker
	if label == "" {
		label = f.IssuerName
	}

	var title string
	if titleFmt, ok := filingTitles[f.FormType]; ok {
		title = fmt.Sprintf(titleFmt, label)
	} else {
		title = fmt.Sprintf("%s Filed %s", label, f.FormType)
	}

	var body string
	if bodyFmt, ok := filingBodies[f.FormType]; ok {
		body = fmt.Sprintf(bodyFmt, f.IssuerName)
	} else {
		body = fmt.Sprintf("%s published new SEC filing", f.IssuerName)
	}

	return Content{
		Title: strings.TrimSpace(title),
		Body:  body,
		Data: map[string]string{
			"type":            models.TypeFilingRelease,
			"cik":             f.CIK,
			"ticker":          f.Ticker,
			"formType":        f.FormType,
			"accessionNumber": f.AccessionNumber,
			"filedAt":         f.FilingDate.UTC().Format(time.RFC3339),
			"url":             f.FilingURL,
		},
	}
}

// TestContent renders the notification used to verify a user's push setup.
func TestContent() Content {
	return Content{
		Title: "Test Notification",
		Body:  "Push notifications are working",
		Data:  map[string]string{"type": models.TypeTest},
	}
}
