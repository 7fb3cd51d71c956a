package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// eventDateFormats covers the formats the watched upstreams emit. openFDA
// uses compact dates (20240115), the Federal Register ISO dates, and state
// pages free-form English.
var eventDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"20060102",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// parseEventDate parses an upstream date string; nil when nothing matches.
func parseEventDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, format := range eventDateFormats {
		if t, err := time.Parse(format, text); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

var moneyRegex = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?`)

// parseMoney extracts the first monetary amount from text. Handles thousands
// separators ($1,234.56) and bare numbers.
func parseMoney(text string) (float64, bool) {
	m := moneyRegex.FindString(text)
	if m == "" {
		return 0, false
	}
	clean := strings.ReplaceAll(m, ",", "")
	val, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// modalityKeywords maps text markers to the modality attribute value.
var modalityKeywords = map[string]string{
	"computed tomography": "ct",
	"ct scanner":          "ct",
	"ct system":           "ct",
	"magnetic resonance":  "mri",
	"mri":                 "mri",
	"fluoroscop":          "fluoroscopy",
	"linear accelerator":  "linac",
	"linac":               "linac",
	"mammograph":          "mammography",
	"nuclear medicine":    "nuclear",
}

// detectModality scans text for a known imaging/therapy modality marker.
func detectModality(text string) string {
	lower := strings.ToLower(text)
	for marker, modality := range modalityKeywords {
		if strings.Contains(lower, marker) {
			return modality
		}
	}
	return ""
}
