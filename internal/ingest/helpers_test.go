package ingest

import (
	"strings"
	"testing"
)

func TestTruncateText(t *testing.T) {
	tests := []struct {
		text   string
		maxLen int
		want   string
	}{
		{"short", 100, "short"},
		{"exactly ten", 11, "exactly ten"},
		{strings.Repeat("a", 110), 100, strings.Repeat("a", 97) + "..."},
	}

	for _, tt := range tests {
		got := TruncateText(tt.text, tt.maxLen)
		if got != tt.want {
			t.Errorf("TruncateText(%q, %d) = %q, want %q", tt.text[:min(20, len(tt.text))], tt.maxLen, got, tt.want)
		}
		if len(got) > tt.maxLen {
			t.Errorf("result exceeds max length: %d > %d", len(got), tt.maxLen)
		}
	}
}

func TestNormalizeSpace(t *testing.T) {
	if got := normalizeSpace("  a \t b\n\nc  "); got != "a b c" {
		t.Errorf("normalizeSpace = %q", got)
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<div><p>Alert:  device</p> <p>recalled</p></div>")
	if got != "Alert: device recalled" {
		t.Errorf("HTMLToText = %q", got)
	}
}

func TestContainsFold(t *testing.T) {
	if !containsFold("Product CONTAMINATION found", "contamination") {
		t.Error("case-insensitive match failed")
	}
	if containsFold("clean product", "contamination") {
		t.Error("false positive")
	}
}

func TestParseEventDate(t *testing.T) {
	tests := []struct {
		in     string
		wantOK bool
	}{
		{"20240115", true},
		{"2024-01-15", true},
		{"January 15, 2024", true},
		{"not a date", false},
		{"", false},
	}
	for _, tt := range tests {
		got := parseEventDate(tt.in)
		if (got != nil) != tt.wantOK {
			t.Errorf("parseEventDate(%q) = %v, want ok=%v", tt.in, got, tt.wantOK)
		}
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"$1,234.56", 1234.56, true},
		{"160.00", 160, true},
		{"no amount here", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseMoney(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseMoney(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDetectModality(t *testing.T) {
	if got := detectModality("Revolution CT Scanner for computed tomography"); got != "ct" {
		t.Errorf("expected ct, got %q", got)
	}
	if got := detectModality("infusion pump"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
