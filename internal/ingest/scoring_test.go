package ingest

import (
	"reflect"
	"testing"
)

func TestScoreEventRules(t *testing.T) {
	tests := []struct {
		name        string
		event       NormalizedEvent
		wantScore   int
		wantReasons []string
	}{
		{
			name:        "no signals",
			event:       NormalizedEvent{},
			wantScore:   0,
			wantReasons: nil,
		},
		{
			name: "enforcement with default agency",
			event: NormalizedEvent{
				SourceTags: []string{TagEnforcement},
			},
			wantScore:   60,
			wantReasons: []string{"FDA enforcement action"},
		},
		{
			name: "enforcement with explicit agency",
			event: NormalizedEvent{
				SourceTags: []string{TagEnforcement},
				Attributes: map[string]string{AttrAgency: "Health Canada"},
			},
			wantScore:   60,
			wantReasons: []string{"Health Canada enforcement action"},
		},
		{
			name: "payment change with large delta",
			event: NormalizedEvent{
				SourceTags: []string{TagPaymentChange},
				Delta:      &Delta{Old: 100, New: 160},
			},
			wantScore:   85,
			wantReasons: []string{"Official payment change", "Significant financial impact"},
		},
		{
			name: "payment change with small delta",
			event: NormalizedEvent{
				SourceTags: []string{TagPaymentChange},
				Delta:      &Delta{Old: 100, New: 140},
			},
			wantScore:   70,
			wantReasons: []string{"Official payment change"},
		},
		{
			name: "state board with mandate and safety requirement",
			event: NormalizedEvent{
				SourceTags: []string{TagStateBoardRule},
				Flags: map[string]bool{
					FlagStateMandate:      true,
					FlagSafetyRequirement: true,
				},
			},
			wantScore:   125,
			wantReasons: []string{"State regulatory board requirement", "State mandate", "Safety requirement"},
		},
		{
			name: "all categorical rules",
			event: NormalizedEvent{
				Attributes: map[string]string{
					AttrModality: "MRI",
					AttrRegion:   "US",
					AttrImpact:   "high",
				},
			},
			wantScore:   30,
			wantReasons: []string{"Critical modality: MRI", "Major market: US", "High impact"},
		},
		{
			name: "non-critical modality and minor market score nothing",
			event: NormalizedEvent{
				Attributes: map[string]string{
					AttrModality: "ultrasound",
					AttrRegion:   "iceland",
				},
			},
			wantScore:   0,
			wantReasons: nil,
		},
		{
			name: "reasons follow table order not input order",
			event: NormalizedEvent{
				SourceTags: []string{TagStateHealthAlert},
				Flags:      map[string]bool{FlagAdverseSignal: true, FlagManufacturerNotice: true},
				Match:      map[string]bool{MatchFuzzyModel: true, MatchExactModel: true},
			},
			wantScore: 65 + 20 + 10 + 20 + 10,
			wantReasons: []string{
				"State health department alert",
				"Manufacturer notice present",
				"Adverse-event signal detected",
				"Exact device match",
				"Fuzzy device match",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, reasons := ScoreEvent(tt.event)
			if score != tt.wantScore {
				t.Errorf("score = %d, want %d", score, tt.wantScore)
			}
			if !reflect.DeepEqual(reasons, tt.wantReasons) {
				t.Errorf("reasons = %v, want %v", reasons, tt.wantReasons)
			}
		})
	}
}

func TestCategorizeBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  Tier
	}{
		{100, TierUrgent},
		{85, TierUrgent},
		{84, TierInformational},
		{75, TierInformational},
		{74, TierDigest},
		{50, TierDigest},
		{49, TierSuppressed},
		{0, TierSuppressed},
	}

	for _, tt := range tests {
		if got := Categorize(tt.score); got != tt.want {
			t.Errorf("Categorize(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestShouldSummarize(t *testing.T) {
	if !ShouldSummarize(TierUrgent) || !ShouldSummarize(TierInformational) {
		t.Error("urgent and informational tiers must summarize")
	}
	if ShouldSummarize(TierDigest) || ShouldSummarize(TierSuppressed) {
		t.Error("digest and suppressed tiers must not summarize")
	}
}

// End-to-end scenarios, per-source adjustments included.

func TestDeviceEnforcementScenario(t *testing.T) {
	ev := NormalizedEvent{
		SourceTags: []string{TagEnforcement},
		Flags:      map[string]bool{FlagManufacturerNotice: true},
	}
	score, _ := ScoreEvent(ev)
	if score != 80 {
		t.Fatalf("expected 60+20=80, got %d", score)
	}
	if tier := Categorize(score); tier != TierInformational {
		t.Errorf("expected informational, got %s", tier)
	}
	if !ShouldSummarize(Categorize(score)) {
		t.Error("informational event should summarize")
	}
}

func TestPaymentChangeScenario(t *testing.T) {
	ev := NormalizedEvent{
		SourceTags: []string{TagPaymentChange},
		Delta:      &Delta{Old: 100, New: 160},
	}
	score, _ := ScoreEvent(ev)
	if score != 85 {
		t.Fatalf("expected 70+15=85, got %d", score)
	}
	if tier := Categorize(score); tier != TierUrgent {
		t.Errorf("expected urgent, got %s", tier)
	}
}

func TestRegulatoryNoticeAdjustmentScenario(t *testing.T) {
	adapter := &FederalRegisterAdapter{}
	adjusted := adapter.AdjustScore(SourceConfig{}, NormalizedEvent{}, 90)
	if adjusted != 75 {
		t.Fatalf("expected 90-15=75, got %d", adjusted)
	}
	if tier := Categorize(adjusted); tier != TierInformational {
		t.Errorf("expected informational after dampening, got %s", tier)
	}

	if floored := adapter.AdjustScore(SourceConfig{}, NormalizedEvent{}, 10); floored != 0 {
		t.Errorf("expected floor at 0, got %d", floored)
	}
}

func TestAdverseSignalCap(t *testing.T) {
	adapter := &FAERSAdapter{}
	if got := adapter.AdjustScore(SourceConfig{}, NormalizedEvent{}, 95); got != 70 {
		t.Errorf("expected cap at 70, got %d", got)
	}
	if got := adapter.AdjustScore(SourceConfig{}, NormalizedEvent{}, 55); got != 55 {
		t.Errorf("scores below the cap pass through, got %d", got)
	}
}

func TestDrugKeywordBump(t *testing.T) {
	adapter := &OpenFDAEnforcementAdapter{}
	config := SourceConfig{
		Kind:             "drug",
		HighRiskKeywords: []string{"contamination", "sterility"},
	}

	ev := NormalizedEvent{Title: "Class II recall: Acme Pharma - product CONTAMINATION found"}
	if got := adapter.AdjustScore(config, ev, 60); got != 80 {
		t.Errorf("expected +20 on keyword hit, got %d", got)
	}

	ev = NormalizedEvent{Title: "Class II recall: Acme Pharma - label misprint"}
	if got := adapter.AdjustScore(config, ev, 60); got != 60 {
		t.Errorf("expected no bump without keyword, got %d", got)
	}

	deviceConfig := SourceConfig{Kind: "device", HighRiskKeywords: []string{"contamination"}}
	ev = NormalizedEvent{Title: "contamination"}
	if got := adapter.AdjustScore(deviceConfig, ev, 60); got != 60 {
		t.Errorf("device sources never get the drug bump, got %d", got)
	}
}
