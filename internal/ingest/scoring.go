package ingest

import (
	"fmt"
	"math"
	"strings"
)

// criticalModalities are equipment classes where a regulatory event carries
// elevated patient-safety weight.
var criticalModalities = map[string]bool{
	"ct":          true,
	"mri":         true,
	"fluoroscopy": true,
	"linac":       true,
	"mammography": true,
	"nuclear":     true,
}

// majorMarkets are regions with broad installed-base exposure.
var majorMarkets = map[string]bool{
	"us":     true,
	"eu":     true,
	"canada": true,
	"japan":  true,
}

// significantDeltaThreshold: a financial before/after change larger than this
// counts as significant impact.
const significantDeltaThreshold = 50.0

func hasTag(ev NormalizedEvent, tag string) bool {
	for _, t := range ev.SourceTags {
		if t == tag {
			return true
		}
	}
	return false
}

// ScoreEvent computes the confidence/urgency score for an event. Points are
// strictly additive; every satisfied rule fires and appends its reason in
// rule order. The order of reasons is observable and must stay stable: it
// is what operators audit a tier decision against.
func ScoreEvent(ev NormalizedEvent) (int, []string) {
	score := 0
	var reasons []string

	add := func(points int, reason string) {
		score += points
		reasons = append(reasons, reason)
	}

	// Source-based rules.
	if hasTag(ev, TagEnforcement) {
		agency := ev.Attributes[AttrAgency]
		if agency == "" {
			agency = "FDA"
		}
		add(60, fmt.Sprintf("%s enforcement action", agency))
	}
	if hasTag(ev, TagPaymentChange) {
		add(70, "Official payment change")
	}
	if hasTag(ev, TagStateHealthAlert) {
		add(65, "State health department alert")
	}
	if hasTag(ev, TagStateBoardRule) {
		add(70, "State regulatory board requirement")
	}

	// Flag-based rules.
	if ev.Flags[FlagManufacturerNotice] {
		add(20, "Manufacturer notice present")
	}
	if ev.Flags[FlagAdverseSignal] {
		add(10, "Adverse-event signal detected")
	}
	if ev.Flags[FlagStateMandate] {
		add(25, "State mandate")
	}
	if ev.Flags[FlagSafetyRequirement] {
		add(30, "Safety requirement")
	}

	// Entity-match rules.
	if ev.Match[MatchExactModel] {
		add(20, "Exact device match")
	}
	if ev.Match[MatchFuzzyModel] {
		add(10, "Fuzzy device match")
	}

	// Categorical rules.
	if m := strings.ToLower(ev.Attributes[AttrModality]); m != "" && criticalModalities[m] {
		add(15, fmt.Sprintf("Critical modality: %s", ev.Attributes[AttrModality]))
	}
	if r := strings.ToLower(ev.Attributes[AttrRegion]); r != "" && majorMarkets[r] {
		add(5, fmt.Sprintf("Major market: %s", ev.Attributes[AttrRegion]))
	}
	if ev.Delta != nil && math.Abs(ev.Delta.New-ev.Delta.Old) > significantDeltaThreshold {
		add(15, "Significant financial impact")
	}
	if strings.EqualFold(ev.Attributes[AttrImpact], "high") {
		add(10, "High impact")
	}

	return score, reasons
}

// Categorize maps a score onto a delivery tier. Boundaries are inclusive on
// the lower bound of each tier.
func Categorize(score int) Tier {
	switch {
	case score >= 85:
		return TierUrgent
	case score >= 75:
		return TierInformational
	case score >= 50:
		return TierDigest
	default:
		return TierSuppressed
	}
}

// ShouldSummarize reports whether a tier qualifies for an AI-generated
// summary (quota permitting).
func ShouldSummarize(tier Tier) bool {
	return tier == TierUrgent || tier == TierInformational
}
