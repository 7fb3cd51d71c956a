package ingest

import (
	"time"
)

// Source tags drive source-based scoring. Adapters attach them to every
// event they emit; the scoring engine only inspects these constants.
const (
	TagEnforcement      = "openfda:enforcement"
	TagPaymentChange    = "cms:pfs_change"
	TagStateHealthAlert = "state:health_alert"
	TagStateBoardRule   = "state:board_requirement"
	TagAdverseSignal    = "openfda:adverse_signal"
	TagRegulatoryNotice = "fedreg:notice"
)

// Named boolean signals on an event. Flags come from upstream fields or the
// AI pattern detector; Match signals express entity-match confidence.
const (
	FlagManufacturerNotice = "manufacturer_notice"
	FlagAdverseSignal      = "adverse_event_signal"
	FlagStateMandate       = "state_mandate"
	FlagSafetyRequirement  = "safety_requirement"

	MatchExactModel = "exact_model"
	MatchFuzzyModel = "fuzzy_model"
)

// Categorical attribute keys used by the scoring rules.
const (
	AttrAgency   = "agency"
	AttrModality = "modality"
	AttrRegion   = "region"
	AttrImpact   = "impact"
)

// Identity holds the four free-text fields a record's signature is derived
// from. Two records from the same source with equal identity (after case and
// whitespace normalization) describe the same regulatory fact.
type Identity struct {
	Issuer         string
	Subject        string
	Classification string
	Reason         string
}

// Delta is a before/after numeric change, e.g. a payment rate revision.
type Delta struct {
	Old float64 `json:"old"`
	New float64 `json:"new"`
}

// NormalizedEvent is the common shape every source adapter produces before
// scoring. Scoring is a pure function of this record: everything the engine
// needs must already be here, no network access required.
type NormalizedEvent struct {
	Source      string // registry source id
	SourceID    string // stable upstream record id
	Title       string
	Description string
	ExternalURL string
	Identity    Identity
	SourceTags  []string
	Flags       map[string]bool
	Match       map[string]bool
	Delta       *Delta
	Attributes  map[string]string
	PublishedAt *time.Time
}

// Tier is the delivery classification derived from the score.
type Tier string

const (
	TierUrgent        Tier = "urgent"
	TierInformational Tier = "informational"
	TierDigest        Tier = "digest"
	TierSuppressed    Tier = "suppressed"
)

// ScoredEvent is a NormalizedEvent plus the scoring outcome.
type ScoredEvent struct {
	NormalizedEvent
	Score     int
	Reasons   []string
	Tier      Tier
	Summary   string
	Signature string
}

// RunStats holds metrics about a single source pipeline run.
type RunStats struct {
	Found      int `json:"found"`
	Suppressed int `json:"suppressed"`
	Persisted  int `json:"persisted"`
	Summarized int `json:"summarized"`
	Errors     int `json:"errors"`
}
