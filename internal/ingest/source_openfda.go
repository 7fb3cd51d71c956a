package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/rpalacios/regwatch/internal/ai"
)

const openFDAPageSize = 100

// openFDAEnforcementResponse mirrors the openFDA enforcement.json payload.
type openFDAEnforcementResponse struct {
	Meta struct {
		Results struct {
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []openFDAEnforcementRecord `json:"results"`
}

type openFDAEnforcementRecord struct {
	RecallNumber         string `json:"recall_number"`
	RecallingFirm        string `json:"recalling_firm"`
	ProductDescription   string `json:"product_description"`
	ReasonForRecall      string `json:"reason_for_recall"`
	Classification       string `json:"classification"`
	Status               string `json:"status"`
	VoluntaryMandated    string `json:"voluntary_mandated"`
	RecallInitiationDate string `json:"recall_initiation_date"`
	Distribution         string `json:"distribution_pattern"`
	ProductType          string `json:"product_type"`
}

// OpenFDAEnforcementAdapter pulls device and drug enforcement records from
// the openFDA enforcement endpoints. The same adapter serves both kinds; the
// drug-specific score bump lives in AdjustScore and keys off config.Kind.
type OpenFDAEnforcementAdapter struct{}

func (a *OpenFDAEnforcementAdapter) Fetch(ctx context.Context, config SourceConfig, p *Pipeline) ([]NormalizedEvent, error) {
	reqURL, err := a.buildURL(config)
	if err != nil {
		return nil, err
	}

	var resp openFDAEnforcementResponse
	if err := p.Client.GetJSON(ctx, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("openfda fetch failed: %w", err)
	}

	events := make([]NormalizedEvent, 0, len(resp.Results))
	for _, rec := range resp.Results {
		events = append(events, a.normalize(ctx, config, p, rec))
	}

	log.Printf("[OpenFDA] %s: %d records (of %d total)", config.ID, len(events), resp.Meta.Results.Total)
	return events, nil
}

func (a *OpenFDAEnforcementAdapter) buildURL(config SourceConfig) (string, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", fmt.Sprintf("%d", openFDAPageSize))
	q.Set("sort", "report_date:desc")
	if config.APIKey != "" {
		q.Set("api_key", config.APIKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *OpenFDAEnforcementAdapter) normalize(ctx context.Context, config SourceConfig, p *Pipeline, rec openFDAEnforcementRecord) NormalizedEvent {
	description := cleanText(sanitizeUTF8(rec.ProductDescription))
	reason := cleanText(sanitizeUTF8(rec.ReasonForRecall))

	title := fmt.Sprintf("%s recall: %s", rec.Classification, rec.RecallingFirm)
	if reason != "" {
		title = fmt.Sprintf("%s - %s", title, TruncateText(reason, 80))
	}

	ev := NormalizedEvent{
		Source:      config.ID,
		SourceID:    rec.RecallNumber,
		Title:       cleanText(title),
		Description: description,
		ExternalURL: fmt.Sprintf("https://www.accessdata.fda.gov/scripts/ires/index.cfm#search:%s", url.QueryEscape(rec.RecallNumber)),
		Identity: Identity{
			Issuer:         rec.RecallingFirm,
			Subject:        rec.ProductDescription,
			Classification: rec.Classification,
			Reason:         rec.ReasonForRecall,
		},
		SourceTags: []string{TagEnforcement},
		Flags:      map[string]bool{},
		Match:      map[string]bool{},
		Attributes: map[string]string{
			AttrAgency: config.Agency,
			AttrRegion: config.Region,
		},
		PublishedAt: parseEventDate(rec.RecallInitiationDate),
	}

	if containsFold(rec.VoluntaryMandated, "voluntary") {
		ev.Flags[FlagManufacturerNotice] = true
	}
	if modality := detectModality(rec.ProductDescription); modality != "" {
		ev.Attributes[AttrModality] = modality
	}
	if containsFold(rec.Distribution, "nationwide") || containsFold(rec.Distribution, "us") {
		ev.Attributes[AttrRegion] = "us"
	}

	a.matchModels(ctx, config, p, &ev, description, reason)
	return ev
}

// matchModels sets the exact/fuzzy model match signals. A verbatim hit on a
// watched model is exact; otherwise the pattern detector decides fuzzy. A
// detector failure degrades to no signal, never an aborted event.
func (a *OpenFDAEnforcementAdapter) matchModels(ctx context.Context, config SourceConfig, p *Pipeline, ev *NormalizedEvent, description, reason string) {
	if len(config.WatchedModels) == 0 {
		return
	}

	for _, model := range config.WatchedModels {
		if containsFold(description, model) {
			ev.Match[MatchExactModel] = true
			return
		}
	}

	if p.Detector == nil {
		return
	}
	det, err := p.Detector.Detect(ctx, ai.DetectInput{
		Title:       ev.Title,
		Description: fmt.Sprintf("%s\nReason: %s\nWatched models: %v", description, reason, config.WatchedModels),
		MatchKeys:   []string{MatchFuzzyModel},
	})
	if err != nil {
		log.Printf("[OpenFDA] Detector failed for %s, continuing without match signal: %v", ev.SourceID, err)
		return
	}
	if det.Match[MatchFuzzyModel] {
		ev.Match[MatchFuzzyModel] = true
	}
}

// AdjustScore bumps drug enforcement records whose title mentions a
// configured high-risk term. Device records pass through unchanged.
func (a *OpenFDAEnforcementAdapter) AdjustScore(config SourceConfig, ev NormalizedEvent, score int) int {
	if config.Kind != "drug" {
		return score
	}
	for _, kw := range config.HighRiskKeywords {
		if containsFold(ev.Title, kw) {
			return score + 20
		}
	}
	return score
}
