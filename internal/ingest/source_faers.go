package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
)

// faersResponse mirrors the openFDA drug event endpoint, aggregated by
// reaction term via the count parameter.
type faersResponse struct {
	Results []faersCount `json:"results"`
}

type faersCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// faersSignalThreshold is the minimum report count for a reaction term to
// surface as a signal event.
const faersSignalThreshold = 50

// FAERSAdapter surfaces adverse event reaction signals from the FDA Adverse
// Event Reporting System. These are statistical signals, not confirmed
// causation, so AdjustScore caps them below the urgent tier.
type FAERSAdapter struct{}

func (a *FAERSAdapter) Fetch(ctx context.Context, config SourceConfig, p *Pipeline) ([]NormalizedEvent, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("count", "patient.reaction.reactionmeddrapt.exact")
	q.Set("limit", "100")
	if config.APIKey != "" {
		q.Set("api_key", config.APIKey)
	}
	u.RawQuery = q.Encode()

	var resp faersResponse
	if err := p.Client.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("faers fetch failed: %w", err)
	}

	var events []NormalizedEvent
	for _, c := range resp.Results {
		if c.Count < faersSignalThreshold {
			continue
		}
		events = append(events, a.normalize(config, c))
	}

	log.Printf("[FAERS] %s: %d signals above threshold (of %d terms)", config.ID, len(events), len(resp.Results))
	return events, nil
}

func (a *FAERSAdapter) normalize(config SourceConfig, c faersCount) NormalizedEvent {
	term := cleanText(strings.ToLower(c.Term))

	return NormalizedEvent{
		Source:      config.ID,
		SourceID:    fmt.Sprintf("reaction:%s", term),
		Title:       fmt.Sprintf("Adverse event signal: %s (%d reports)", term, c.Count),
		Description: fmt.Sprintf("FAERS shows %d reports for reaction term %q in the current window.", c.Count, term),
		ExternalURL: "https://fis.fda.gov/sense/app/95239e26-e0be-42d9-a960-9a5f7f1c25ee/sheet/7a47a261-d58b-4203-a8aa-6d3021737452/state/analysis",
		Identity: Identity{
			Issuer:         config.Agency,
			Subject:        term,
			Classification: "adverse event signal",
			Reason:         fmt.Sprintf("%d reports for %s", c.Count, term),
		},
		SourceTags: []string{TagAdverseSignal},
		Flags: map[string]bool{
			FlagAdverseSignal: true,
		},
		Match: map[string]bool{},
		Attributes: map[string]string{
			AttrAgency: config.Agency,
			AttrRegion: config.Region,
		},
	}
}

// AdjustScore caps adverse signals at 70: an unconfirmed statistical signal
// never pages anyone by itself.
func (a *FAERSAdapter) AdjustScore(config SourceConfig, ev NormalizedEvent, score int) int {
	if score > 70 {
		return 70
	}
	return score
}
