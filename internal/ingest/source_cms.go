package ingest

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/url"
)

// cmsRateRow mirrors one row of the CMS data API payment dataset. The API
// serves every column as a string.
type cmsRateRow struct {
	HCPCS       string `json:"hcpcs_code"`
	Description string `json:"short_description"`
	PriorRate   string `json:"prior_payment_rate"`
	CurrentRate string `json:"payment_rate"`
	EffectiveOn string `json:"effective_date"`
}

// CMSPaymentAdapter pulls fee schedule rows and emits an event for every
// code whose payment rate changed. Unchanged rows produce nothing.
type CMSPaymentAdapter struct{}

func (a *CMSPaymentAdapter) Fetch(ctx context.Context, config SourceConfig, p *Pipeline) ([]NormalizedEvent, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("size", "500")
	u.RawQuery = q.Encode()

	var rows []cmsRateRow
	if err := p.Client.GetJSON(ctx, u.String(), &rows); err != nil {
		return nil, fmt.Errorf("cms fetch failed: %w", err)
	}

	var events []NormalizedEvent
	for _, row := range rows {
		ev, ok := a.normalize(config, row)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	log.Printf("[CMS] %s: %d rate changes out of %d rows", config.ID, len(events), len(rows))
	return events, nil
}

func (a *CMSPaymentAdapter) normalize(config SourceConfig, row cmsRateRow) (NormalizedEvent, bool) {
	oldRate, okOld := parseMoney(row.PriorRate)
	newRate, okNew := parseMoney(row.CurrentRate)
	if !okOld || !okNew || oldRate == newRate {
		return NormalizedEvent{}, false
	}

	description := fmt.Sprintf("Payment rate for %s (%s) changed from $%.2f to $%.2f.",
		row.HCPCS, cleanText(row.Description), oldRate, newRate)

	ev := NormalizedEvent{
		Source:      config.ID,
		SourceID:    fmt.Sprintf("%s:%s", row.HCPCS, row.EffectiveOn),
		Title:       fmt.Sprintf("Fee schedule update: %s %s", row.HCPCS, cleanText(row.Description)),
		Description: description,
		ExternalURL: config.BaseURL,
		Identity: Identity{
			Issuer:         config.Agency,
			Subject:        fmt.Sprintf("%s %s", row.HCPCS, row.Description),
			Classification: "payment rate revision",
			Reason:         fmt.Sprintf("rate changed from %.2f to %.2f", oldRate, newRate),
		},
		SourceTags: []string{TagPaymentChange},
		Flags:      map[string]bool{},
		Match:      map[string]bool{},
		Delta:      &Delta{Old: oldRate, New: newRate},
		Attributes: map[string]string{
			AttrAgency: config.Agency,
			AttrRegion: config.Region,
		},
		PublishedAt: parseEventDate(row.EffectiveOn),
	}

	// Swings above 10% are worth routing as high impact.
	if oldRate != 0 && math.Abs((newRate-oldRate)/oldRate) > 0.10 {
		ev.Attributes[AttrImpact] = "high"
	}

	return ev, true
}

func (a *CMSPaymentAdapter) AdjustScore(config SourceConfig, ev NormalizedEvent, score int) int {
	return score
}
