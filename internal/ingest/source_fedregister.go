package ingest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
)

// fedRegisterResponse mirrors the Federal Register documents.json payload.
type fedRegisterResponse struct {
	Count   int                 `json:"count"`
	Results []fedRegisterRecord `json:"results"`
}

type fedRegisterRecord struct {
	DocumentNumber  string   `json:"document_number"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract"`
	Type            string   `json:"type"`
	HTMLURL         string   `json:"html_url"`
	PublicationDate string   `json:"publication_date"`
	AgencyNames     []string `json:"agency_names"`
}

// FederalRegisterAdapter pulls notice documents from the Federal Register
// API. Notices are broad regulatory context rather than direct safety
// signals, so AdjustScore dampens them.
type FederalRegisterAdapter struct{}

func (a *FederalRegisterAdapter) Fetch(ctx context.Context, config SourceConfig, p *Pipeline) ([]NormalizedEvent, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("per_page", "50")
	q.Set("order", "newest")
	q.Set("conditions[type][]", "NOTICE")
	if config.Agency != "" {
		q.Set("conditions[agencies][]", strings.ToLower(config.Agency))
	}
	u.RawQuery = q.Encode()

	var resp fedRegisterResponse
	if err := p.Client.GetJSON(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("federal register fetch failed: %w", err)
	}

	events := make([]NormalizedEvent, 0, len(resp.Results))
	for _, rec := range resp.Results {
		events = append(events, a.normalize(config, rec))
	}

	log.Printf("[FedRegister] %s: %d notices (of %d total)", config.ID, len(events), resp.Count)
	return events, nil
}

func (a *FederalRegisterAdapter) normalize(config SourceConfig, rec fedRegisterRecord) NormalizedEvent {
	issuer := config.Agency
	if len(rec.AgencyNames) > 0 {
		issuer = rec.AgencyNames[0]
	}

	abstract := cleanText(sanitizeUTF8(rec.Abstract))

	ev := NormalizedEvent{
		Source:      config.ID,
		SourceID:    rec.DocumentNumber,
		Title:       cleanText(sanitizeUTF8(rec.Title)),
		Description: abstract,
		ExternalURL: rec.HTMLURL,
		Identity: Identity{
			Issuer:         issuer,
			Subject:        rec.Title,
			Classification: rec.Type,
			Reason:         abstract,
		},
		SourceTags: []string{TagRegulatoryNotice},
		Flags:      map[string]bool{},
		Match:      map[string]bool{},
		Attributes: map[string]string{
			AttrAgency: issuer,
			AttrRegion: config.Region,
		},
		PublishedAt: parseEventDate(rec.PublicationDate),
	}

	if containsFold(rec.Title, "safety") || containsFold(abstract, "safety requirement") {
		ev.Flags[FlagSafetyRequirement] = true
	}

	return ev
}

// AdjustScore dampens broad regulatory notices by 15 points, floored at 0.
func (a *FederalRegisterAdapter) AdjustScore(config SourceConfig, ev NormalizedEvent, score int) int {
	score -= 15
	if score < 0 {
		return 0
	}
	return score
}
