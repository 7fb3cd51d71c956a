package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/rpalacios/regwatch/internal/ai"
)

// StateHealthAdapter crawls state health department alert listings. Pages
// are unstructured, so the identity fields come from the AI normalizer; when
// normalization fails the raw title and issuer are used as-is.
type StateHealthAdapter struct{}

func (a *StateHealthAdapter) Fetch(ctx context.Context, config SourceConfig, p *Pipeline) ([]NormalizedEvent, error) {
	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if config.Selectors.Container == "" {
		return nil, fmt.Errorf("selector 'container' is required for the state health adapter")
	}

	maxPages := config.MaxPages
	if maxPages == 0 {
		maxPages = 1
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsedURL.Host),
		colly.UserAgent("regwatch/1.0 (+clinical engineering alert monitor)"),
		colly.DetectCharset(),
	)
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       time.Second,
	})
	timeout := 30 * time.Second
	if config.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(config.Fetch.TimeoutSeconds) * time.Second
	}
	collector.SetRequestTimeout(timeout)

	sel := config.Selectors
	var rawItems []stateRawItem
	var crawlErrs []error

	collector.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText(sel.Title))

		linkAttr := sel.LinkAttr
		if linkAttr == "" {
			linkAttr = "href"
		}
		var link string
		if sel.Link == "" || sel.Link == "." {
			link = strings.TrimSpace(e.Attr(linkAttr))
		} else {
			link = strings.TrimSpace(e.ChildAttr(sel.Link, linkAttr))
		}
		if title == "" || link == "" {
			return
		}

		content := ""
		if sel.Content != "" {
			content = strings.TrimSpace(e.ChildText(sel.Content))
		}
		date := ""
		if sel.Date != "" {
			date = strings.TrimSpace(e.ChildText(sel.Date))
		}

		rawItems = append(rawItems, stateRawItem{
			Title:   title,
			URL:     e.Request.AbsoluteURL(link),
			Content: content,
			Date:    date,
		})
	})

	collector.OnError(func(r *colly.Response, err error) {
		crawlErrs = append(crawlErrs, fmt.Errorf("crawl %s: %w", r.Request.URL, err))
	})

	visited := 0
	for _, seed := range config.Seeds {
		if visited >= maxPages {
			break
		}
		if err := collector.Visit(seed); err != nil {
			crawlErrs = append(crawlErrs, fmt.Errorf("visit %s: %w", seed, err))
			continue
		}
		visited++
	}
	collector.Wait()

	if len(rawItems) == 0 && len(crawlErrs) > 0 {
		return nil, fmt.Errorf("state health crawl produced nothing: %v", crawlErrs[0])
	}

	events := make([]NormalizedEvent, 0, len(rawItems))
	for _, item := range rawItems {
		events = append(events, a.normalize(ctx, config, p, item))
	}

	log.Printf("[StateHealth] %s: %d items from %d seed pages (%d crawl errors)",
		config.ID, len(events), visited, len(crawlErrs))
	return events, nil
}

type stateRawItem struct {
	Title   string
	URL     string
	Content string
	Date    string
}

func (a *StateHealthAdapter) normalize(ctx context.Context, config SourceConfig, p *Pipeline, item stateRawItem) NormalizedEvent {
	title := cleanText(sanitizeUTF8(item.Title))
	content := HTMLToText(sanitizeHTML(sanitizeUTF8(item.Content)))

	hash := sha1.Sum([]byte(item.URL))
	sourceID := hex.EncodeToString(hash[:])

	// Raw fallback identity; replaced when the normalizer succeeds.
	identity := Identity{
		Issuer:         config.Agency,
		Subject:        title,
		Classification: "state health alert",
		Reason:         content,
	}
	if p.Normalizer != nil {
		fields, err := p.Normalizer.Normalize(ctx, ai.NormalizeInput{
			Title:       title,
			Description: content,
			Source:      config.Name,
		})
		if err != nil {
			log.Printf("[StateHealth] Normalizer failed for %s, using raw fields: %v", sourceID, err)
		} else {
			identity = Identity{
				Issuer:         fields.Issuer,
				Subject:        fields.Subject,
				Classification: fields.Classification,
				Reason:         fields.Reason,
			}
		}
	}

	ev := NormalizedEvent{
		Source:      config.ID,
		SourceID:    sourceID,
		Title:       title,
		Description: content,
		ExternalURL: item.URL,
		Identity:    identity,
		SourceTags:  []string{TagStateHealthAlert},
		Flags:       map[string]bool{},
		Match:       map[string]bool{},
		Attributes: map[string]string{
			AttrAgency: config.Agency,
			AttrRegion: config.Region,
		},
		PublishedAt: parseEventDate(item.Date),
	}

	// Board rule pages carry mandate language rather than outbreak alerts.
	if containsFold(item.URL, "/board/") || containsFold(title, "board") {
		ev.SourceTags = []string{TagStateBoardRule}
	}
	if containsFold(title, "mandate") || containsFold(content, "required by") || containsFold(content, "shall") {
		ev.Flags[FlagStateMandate] = true
	}
	if containsFold(title, "requirement") || containsFold(content, "safety requirement") {
		ev.Flags[FlagSafetyRequirement] = true
	}

	return ev
}

func (a *StateHealthAdapter) AdjustScore(config SourceConfig, ev NormalizedEvent, score int) int {
	return score
}
