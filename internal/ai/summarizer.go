package ai

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const summaryCacheTTL = 14 * 24 * time.Hour

// Summarizer produces short human-readable summaries for high-tier events.
// Calls are spaced at least one second apart and responses are cached by
// event signature, so re-running a source never re-summarizes the same fact.
type Summarizer struct {
	client  *Client
	limiter *rate.Limiter
	cache   *gocache.Cache
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		cache:   gocache.New(summaryCacheTTL, time.Hour),
	}
}

// Summarize returns a 1-2 sentence summary of the event. signature is the
// cache key; cached results do not consume a rate-limiter slot.
func (s *Summarizer) Summarize(ctx context.Context, signature, title, description string) (string, error) {
	if cached, found := s.cache.Get(signature); found {
		return cached.(string), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("summarizer rate limit wait: %w", err)
	}

	prompt := fmt.Sprintf(`Summarize this regulatory event in 1-2 plain sentences for a clinical
engineering audience. State what happened and what is affected. No preamble.

TITLE: %s
TEXT: %s`, title, description)

	summary, err := s.client.complete(ctx, "You write terse summaries of regulatory and safety events.", prompt, false)
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}

	s.cache.Set(signature, summary, gocache.DefaultExpiration)
	return summary, nil
}
