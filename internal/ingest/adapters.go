package ingest

import (
	"context"
	"fmt"
)

// SourceAdapter defines the contract for any watched source. Fetch pulls and
// normalizes upstream records; AdjustScore applies the source's scoring
// adjustment after the base score is computed.
type SourceAdapter interface {
	// Fetch returns normalized candidate events for the configured source.
	// It uses the pipeline for shared resources (HTTP client, AI collaborators).
	Fetch(ctx context.Context, config SourceConfig, p *Pipeline) ([]NormalizedEvent, error)

	// AdjustScore maps a base score to the source-adjusted score. Adapters
	// with no adjustment return score unchanged.
	AdjustScore(config SourceConfig, ev NormalizedEvent, score int) int
}

// AdapterFactory maps adapter IDs (from sources.yaml) to implementations.
type AdapterFactory struct {
	adapters map[string]SourceAdapter
}

func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{
		adapters: make(map[string]SourceAdapter),
	}
}

func (f *AdapterFactory) Register(id string, adapter SourceAdapter) {
	f.adapters[id] = adapter
}

func (f *AdapterFactory) Get(id string) (SourceAdapter, error) {
	adapter, ok := f.adapters[id]
	if !ok {
		return nil, fmt.Errorf("adapter not found: %s", id)
	}
	return adapter, nil
}

// Global factory instance
var GlobalAdapterFactory = NewAdapterFactory()

func init() {
	GlobalAdapterFactory.Register("openfda_enforcement", &OpenFDAEnforcementAdapter{})
	GlobalAdapterFactory.Register("cms_pfs", &CMSPaymentAdapter{})
	GlobalAdapterFactory.Register("fedreg", &FederalRegisterAdapter{})
	GlobalAdapterFactory.Register("faers", &FAERSAdapter{})
	GlobalAdapterFactory.Register("state_health", &StateHealthAdapter{})
}
