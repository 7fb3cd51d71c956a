package ingest

import (
	"os"
	"testing"
)

func TestLoadRegistryEmbedded(t *testing.T) {
	os.Setenv("OPENFDA_API_KEY", "test-key")
	defer os.Unsetenv("OPENFDA_API_KEY")

	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("failed to load embedded registry: %v", err)
	}
	if len(reg.Sources) == 0 {
		t.Fatal("registry has no sources")
	}

	src, err := reg.Find("openfda_device_enforcement")
	if err != nil {
		t.Fatalf("expected device enforcement source: %v", err)
	}
	if src.Adapter != "openfda_enforcement" {
		t.Errorf("adapter = %q", src.Adapter)
	}
	if src.APIKey != "test-key" {
		t.Errorf("env expansion failed: %q", src.APIKey)
	}
	if len(src.WatchedModels) == 0 {
		t.Error("device source should carry watched models")
	}

	// Every source must reference a registered adapter.
	for _, s := range reg.Sources {
		if _, err := GlobalAdapterFactory.Get(s.Adapter); err != nil {
			t.Errorf("source %s references unknown adapter %s", s.ID, s.Adapter)
		}
	}

	if _, err := reg.Find("nope"); err == nil {
		t.Error("unknown source should error")
	}
}
