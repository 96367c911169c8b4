package providers

import (
	"testing"

	"okasion-watch/collector/internal/config"
)

func TestForConfig(t *testing.T) {
	cases := []struct {
		adapter string
		want    string
		wantErr bool
	}{
		{"api", "api", false},
		{"", "api", false},
		{"html", "html", false},
		{"static", "static", false},
		{"carrier-pigeon", "", true},
	}

	for _, tc := range cases {
		cfg := &config.Config{SourceAdapter: tc.adapter}
		got, err := ForConfig(cfg, nil)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ForConfig(%q): expected error", tc.adapter)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ForConfig(%q): %v", tc.adapter, err)
		}
		if got.Name() != tc.want {
			t.Errorf("ForConfig(%q).Name() = %q, want %q", tc.adapter, got.Name(), tc.want)
		}
	}
}
