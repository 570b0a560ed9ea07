package config

import (
	"strings"
	"testing"
)

func TestRadiusSupported(t *testing.T) {
	for _, r := range RadiusOptions {
		if !RadiusSupported(r) {
			t.Errorf("radius %d should be supported", r)
		}
	}
	for _, r := range []int{0, 3, 7, 15, 1000, -1} {
		if RadiusSupported(r) {
			t.Errorf("radius %d should not be supported", r)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	yaml := `
search:
  radius: 40
  max_listings: 10
  threshold: 25.5
  extract_descriptions: true
`
	cfg := &Config{SearchDefaults: &SearchDefaults{
		Radius:      DefaultRadius,
		MaxListings: DefaultMaxListings,
		Threshold:   DefaultThreshold,
	}}

	if err := LoadConfigFile(strings.NewReader(yaml), cfg); err != nil {
		t.Fatal(err)
	}

	d := cfg.SearchDefaults
	if d.Radius != 40 || d.MaxListings != 10 || d.Threshold != 25.5 || !d.ExtractDescs {
		t.Fatalf("search defaults = %+v", d)
	}
}

func TestLoadConfigFileRejectsGarbage(t *testing.T) {
	cfg := &Config{}
	if err := LoadConfigFile(strings.NewReader("\t{not yaml"), cfg); err == nil {
		t.Fatal("expected parse error")
	}
}
