package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"prospect-sim/internal/domain"
)

// loadIntel reads company intelligence from a YAML or JSON file. An empty
// path yields nil, which the persona generator treats as "no research".
func loadIntel(path string) (*domain.CompanyIntelligence, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intel file: %w", err)
	}
	// JSON documents are valid YAML, so one decoder covers both.
	var intel domain.CompanyIntelligence
	if err := yaml.Unmarshal(raw, &intel); err != nil {
		return nil, fmt.Errorf("parse intel file %s: %w", path, err)
	}
	return &intel, nil
}
