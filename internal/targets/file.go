package targets

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/netprobe/internal/domain"
)

type fileConfig struct {
	TCP  []domain.TCPTarget  `yaml:"tcp"`
	DNS  []domain.DNSTarget  `yaml:"dns"`
	HTTP []domain.HTTPTarget `yaml:"http"`
}

// Defaults is the seed used when no targets file is configured.
func Defaults() State {
	return State{
		Version: 1,
		TCP: []domain.TCPTarget{
			{ID: "cf-1.1.1.1", Host: "1.1.1.1", Port: 443, IntervalSec: 5},
			{ID: "ggl-8.8.8.8", Host: "8.8.8.8", Port: 443, IntervalSec: 5},
		},
		DNS: []domain.DNSTarget{
			{ID: "dns-google", FQDN: "google.com", RecordType: "A", Resolvers: []string{"1.1.1.1", "8.8.8.8"}, IntervalSec: 5},
		},
		HTTP: []domain.HTTPTarget{},
	}
}

// LoadFile reads a YAML seed file. An empty path yields Defaults.
func LoadFile(path string) (State, error) {
	if path == "" {
		return Defaults(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("read targets file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML seed document.
func Parse(raw []byte) (State, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return State{}, fmt.Errorf("parse targets file: %w", err)
	}

	// Build through a registry so file contents get the same checks as
	// API mutations.
	r := NewRegistry(State{Version: 1})
	var errs error
	for _, t := range fc.TCP {
		if _, err := r.AddTCP(t); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for _, t := range fc.DNS {
		if _, err := r.AddDNS(t); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	for _, t := range fc.HTTP {
		if _, err := r.AddHTTP(t); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return State{}, fmt.Errorf("targets file: %w", errs)
	}
	st := r.Snapshot()
	st.Version = 1
	return st, nil
}
