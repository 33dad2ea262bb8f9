// Package roundtrip verifies end-to-end delivery through a Pulsar cluster.
// Every scenario of an HCL scenario file produces numbered messages to a
// fresh topic and checks that each one comes back exactly once and in order.
package roundtrip

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

const defaultTimeout = 45 * time.Second

// File is the decoded scenario file.
type File struct {
	Scenarios []Scenario `hcl:"scenario,block"`
}

// Scenario is one roundtrip run.
type Scenario struct {
	Name             string `hcl:"name,label"`
	SubscriptionType string `hcl:"subscription_type"`
	Producers        int    `hcl:"producers,optional"`
	Consumers        int    `hcl:"consumers,optional"`
	MessageCount     int    `hcl:"message_count,optional"`
	Timeout          string `hcl:"timeout,optional"`
}

// LoadFile decodes and checks a scenario file. Counts left unset fall back to
// one producer, one consumer and defaultCount messages per producer.
func LoadFile(path string, defaultCount int) ([]Scenario, error) {
	var f File
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return nil, err
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%s defines no scenario block", path)
	}

	seen := make(map[string]bool, len(f.Scenarios))
	for i := range f.Scenarios {
		s := &f.Scenarios[i]
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate scenario %q", s.Name)
		}
		seen[s.Name] = true

		if s.Producers == 0 {
			s.Producers = 1
		}
		if s.Consumers == 0 {
			s.Consumers = 1
		}
		if s.MessageCount == 0 {
			s.MessageCount = defaultCount
		}
		if s.Producers < 0 || s.Consumers < 0 || s.MessageCount < 0 {
			return nil, fmt.Errorf("scenario %q: counts must be positive", s.Name)
		}
		if _, err := s.subscriptionType(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		if _, err := s.timeout(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return f.Scenarios, nil
}

// Expected is the number of distinct messages the consumers must see.
func (s Scenario) Expected() int {
	return s.Producers * s.MessageCount
}

func (s Scenario) timeout() (time.Duration, error) {
	if s.Timeout == "" {
		return defaultTimeout, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	return d, nil
}

func (s Scenario) subscriptionType() (pulsar.SubscriptionType, error) {
	switch strings.ToLower(s.SubscriptionType) {
	case "exclusive":
		return pulsar.Exclusive, nil
	case "shared":
		return pulsar.Shared, nil
	case "failover":
		return pulsar.Failover, nil
	case "key_shared":
		return pulsar.KeyShared, nil
	default:
		return pulsar.Exclusive, fmt.Errorf("invalid subscription type %q (expected exclusive, shared, failover or key_shared)", s.SubscriptionType)
	}
}

// sanitize replaces everything but ASCII letters and digits with '-'.
func sanitize(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, value)
}

// scenarioTopic derives the per-run topic from the base topic given on the
// command line.
func scenarioTopic(base, scenario, runID string) string {
	return base + "-" + sanitize(scenario+"-"+runID)
}
