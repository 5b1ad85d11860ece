// Package config implements council.ConfigProvider by loading a YAML
// document from disk and re-reading it, under a read lock, on every
// accessor call — so an operator can edit the file and have the next
// request pick up the change without a restart.
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modelcouncil/council/council"
)

// memberYAML mirrors council.CouncilMember for decoding.
type memberYAML struct {
	MemberID       string  `yaml:"member_id"`
	ProviderID     string  `yaml:"provider_id"`
	Model          string  `yaml:"model"`
	Version        string  `yaml:"version"`
	Weight         float64 `yaml:"weight"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
	Retry          struct {
		MaxAttempts       int     `yaml:"max_attempts"`
		InitialDelayMs    int     `yaml:"initial_delay_ms"`
		MaxDelayMs        int     `yaml:"max_delay_ms"`
		BackoffMultiplier float64 `yaml:"backoff_multiplier"`
		RetryableKinds    []string `yaml:"retryable_kinds"`
	} `yaml:"retry"`
}

type document struct {
	Council struct {
		Members                    []memberYAML `yaml:"members"`
		MinimumSize                int          `yaml:"minimum_size"`
		RequireMinimumForConsensus bool         `yaml:"require_minimum_for_consensus"`
	} `yaml:"council"`

	Deliberation struct {
		Rounds int    `yaml:"rounds"`
		Preset string `yaml:"preset"`
	} `yaml:"deliberation"`

	Performance struct {
		GlobalTimeoutSeconds float64 `yaml:"global_timeout_seconds"`
		FastFallback         bool    `yaml:"fast_fallback"`
		Streaming            bool    `yaml:"streaming"`
	} `yaml:"performance"`

	Synthesis struct {
		Strategy string                 `yaml:"strategy"`
		Options  map[string]interface{} `yaml:"options"`
	} `yaml:"synthesis"`
}

// FileProvider reads council configuration from a YAML file at path,
// re-parsing it on every call.
type FileProvider struct {
	mu   sync.RWMutex
	path string
}

// NewFileProvider builds a FileProvider reading from path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (f *FileProvider) load() (document, error) {
	f.mu.RLock()
	path := f.path
	f.mu.RUnlock()

	raw, err := os.ReadFile(path)
	if err != nil {
		return document{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return document{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return doc, nil
}

// GetCouncilConfig implements council.ConfigProvider.
func (f *FileProvider) GetCouncilConfig(ctx context.Context) (council.CouncilConfig, error) {
	doc, err := f.load()
	if err != nil {
		return council.CouncilConfig{}, err
	}

	members := make([]council.CouncilMember, 0, len(doc.Council.Members))
	for _, m := range doc.Council.Members {
		kinds := make([]council.ErrorKind, 0, len(m.Retry.RetryableKinds))
		for _, k := range m.Retry.RetryableKinds {
			kinds = append(kinds, council.ErrorKind(k))
		}
		members = append(members, council.CouncilMember{
			MemberID:       m.MemberID,
			ProviderID:     m.ProviderID,
			Model:          m.Model,
			Version:        m.Version,
			Weight:         m.Weight,
			TimeoutSeconds: m.TimeoutSeconds,
			Retry: council.RetryPolicy{
				MaxAttempts:       m.Retry.MaxAttempts,
				InitialDelay:      time.Duration(m.Retry.InitialDelayMs) * time.Millisecond,
				MaxDelay:          time.Duration(m.Retry.MaxDelayMs) * time.Millisecond,
				BackoffMultiplier: m.Retry.BackoffMultiplier,
				RetryableKinds:    kinds,
			},
		})
	}

	return council.CouncilConfig{
		Members:                    members,
		MinimumSize:                doc.Council.MinimumSize,
		RequireMinimumForConsensus: doc.Council.RequireMinimumForConsensus,
	}, nil
}

// GetDeliberationConfig implements council.ConfigProvider.
func (f *FileProvider) GetDeliberationConfig(ctx context.Context) (council.DeliberationConfig, error) {
	doc, err := f.load()
	if err != nil {
		return council.DeliberationConfig{}, err
	}
	preset := council.DeliberationPreset(doc.Deliberation.Preset)
	rounds := doc.Deliberation.Rounds
	if rounds == 0 {
		rounds = presetRounds(preset)
	}
	return council.DeliberationConfig{Rounds: rounds, Preset: preset}, nil
}

// presetRounds maps a named preset to its canonical round count, used
// when a document names a preset but omits an explicit round count.
func presetRounds(preset council.DeliberationPreset) int {
	switch preset {
	case council.PresetFast:
		return 0
	case council.PresetBalanced:
		return 1
	case council.PresetThorough:
		return 2
	case council.PresetResearchGrade:
		return 4
	default:
		return 1
	}
}

// GetPerformanceConfig implements council.ConfigProvider.
func (f *FileProvider) GetPerformanceConfig(ctx context.Context) (council.PerformanceConfig, error) {
	doc, err := f.load()
	if err != nil {
		return council.PerformanceConfig{}, err
	}
	return council.PerformanceConfig{
		GlobalTimeoutSeconds: doc.Performance.GlobalTimeoutSeconds,
		FastFallback:         doc.Performance.FastFallback,
		Streaming:            doc.Performance.Streaming,
	}, nil
}

// GetSynthesisConfig implements council.ConfigProvider.
func (f *FileProvider) GetSynthesisConfig(ctx context.Context) (council.SynthesisConfig, error) {
	doc, err := f.load()
	if err != nil {
		return council.SynthesisConfig{}, err
	}
	return council.SynthesisConfig{
		Strategy: doc.Synthesis.Strategy,
		Options:  doc.Synthesis.Options,
	}, nil
}
