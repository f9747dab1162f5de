package seeder

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML profiles can use values like
// "250ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Profile controls a seeding run: how many events, how fast, and how
// many of them are deliberately broken. Rates are fractions in [0, 1].
type Profile struct {
	Count    int      `yaml:"count"`
	Interval Duration `yaml:"interval"`
	Seed     int64    `yaml:"seed"`

	Rates RateConfig `yaml:"rates"`
}

// RateConfig sets how often each defect is injected. The defects mirror
// what real producers get wrong: garbage timestamps, absent fields, and
// refund-shaped negative amounts.
type RateConfig struct {
	InvalidTimestamp float64 `yaml:"invalid_timestamp"`
	MissingStatus    float64 `yaml:"missing_status"`
	MissingAmount    float64 `yaml:"missing_amount"`
	NegativeAmount   float64 `yaml:"negative_amount"`
	MissingCreatedAt float64 `yaml:"missing_created_at"`
}

// DefaultProfile mirrors the defect mix seen in production traffic.
func DefaultProfile() Profile {
	return Profile{
		Count:    100,
		Interval: 0,
		Rates: RateConfig{
			InvalidTimestamp: 0.05,
			MissingStatus:    0.05,
			MissingAmount:    0.03,
			NegativeAmount:   0.02,
			MissingCreatedAt: 0.10,
		},
	}
}

// LoadProfile reads a profile from a YAML file. Fields absent from the
// file keep the default profile's values.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read seed profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse seed profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the profile's ranges.
func (p Profile) Validate() error {
	if p.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", p.Count)
	}
	for name, rate := range map[string]float64{
		"invalid_timestamp":  p.Rates.InvalidTimestamp,
		"missing_status":     p.Rates.MissingStatus,
		"missing_amount":     p.Rates.MissingAmount,
		"negative_amount":    p.Rates.NegativeAmount,
		"missing_created_at": p.Rates.MissingCreatedAt,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("rate %s must be in [0, 1], got %g", name, rate)
		}
	}
	return nil
}
