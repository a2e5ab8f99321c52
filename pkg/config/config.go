// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads runtime settings from defaults, a YAML file,
// DCI_ environment variables and --set command line overrides, in that
// order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/jllopis/dci/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides. DCI_JOURNAL_DSN maps to
// journal.dsn: the first underscore separates the section from the key.
const EnvPrefix = "DCI_"

type Config struct {
	Log         LogConfig         `koanf:"log"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Dispatch    DispatchConfig    `koanf:"dispatch"`
	Interaction InteractionConfig `koanf:"interaction"`
	Journal     JournalConfig     `koanf:"journal"`
	Example     ExampleConfig     `koanf:"example"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Exporter     string `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
	ServiceName  string `koanf:"service_name"`
}

type DispatchConfig struct {
	Cache bool `koanf:"cache"`
}

type InteractionConfig struct {
	LockParticipants bool `koanf:"lock_participants"`
}

type JournalConfig struct {
	Driver string `koanf:"driver"` // memory, sqlite, none
	DSN    string `koanf:"dsn"`

	// Retries is the number of attempts per entry write.
	Retries int `koanf:"retries"`
	// BreakerThreshold is the number of failed writes that pauses recording.
	BreakerThreshold int `koanf:"breaker_threshold"`
}

// ExampleConfig tunes the bundled bank example.
type ExampleConfig struct {
	FeeRate float64 `koanf:"fee_rate"`
}

var defaults = map[string]any{
	"log.level":                     "info",
	"log.format":                    "text",
	"telemetry.enabled":             false,
	"telemetry.exporter":            "stdout",
	"telemetry.otlp_endpoint":       "localhost:4317",
	"telemetry.otlp_insecure":       true,
	"telemetry.service_name":        "dci",
	"dispatch.cache":                true,
	"interaction.lock_participants": true,
	"journal.driver":                "memory",
	"journal.dsn":                   "",
	"journal.retries":               3,
	"journal.breaker_threshold":     5,
	"example.fee_rate":              0.10,
}

// Default returns the built-in configuration, ignoring files and the
// environment.
func Default() *Config {
	k, err := withDefaults()
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads path (optional) and the environment on top of the defaults.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadWithCLI is Load driven by command line arguments. It understands
// --config <path> and repeated --set key=value; other arguments are ignored.
// Values given to --set are decoded as YAML, so numbers, booleans and
// inline maps keep their type.
func LoadWithCLI(args []string) (*Config, error) {
	path, overrides, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(path, overrides)
}

func withDefaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func load(path string, overrides map[string]any) (*Config, error) {
	k, err := withDefaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeInvalidInput, "failed to load config file", err).
				WithContext("path", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "failed to decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"log.level", strings.ToLower(c.Log.Level), []string{"debug", "info", "warn", "warning", "error"}},
		{"log.format", strings.ToLower(c.Log.Format), []string{"json", "text"}},
		{"telemetry.exporter", c.Telemetry.Exporter, []string{"stdout", "otlp", "none"}},
		{"journal.driver", c.Journal.Driver, []string{"memory", "sqlite", "none"}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return errors.Newf(errors.CodeInvalidInput, "invalid %s %q (want one of %s)",
				check.key, check.value, strings.Join(check.allowed, ", ")).
				WithContext("key", check.key)
		}
	}
	if c.Journal.Driver == "sqlite" && c.Journal.DSN == "" {
		return errors.New(errors.CodeInvalidInput, "journal.dsn is required for the sqlite driver", nil).
			WithContext("key", "journal.dsn")
	}
	if c.Journal.Retries < 1 {
		return errors.Newf(errors.CodeInvalidInput, "invalid journal.retries %d (want >= 1)", c.Journal.Retries).
			WithContext("key", "journal.retries")
	}
	if c.Journal.BreakerThreshold < 1 {
		return errors.Newf(errors.CodeInvalidInput, "invalid journal.breaker_threshold %d (want >= 1)", c.Journal.BreakerThreshold).
			WithContext("key", "journal.breaker_threshold")
	}
	if c.Example.FeeRate < 0 || c.Example.FeeRate >= 1 {
		return errors.Newf(errors.CodeInvalidInput, "invalid example.fee_rate %v (want 0 <= rate < 1)", c.Example.FeeRate).
			WithContext("key", "example.fee_rate")
	}
	return nil
}

// Diff lists the top level sections whose values differ, in declaration
// order.
func Diff(prev, next *Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var sections []string
	add := func(name string, changed bool) {
		if changed {
			sections = append(sections, name)
		}
	}
	add("log", prev.Log != next.Log)
	add("telemetry", prev.Telemetry != next.Telemetry)
	add("dispatch", prev.Dispatch != next.Dispatch)
	add("interaction", prev.Interaction != next.Interaction)
	add("journal", prev.Journal != next.Journal)
	add("example", prev.Example != next.Example)
	return sections
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func parseCLIOverrides(args []string) (string, map[string]any, error) {
	var path string
	overrides := map[string]any{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, inline, hasInline := strings.Cut(arg, "=")
		if name != "--config" && name != "--set" {
			continue
		}
		value := inline
		if !hasInline {
			if i+1 >= len(args) {
				return "", nil, errors.Newf(errors.CodeInvalidInput, "missing value for %s", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			path = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return "", nil, errors.Newf(errors.CodeInvalidInput, "invalid --set %q (want key=value)", value)
			}
			overrides[key] = decodeValue(raw)
		}
	}
	return path, overrides, nil
}

// decodeValue interprets raw as a YAML scalar or flow collection and falls
// back to the literal string.
func decodeValue(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	var v any
	if err := yamlv3.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}
