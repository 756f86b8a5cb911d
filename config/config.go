// Package config loads the non-secret defaults (timeouts, ports, the
// client's NetBIOS self-name) from an optional YAML file, grounded on the
// barnettlynn-nfctools sdmconfig pattern: yaml.v3 with KnownFields(true)
// and pointer fields to detect what the file actually set. Feeding a path
// to Load is a CLI concern, out of scope per spec.md §1.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeouts holds the network wait budgets from spec.md §4.3.
type Timeouts struct {
	CacheProbe      time.Duration
	MulticastWindow time.Duration
	MetadataHTTP    time.Duration
	TotalBudget     time.Duration
}

// Config is the set of defaults this client consults. All fields have
// hardcoded fallbacks from Default(); a loaded file may override any
// subset of them.
type Config struct {
	Timeouts Timeouts

	// SelfName is the NetBIOS "calling name" setting (spec.md §4.1).
	// Load and Validate handle it; transport.Dial presents the fixed
	// transport.SelfName constant and does not read this field.
	SelfName string

	// SMBPort and DiscoveryPort are the well-known port settings. Load
	// and Validate handle them; the transport and the cache probe always
	// dial port 139 and discovery always uses 3702, without reading these
	// fields.
	SMBPort       int
	DiscoveryPort int
}

// fileConfig is the YAML shape: every field is a pointer so Load can tell
// "absent from file" apart from "zero value", mirroring sdmconfig's
// RuntimeConfig.
type fileConfig struct {
	Timeouts *struct {
		CacheProbeMS      *int `yaml:"cache_probe_ms"`
		MulticastWindowMS *int `yaml:"multicast_window_ms"`
		MetadataHTTPMS    *int `yaml:"metadata_http_ms"`
		TotalBudgetMS     *int `yaml:"total_budget_ms"`
	} `yaml:"timeouts"`
	SelfName      *string `yaml:"self_name"`
	SMBPort       *int    `yaml:"smb_port"`
	DiscoveryPort *int    `yaml:"discovery_port"`
}

// Default returns the spec's hardcoded defaults (spec.md §4.3 Timeouts),
// used when no config file is present.
func Default() Config {
	return Config{
		Timeouts: Timeouts{
			CacheProbe:      200 * time.Millisecond,
			MulticastWindow: 700 * time.Millisecond,
			MetadataHTTP:    500 * time.Millisecond,
			TotalBudget:     1500 * time.Millisecond,
		},
		SelfName:      "N3DSSMB",
		SMBPort:       139,
		DiscoveryPort: 3702,
	}
}

// Load reads an optional YAML file at path and overlays it on Default().
// A missing file is not an error: it returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	var fc fileConfig
	if err := dec.Decode(&fc); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.Timeouts != nil {
		if v := fc.Timeouts.CacheProbeMS; v != nil {
			cfg.Timeouts.CacheProbe = time.Duration(*v) * time.Millisecond
		}
		if v := fc.Timeouts.MulticastWindowMS; v != nil {
			cfg.Timeouts.MulticastWindow = time.Duration(*v) * time.Millisecond
		}
		if v := fc.Timeouts.MetadataHTTPMS; v != nil {
			cfg.Timeouts.MetadataHTTP = time.Duration(*v) * time.Millisecond
		}
		if v := fc.Timeouts.TotalBudgetMS; v != nil {
			cfg.Timeouts.TotalBudget = time.Duration(*v) * time.Millisecond
		}
	}
	if fc.SelfName != nil {
		cfg.SelfName = *fc.SelfName
	}
	if fc.SMBPort != nil {
		cfg.SMBPort = *fc.SMBPort
	}
	if fc.DiscoveryPort != nil {
		cfg.DiscoveryPort = *fc.DiscoveryPort
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration is internally consistent.
func (c Config) Validate() error {
	if c.Timeouts.TotalBudget <= 0 {
		return fmt.Errorf("config: timeouts.total_budget_ms must be positive")
	}
	if c.SelfName == "" {
		return fmt.Errorf("config: self_name must not be empty")
	}
	if c.SMBPort <= 0 || c.SMBPort > 65535 {
		return fmt.Errorf("config: smb_port out of range")
	}
	if c.DiscoveryPort <= 0 || c.DiscoveryPort > 65535 {
		return fmt.Errorf("config: discovery_port out of range")
	}
	return nil
}
