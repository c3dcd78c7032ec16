package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the demo's TOML-loadable configuration.
type Config struct {
	// TargetRate is the host output rate in Hz.
	TargetRate int

	// OutputRingFrames is the bridge output ring capacity.
	OutputRingFrames int

	// Bits is the sink sample width, 16 or 32.
	Bits int

	// Gain is the master gain applied by the sink adapter.
	Gain float64

	// ToneHz is the test tone frequency.
	ToneHz float64

	// ProducerRate is the simulated chip's nominal sample rate in Hz.
	ProducerRate float64

	// DriftPercent is the peak-to-peak slow wobble applied to the
	// producer rate, emulating load-dependent emulation timing.
	DriftPercent float64

	// SyncBase is the producer clock scale in cycles per second.
	SyncBase float64
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		TargetRate:       48000,
		OutputRingFrames: 2048,
		Bits:             16,
		Gain:             0.8,
		ToneHz:           440,
		ProducerRate:     44100,
		DriftPercent:     0.5,
		SyncBase:         3546895,
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	if _, err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
