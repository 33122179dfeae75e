// Package config loads the pmdlog run configuration from a YAML file and
// provides sensible defaults when no file is given.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pmd-tools/pmdlog-go/pmd"
)

// SerialConfig selects the port and the link speeds to probe.
type SerialConfig struct {
	// Port is the device path ("/dev/ttyUSB0", "COM3"). Empty means
	// auto-detect by probing enumerated ports.
	Port string `yaml:"port"`
	// Bauds are the candidate link speeds. Empty means all supported.
	Bauds []int `yaml:"bauds"`
	// FastLink moves the link to the highest supported speed after the
	// handshake. Recommended when streaming all channels.
	FastLink bool `yaml:"fast_link"`
}

// StreamConfig selects what the device transmits.
type StreamConfig struct {
	// Channels lists enabled channel names (PCIE1_V, PCIE1_I, ...).
	// Empty means all eight.
	Channels []string `yaml:"channels"`
	// Timestamps is "none", "short" or "full".
	Timestamps string `yaml:"timestamps"`
}

// CSVConfig controls sample persistence.
type CSVConfig struct {
	// Path of the output file. Empty means stdout.
	Path string `yaml:"path"`
}

// WebConfig controls the pmdmon web monitor.
type WebConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// Config is the full run configuration shared by pmdlog and pmdmon.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Stream StreamConfig `yaml:"stream"`
	CSV    CSVConfig    `yaml:"csv"`
	Web    WebConfig    `yaml:"web"`
}

// Defaults returns the configuration used when no file overrides it: probe
// all speeds, stream every channel with full timestamps, write CSV to
// stdout, serve the monitor on localhost.
func Defaults() *Config {
	return &Config{
		Serial: SerialConfig{
			Bauds: pmd.SupportedBauds,
		},
		Stream: StreamConfig{
			Timestamps: "full",
		},
		Web: WebConfig{
			Addr:      "127.0.0.1:8090",
			StaticDir: "./web",
		},
	}
}

// Load reads path and overlays it onto the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse yaml %s: %w", path, err)
	}
	if _, err := cfg.Mask(); err != nil {
		return nil, err
	}
	if _, err := cfg.TimestampMode(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Mask resolves the configured channel names into a channel mask. An empty
// list enables all channels.
func (c *Config) Mask() (pmd.ChannelMask, error) {
	if len(c.Stream.Channels) == 0 {
		return pmd.MaskAll, nil
	}
	var mask pmd.ChannelMask
	for _, name := range c.Stream.Channels {
		ch, ok := pmd.ChannelByName(name)
		if !ok {
			return 0, fmt.Errorf("unknown channel %q", name)
		}
		mask |= 1 << uint(ch)
	}
	return mask, nil
}

// TimestampMode resolves the configured timestamp mode string.
func (c *Config) TimestampMode() (pmd.TimestampMode, error) {
	return pmd.ParseTimestampMode(c.Stream.Timestamps)
}
