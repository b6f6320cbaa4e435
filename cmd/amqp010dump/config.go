package main

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"pack.ag/amqp010"
)

// amqp010dump config.toml keys.
type fileConfig struct {
	LegacyXORWidth     bool   `toml:"legacy_xor_width"`
	MaxDepth           int    `toml:"max_depth"`
	MaxLegacyFrameSize int    `toml:"max_legacy_frame_size"`
	Format             string `toml:"format"`
}

type config struct {
	opts   amqp010.Options
	format string
}

func defaultConfig() config {
	return config{
		opts:   amqp010.DefaultOptions(),
		format: formatText,
	}
}

// loadConfig overlays the keys defined in the TOML file at path onto the
// defaults. An empty path returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(err, "load config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, errors.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("legacy_xor_width") {
		cfg.opts.LegacyXORWidth = raw.LegacyXORWidth
	}
	if meta.IsDefined("max_depth") {
		cfg.opts.MaxDepth = raw.MaxDepth
	}
	if meta.IsDefined("max_legacy_frame_size") {
		cfg.opts.MaxLegacyFrameSize = raw.MaxLegacyFrameSize
	}
	if meta.IsDefined("format") {
		cfg.format = strings.ToLower(strings.TrimSpace(raw.Format))
	}

	if err := cfg.validate(); err != nil {
		return config{}, errors.Wrap(err, "load config")
	}
	return cfg, nil
}

func (c config) validate() error {
	switch c.format {
	case formatText, formatJSON:
	default:
		return errors.Errorf("unsupported format %q (expected %s or %s)", c.format, formatText, formatJSON)
	}
	if c.opts.MaxDepth < 1 {
		return errors.Errorf("max_depth must be at least 1, got %d", c.opts.MaxDepth)
	}
	if c.opts.MaxLegacyFrameSize < 1 {
		return errors.Errorf("max_legacy_frame_size must be at least 1, got %d", c.opts.MaxLegacyFrameSize)
	}
	return nil
}
