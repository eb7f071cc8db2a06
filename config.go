package ecs

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// BuilderConfig externalizes the id-range-source selection and logger
// level for a World's Builder into a YAML document, so a host
// application can configure world setup without writing Go — the way
// rdtc8822-debug-L1JGO-Whale loads its server config (SPEC_FULL §10
// "Builder configuration file format").
type BuilderConfig struct {
	// IdRangeSource selects a preset allocator: "default" (the full
	// [1, 2^64-2] range), "client", or "server" (SPEC_FULL §11.1).
	IdRangeSource string `yaml:"id_range_source"`
	// InitialCapacity is decoded but not used: Apply does not read it, and
	// the entity index always grows on demand from its default size.
	InitialCapacity int `yaml:"initial_capacity"`
	// LogLevel is one of zap's level names: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// LoadBuilderConfig reads and decodes a YAML BuilderConfig from path.
func LoadBuilderConfig(path string) (BuilderConfig, error) {
	var cfg BuilderConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("ecs: reading builder config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("ecs: parsing builder config: %w", err)
	}
	return cfg, nil
}

// Apply configures b according to cfg: id-range source preset and logger
// level. Unknown IdRangeSource values leave b's default untouched.
func (cfg BuilderConfig) Apply(b *Builder) *Builder {
	switch cfg.IdRangeSource {
	case "client":
		b.WithIdRangeSource(ClientRangeAllocator())
	case "server":
		b.WithIdRangeSource(ServerRangeAllocator())
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err == nil {
			zcfg := zap.NewProductionConfig()
			zcfg.Level = zap.NewAtomicLevelAt(level)
			if logger, err := zcfg.Build(); err == nil {
				b.WithLogger(logger)
			}
		}
	}
	return b
}
