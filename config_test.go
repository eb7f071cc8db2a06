package ecs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "world.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadBuilderConfigAndApply(t *testing.T) {
	path := writeConfig(t, "id_range_source: client\nlog_level: info\n")

	cfg, err := LoadBuilderConfig(path)
	require.NoError(t, err)
	require.Equal(t, "client", cfg.IdRangeSource)
	require.Equal(t, "info", cfg.LogLevel)

	b := NewBuilder()
	cfg.Apply(b)
	require.NotNil(t, b.logger)
	require.NotEqual(t, zap.NewNop(), b.logger)

	w, err := b.Build()
	require.NoError(t, err)
	e := w.Spawn()
	require.Less(t, uint64(e), uint64(1)<<48, "client range source must bound allocated ids under 2^48")
}

func TestLoadBuilderConfigMissingFile(t *testing.T) {
	_, err := LoadBuilderConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
