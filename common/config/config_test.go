package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Size int `kdl:"size"`
}

type testConfig struct {
	Name   string  `kdl:"name"`
	Count  int     `kdl:"count"`
	Nested *nested `kdl:"nested"`
}

var errBadCount = errors.New("bad count")

func (c *testConfig) Validate() error {
	if c.Count < 0 {
		return errBadCount
	}
	return nil
}

func defaults() testConfig {
	return testConfig{Name: "default", Count: 1, Nested: &nested{Size: 7}}
}

func restoreLogger(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.kdl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitializeConfigOverridesDefaults(t *testing.T) {
	restoreLogger(t)
	path := writeConfig(t, "name \"table\"\nnested {\n    size 3\n}\n")

	cfg, err := InitializeConfig(path, defaults())
	require.NoError(t, err)
	assert.Equal(t, "table", cfg.Name)
	assert.Equal(t, 1, cfg.Count)
	require.NotNil(t, cfg.Nested)
	assert.Equal(t, 3, cfg.Nested.Size)
}

func TestInitializeConfigExplicitMissingFile(t *testing.T) {
	restoreLogger(t)
	_, err := InitializeConfig(filepath.Join(t.TempDir(), "absent.kdl"), defaults())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInitializeConfigDefaultPathMissing(t *testing.T) {
	restoreLogger(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := InitializeConfig("", defaults())
	require.NoError(t, err)
	assert.Equal(t, defaults(), *cfg)
}

func TestInitializeConfigValidates(t *testing.T) {
	restoreLogger(t)
	path := writeConfig(t, "count -1\n")
	_, err := InitializeConfig(path, defaults())
	assert.ErrorIs(t, err, errBadCount)
}

func TestInitializeConfigMalformed(t *testing.T) {
	restoreLogger(t)
	path := writeConfig(t, "nested {\n")
	_, err := InitializeConfig(path, defaults())
	assert.Error(t, err)
}
