package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ne0x1/Egyptian-Forensics-Toolkit/internal/config"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	configDir := filepath.Join(dir, "eff")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.Verify)
	assert.Nil(t, cfg.Defaults.ChunkSize)
	assert.Nil(t, cfg.Case.Examiner)
	assert.Nil(t, cfg.Theme.Green)
}

func TestLoad_FullConfig(t *testing.T) {
	writeConfig(t, `
[defaults]
output_dir = "/cases/out"
chunk_size = "4M"
digests = ["sha1", "sha256"]
verify = true
bwlimit = "100MB"
compress = "best"
split = 2048
ewf = true
zstd = false
tui = true
ledger = "/cases/ledger.db"

[case]
examiner = "J. Doe"

[theme]
green = "#00ff00"
red = "#ff0000"
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	d := cfg.Defaults
	require.NotNil(t, d.OutputDir)
	assert.Equal(t, "/cases/out", *d.OutputDir)
	require.NotNil(t, d.ChunkSize)
	assert.Equal(t, "4M", *d.ChunkSize)
	assert.Equal(t, []string{"sha1", "sha256"}, d.Digests)
	require.NotNil(t, d.Verify)
	assert.True(t, *d.Verify)
	require.NotNil(t, d.BWLimit)
	assert.Equal(t, "100MB", *d.BWLimit)
	require.NotNil(t, d.Compress)
	assert.Equal(t, "best", *d.Compress)
	require.NotNil(t, d.Split)
	assert.Equal(t, 2048, *d.Split)
	require.NotNil(t, d.EWF)
	assert.True(t, *d.EWF)
	require.NotNil(t, d.Zstd)
	assert.False(t, *d.Zstd)
	require.NotNil(t, d.TUI)
	assert.True(t, *d.TUI)
	require.NotNil(t, d.Ledger)
	assert.Equal(t, "/cases/ledger.db", *d.Ledger)

	require.NotNil(t, cfg.Case.Examiner)
	assert.Equal(t, "J. Doe", *cfg.Case.Examiner)
	assert.Nil(t, cfg.Case.Notes)

	require.NotNil(t, cfg.Theme.Green)
	assert.Equal(t, "#00ff00", *cfg.Theme.Green)
	require.NotNil(t, cfg.Theme.Red)
	assert.Equal(t, "#ff0000", *cfg.Theme.Red)

	// Unset fields should remain nil.
	assert.Nil(t, cfg.Theme.Blue)
	assert.Nil(t, cfg.Theme.Bright)
}

func TestLoad_PartialConfig(t *testing.T) {
	writeConfig(t, `
[theme]
bright = "#ffffff"
`)

	cfg, err := config.Load()
	require.NoError(t, err)

	// Defaults section entirely absent.
	assert.Nil(t, cfg.Defaults.Verify)
	assert.Nil(t, cfg.Defaults.Digests)

	require.NotNil(t, cfg.Theme.Bright)
	assert.Equal(t, "#ffffff", *cfg.Theme.Bright)
}

func TestLoad_InvalidTOML(t *testing.T) {
	writeConfig(t, "invalid [[[")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Defaults.OutputDir)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/eff/config.toml", config.Path())
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"100", 100},
		{"100B", 100},
		{"100b", 100},
		{"100K", 102400},
		{"100k", 102400},
		{"1M", 1048576},
		{"100MB", 104857600},
		{"4MiB", 4194304},
		{"1G", 1073741824},
		{"1T", 1099511627776},
		{"1.5G", 1610612736},
		{"0.5M", 524288},
		{"8388607T", 8388607 << 40},
		{"9223372036854775807", 9223372036854775807},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := config.ParseSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSizeErrors(t *testing.T) {
	tests := []string{
		"",
		"abc",
		"K",
		"B",
		"iB",
		"-5M",
		"notanumber G",
		"NaN",
		"Inf",
		"8388608T",
		"9000000000000000000K",
		"99999999999999999999",
		"9.3e18",
		"1e30T",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := config.ParseSize(input)
			assert.Error(t, err)
		})
	}
}
