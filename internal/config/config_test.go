// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "CONFIDENTIAL", cfg.Watermark.Text)
	assert.Equal(t, "protected_output.zip", cfg.Archive.Name)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, "aes", cfg.PDF.Encryption)
	assert.Equal(t, 128, cfg.PDF.KeyLength)
	assert.True(t, cfg.Report.Color)
	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
watermark:
  text: INTERNAL USE ONLY
pdf:
  encryption: aes
  key_length: 256
  audit_identifiers: true
image:
  color: "#00ff0080"
pipeline:
  workers: 4
report:
  format: markdown
distribution:
  target: s3://releases/sanitized
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL USE ONLY", cfg.Watermark.Text)
	assert.Equal(t, 256, cfg.PDF.KeyLength)
	assert.True(t, cfg.PDF.AuditIdentifiers)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "markdown", cfg.Report.Format)
	assert.Equal(t, "s3://releases/sanitized", cfg.Distribution.Target)

	// untouched sections keep their defaults
	assert.Equal(t, "protected_output.zip", cfg.Archive.Name)
	assert.Equal(t, 36.0, cfg.Image.FontSize)
	assert.True(t, cfg.Report.Color, "absent bool keeps its true default")
}

func TestLoadConfig_ExplicitFalseBool(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "report:\n  color: false\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Report.Color)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "error reading config file")

	_, err = LoadConfig(writeConfig(t, dir, "bad.yaml", "watermark: [unterminated"))
	assert.ErrorContains(t, err, "error parsing config file")

	_, err = LoadConfig(writeConfig(t, dir, "invalid.yaml", "pipeline:\n  workers: 0\npdf:\n  key_length: 40\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.workers")
	assert.Contains(t, err.Error(), "pdf.key_length")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty watermark", func(c *Config) { c.Watermark.Text = "  " }, "watermark.text"},
		{"rc4 bad length", func(c *Config) { c.PDF.Encryption = "rc4"; c.PDF.KeyLength = 256 }, "rc4"},
		{"unknown cipher", func(c *Config) { c.PDF.Encryption = "des" }, "pdf.encryption"},
		{"archive path", func(c *Config) { c.Archive.Name = "../out.zip" }, "archive.name"},
		{"archive ext", func(c *Config) { c.Archive.Name = "out.tar" }, ".zip"},
		{"report format", func(c *Config) { c.Report.Format = "xml" }, "report.format"},
		{"target scheme", func(c *Config) { c.Distribution.Target = "ftp://x" }, "distribution.target"},
		{"color", func(c *Config) { c.Image.Color = "#12" }, "image.color"},
		{"font size", func(c *Config) { c.Image.FontSize = 0 }, "image.font_size"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImageConfig_RGBA(t *testing.T) {
	c, err := ImageConfig{Color: "#FF0000"}.RGBA()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, c)

	c, err = ImageConfig{Color: "#00ff0080"}.RGBA()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, A: 0x80}, c)

	c, err = ImageConfig{Color: "Red"}.RGBA()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, c)

	_, err = ImageConfig{Color: "#zzzzzz"}.RGBA()
	assert.Error(t, err)
}

func TestFindConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	envDir := t.TempDir()
	t.Setenv("FERRET_SEAL_CONFIG_DIR", envDir)

	assert.Equal(t, "", FindConfigFile())

	envFile := writeConfig(t, envDir, "config.yaml", "pipeline:\n  workers: 2\n")
	assert.Equal(t, envFile, FindConfigFile())

	writeConfig(t, ".", ".ferret-seal.yaml", "pipeline:\n  workers: 3\n")
	assert.Equal(t, ".ferret-seal.yaml", FindConfigFile())

	writeConfig(t, ".", "ferret-seal.yaml", "pipeline:\n  workers: 4\n")
	assert.Equal(t, "ferret-seal.yaml", FindConfigFile())
}

func TestLoadConfigOrDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("FERRET_SEAL_CONFIG_DIR", t.TempDir())

	cfg, path := LoadConfigOrDefault(nil)
	assert.Equal(t, "", path)
	assert.Equal(t, Default(), cfg)

	writeConfig(t, ".", "ferret-seal.yaml", "pipeline:\n  workers: 0\n")
	cfg, path = LoadConfigOrDefault(nil)
	assert.Equal(t, "", path, "invalid file falls back to defaults")
	assert.Equal(t, 1, cfg.Pipeline.Workers)

	writeConfig(t, ".", "ferret-seal.yaml", "pipeline:\n  workers: 6\n")
	cfg, path = LoadConfigOrDefault(nil)
	assert.Equal(t, "ferret-seal.yaml", path)
	assert.Equal(t, 6, cfg.Pipeline.Workers)
}
