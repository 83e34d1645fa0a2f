// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"ferret-seal/internal/paths"
)

// Config represents the ferret-seal configuration file. Secrets are never
// read from it; the run password comes from the command line or environment.
type Config struct {
	Watermark    WatermarkConfig    `yaml:"watermark"`
	Text         TextConfig         `yaml:"text"`
	PDF          PDFConfig          `yaml:"pdf"`
	Image        ImageConfig        `yaml:"image"`
	Archive      ArchiveConfig      `yaml:"archive"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Report       ReportConfig       `yaml:"report"`
	Distribution DistributionConfig `yaml:"distribution"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// WatermarkConfig is shared by every transform
type WatermarkConfig struct {
	Text string `yaml:"text"`
}

// TextConfig controls the text transform
type TextConfig struct {
	// Encoding is an IANA charset name for source files; empty means UTF-8
	Encoding string `yaml:"encoding"`
}

// PDFConfig controls the document transform
type PDFConfig struct {
	// Overlay is a pdfcpu watermark description; empty selects the built-in style
	Overlay          string `yaml:"overlay"`
	Encryption       string `yaml:"encryption"`
	KeyLength        int    `yaml:"key_length"`
	AuditIdentifiers bool   `yaml:"audit_identifiers"`
}

// ImageConfig controls the image transform
type ImageConfig struct {
	Font      string  `yaml:"font"`
	FontSize  float64 `yaml:"font_size"`
	Color     string  `yaml:"color"`
	OffsetX   int     `yaml:"offset_x"`
	OffsetY   int     `yaml:"offset_y"`
	MaxPixels int     `yaml:"max_pixels"`
}

// ArchiveConfig controls the packager
type ArchiveConfig struct {
	Name   string `yaml:"name"`
	Verify bool   `yaml:"verify"`
}

// PipelineConfig controls folder processing
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// ReportConfig controls the end-of-run report
type ReportConfig struct {
	Format          string `yaml:"format"`
	File            string `yaml:"file"`
	Color           bool   `yaml:"color"`
	IncludeMappings bool   `yaml:"include_mappings"`
}

// DistributionConfig controls the optional archive upload
type DistributionConfig struct {
	// Target is s3://bucket/prefix or file:///dir; empty disables upload
	Target     string `yaml:"target"`
	MaxRetries int    `yaml:"max_retries"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Format string `yaml:"format"`
	Debug  bool   `yaml:"debug"`
}

// Supported report formats
var ReportFormats = []string{"text", "json", "yaml", "markdown"}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Watermark.Text = "CONFIDENTIAL"

	cfg.PDF.Encryption = "aes"
	cfg.PDF.KeyLength = 128

	cfg.Image.Font = "arial.ttf"
	cfg.Image.FontSize = 36
	cfg.Image.Color = "#FF0000"
	cfg.Image.OffsetX = 10
	cfg.Image.OffsetY = 10
	cfg.Image.MaxPixels = 100_000_000

	cfg.Archive.Name = "protected_output.zip"

	cfg.Pipeline.Workers = 1

	cfg.Report.Format = "text"
	cfg.Report.Color = true

	cfg.Distribution.MaxRetries = 3

	cfg.Logging.Format = "text"
	return cfg
}

// LoadConfig loads configuration from the specified file path on top of the
// defaults. An empty path returns the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		return config, nil
	}

	cleanPath := filepath.Clean(configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	defaultColor := config.Report.Color

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// yaml leaves absent bools at false; put true defaults back
	if !containsField(data, "report", "color") {
		config.Report.Color = defaultColor
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	if err := yaml.Unmarshal(data, &yamlData); err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return false
		}
		current = next
	}
	return false
}

// ValidateConfig checks value ranges and cross-field constraints
func ValidateConfig(config *Config) error {
	var errs []error

	if strings.TrimSpace(config.Watermark.Text) == "" {
		errs = append(errs, errors.New("watermark.text cannot be empty"))
	}

	switch strings.ToLower(config.PDF.Encryption) {
	case "aes":
		if config.PDF.KeyLength != 128 && config.PDF.KeyLength != 256 {
			errs = append(errs, fmt.Errorf("pdf.key_length must be 128 or 256 for aes, got %d", config.PDF.KeyLength))
		}
	case "rc4":
		if config.PDF.KeyLength != 40 && config.PDF.KeyLength != 128 {
			errs = append(errs, fmt.Errorf("pdf.key_length must be 40 or 128 for rc4, got %d", config.PDF.KeyLength))
		}
	default:
		errs = append(errs, fmt.Errorf("pdf.encryption must be aes or rc4, got %q", config.PDF.Encryption))
	}

	if config.Image.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("image.font_size must be positive, got %v", config.Image.FontSize))
	}
	if _, err := config.Image.RGBA(); err != nil {
		errs = append(errs, err)
	}
	if config.Image.OffsetX < 0 || config.Image.OffsetY < 0 {
		errs = append(errs, errors.New("image.offset_x and image.offset_y cannot be negative"))
	}
	if config.Image.MaxPixels < 0 {
		errs = append(errs, errors.New("image.max_pixels cannot be negative"))
	}

	if err := validateArchiveName(config.Archive.Name); err != nil {
		errs = append(errs, err)
	}

	if config.Pipeline.Workers < 1 {
		errs = append(errs, fmt.Errorf("pipeline.workers must be at least 1, got %d", config.Pipeline.Workers))
	}

	if !isReportFormat(config.Report.Format) {
		errs = append(errs, fmt.Errorf("report.format must be one of %s, got %q", strings.Join(ReportFormats, ", "), config.Report.Format))
	}
	if err := paths.ValidatePath(config.Report.File); err != nil {
		errs = append(errs, err)
	}

	if config.Distribution.Target != "" &&
		!strings.HasPrefix(config.Distribution.Target, "s3://") &&
		!strings.HasPrefix(config.Distribution.Target, "file://") {
		errs = append(errs, fmt.Errorf("distribution.target must start with s3:// or file://, got %q", config.Distribution.Target))
	}
	if config.Distribution.MaxRetries < 0 {
		errs = append(errs, errors.New("distribution.max_retries cannot be negative"))
	}

	if err := paths.ValidatePath(config.Metrics.Textfile); err != nil {
		errs = append(errs, err)
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", config.Logging.Format))
	}

	return errors.Join(errs...)
}

func validateArchiveName(name string) error {
	if name == "" {
		return errors.New("archive.name cannot be empty")
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("archive.name must be a plain file name, got %q", name)
	}
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return fmt.Errorf("archive.name must end in .zip, got %q", name)
	}
	return nil
}

func isReportFormat(format string) bool {
	for _, f := range ReportFormats {
		if f == format {
			return true
		}
	}
	return false
}

var namedColors = map[string]color.RGBA{
	"red":   {R: 0xFF, A: 0xFF},
	"black": {A: 0xFF},
	"white": {R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
	"gray":  {R: 0x80, G: 0x80, B: 0x80, A: 0xFF},
}

// RGBA parses Color as #RRGGBB, #RRGGBBAA or one of red, black, white, gray
func (ic ImageConfig) RGBA() (color.RGBA, error) {
	s := strings.ToLower(strings.TrimSpace(ic.Color))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("image.color must be #RRGGBB, #RRGGBBAA or a color name, got %q", ic.Color)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("image.color must be #RRGGBB, #RRGGBBAA or a color name, got %q", ic.Color)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// FindConfigFile looks for a configuration file in the standard locations
// and returns "" when there is none
func FindConfigFile() string {
	candidates := []string{"ferret-seal.yaml", ".ferret-seal.yaml"}

	if dir := os.Getenv(paths.ConfigDirEnv); dir != "" {
		candidates = append(candidates, filepath.Join(dir, "config.yaml"))
	}
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, paths.AppName, "config.yaml"))
	}
	candidates = append(candidates, paths.GetConfigFile())

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// LoadConfigOrDefault searches the standard locations and loads the first
// file found. A file that fails to load is reported and the defaults are used.
func LoadConfigOrDefault(logger *slog.Logger) (*Config, string) {
	configPath := FindConfigFile()
	if configPath == "" {
		return Default(), ""
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		if logger != nil {
			logger.Warn("ignoring configuration file", "path", configPath, "error", err)
		}
		return Default(), ""
	}
	return cfg, configPath
}
