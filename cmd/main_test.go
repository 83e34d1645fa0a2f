// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"ferret-seal/internal/archive"
	"ferret-seal/internal/paths"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps config discovery away from the developer's files
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(paths.ConfigDirEnv, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(PasswordEnv, "")
	t.Setenv("FERRET_SEAL_DEBUG", "")
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_EndToEnd(t *testing.T) {
	isolate(t)
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "log1.txt"),
		[]byte("Connect to 10.0.0.1 and backup.example.com"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.docx"), []byte("x"), 0600))

	code, stdout, stderr := runCLI("--input", in, "--output", out, "--password", "s3cret",
		"--format", "json", "--verify", "--workers", "2")
	require.Equal(t, exitOK, code, stderr)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	archivePath := filepath.Join(out, archive.DefaultName)
	assert.Equal(t, archivePath, doc["archive"])
	assert.Equal(t, true, doc["verified"])
	assert.Contains(t, stderr, "Protected archive created at "+archivePath)
	assert.NotContains(t, stderr, "s3cret")

	extracted, err := archive.Extract(archivePath, "s3cret", t.TempDir())
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	data, err := os.ReadFile(extracted[0])
	require.NoError(t, err)
	assert.Equal(t, "Connect to MASKED_IP.1 and HOST_1\n\n# WATERMARK: CONFIDENTIAL", string(data))
}

func TestRun_PasswordFromEnvAndConfigFile(t *testing.T) {
	isolate(t)
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.log"), []byte("host db.internal.net"), 0600))
	require.NoError(t, os.WriteFile("ferret-seal.yaml", []byte("watermark:\n  text: INTERNAL\narchive:\n  name: sealed.zip\n"), 0600))
	t.Setenv(PasswordEnv, "from-env")

	code, _, stderr := runCLI("--input", in, "--output", out, "--quiet", "--archive-name", "override.zip")
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stderr)

	extracted, err := archive.Extract(filepath.Join(out, "override.zip"), "from-env", t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(extracted[0])
	require.NoError(t, err)
	assert.Equal(t, "host HOST_1\n\n# WATERMARK: INTERNAL", string(data))
}

func TestRun_ReportFile(t *testing.T) {
	isolate(t)
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte("nothing here"), 0600))
	reportPath := filepath.Join(t.TempDir(), "report.md")

	code, stdout, stderr := runCLI("--input", in, "--output", out, "--password", "pw",
		"--format", "markdown", "--report-file", reportPath)
	require.Equal(t, exitOK, code, stderr)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Ferret Seal Report")
}

func TestRun_ExitCodes(t *testing.T) {
	isolate(t)
	in := t.TempDir()

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"version", []string{"--version"}, exitOK},
		{"help", []string{"--help"}, exitOK},
		{"unknown flag", []string{"--recursive"}, exitUsage},
		{"stray argument", []string{"--input", in, "extra"}, exitUsage},
		{"missing output", []string{"--input", in, "--password", "pw"}, exitUsage},
		{"missing password", []string{"--input", in, "--output", t.TempDir()}, exitUsage},
		{"bad format", []string{"--input", in, "--output", t.TempDir(), "--password", "pw", "--format", "csv"}, exitUsage},
		{"bad workers", []string{"--input", in, "--output", t.TempDir(), "--password", "pw", "--workers", "0"}, exitUsage},
		{"bad upload target", []string{"--input", in, "--output", t.TempDir(), "--password", "pw", "--upload", "ftp://x"}, exitUsage},
		{"missing config", []string{"--config", "nope.yaml", "--input", in, "--output", t.TempDir(), "--password", "pw"}, exitUsage},
		{"missing input", []string{"--input", filepath.Join(in, "nope"), "--output", t.TempDir(), "--password", "pw"}, exitFailure},
		{"output equals input", []string{"--input", in, "--output", in, "--password", "pw"}, exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(tt.args...)
			assert.Equal(t, tt.code, code, stderr)
		})
	}
}

func TestRun_UploadToFileTarget(t *testing.T) {
	isolate(t)
	in, out, dest := t.TempDir(), t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.txt"), []byte("10.1.1.1"), 0600))
	metricsPath := filepath.Join(t.TempDir(), "seal.prom")
	require.NoError(t, os.WriteFile("ferret-seal.yaml", []byte("metrics:\n  textfile: "+metricsPath+"\n"), 0600))

	code, _, stderr := runCLI("--input", in, "--output", out, "--password", "pw", "--upload", "file://"+dest+"/")
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, filepath.Join(dest, archive.DefaultName))
	assert.Contains(t, stderr, "Archive uploaded to file://")

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "ferret_seal_files_processed_total")
}
