// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecureHandler_SensitiveKeys(t *testing.T) {
	tests := []struct {
		key      string
		wantMask bool
	}{
		{"password", true},
		{"Password", true},
		{"archive_password", true},
		{"aws_secret_access_key", true},
		{"session_token", true},
		{"file", false},
		{"component", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var buf bytes.Buffer
			logger, _ := NewLogger(&buf, Options{})
			logger.Info("event", tt.key, "hunter2")

			if tt.wantMask {
				assert.NotContains(t, buf.String(), "hunter2")
				assert.Contains(t, buf.String(), MaskValue)
			} else {
				assert.Contains(t, buf.String(), "hunter2")
			}
		})
	}
}

func TestSecureHandler_RegisteredSecret(t *testing.T) {
	var buf bytes.Buffer
	logger, handler := NewLogger(&buf, Options{})
	handler.RegisterSecret("s3cr3t-pw")

	derived := logger.With("component", "pipeline").WithGroup("run")
	derived.Warn("failed with s3cr3t-pw in message",
		"detail", "opening archive with s3cr3t-pw",
		"error", errors.New("bad password s3cr3t-pw"),
	)

	out := buf.String()
	assert.NotContains(t, out, "s3cr3t-pw")
	assert.Contains(t, out, "component=pipeline")
}

func TestSecureHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := NewLogger(&buf, Options{JSON: true})
	logger.Info("upload", slog.Group("aws", slog.String("secret_access_key", "abc"), slog.String("region", "us-east-1")))

	assert.NotContains(t, buf.String(), `"abc"`)
	assert.Contains(t, buf.String(), "us-east-1")
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	quiet, _ := NewLogger(&buf, Options{Quiet: true})
	quiet.Info("hidden")
	quiet.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	debug, _ := NewLogger(&buf, Options{Debug: true, Quiet: true})
	debug.Debug("details")
	assert.Contains(t, buf.String(), "details")
}
