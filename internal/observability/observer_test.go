// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardObserver_Sinks(t *testing.T) {
	obs := NewStandardObserver(ObservabilityMetrics, nil)

	var got []OperationData
	obs.AddSink(func(d OperationData) { got = append(got, d) })

	finish := obs.StartTiming("text_transformer", "transform", "in/log1.txt")
	finish(true, map[string]interface{}{"ips": 1})

	require.Len(t, got, 1)
	assert.Equal(t, "text_transformer", got[0].Component)
	assert.Equal(t, "in/log1.txt", got[0].FilePath)
	assert.True(t, got[0].Success)
	assert.Equal(t, 1, got[0].Metadata["ips"])
}

func TestStandardObserver_Off(t *testing.T) {
	obs := NewStandardObserver(ObservabilityOff, nil)
	called := false
	obs.AddSink(func(OperationData) { called = true })

	obs.StartTiming("c", "op", "")(false, nil)
	assert.False(t, called)
}

func TestStandardObserver_DebugLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewStandardObserver(ObservabilityMetrics, logger).StartTiming("c", "quiet", "")(true, nil)
	assert.Empty(t, buf.String())

	NewStandardObserver(ObservabilityDebug, logger).StartTiming("pdf_transformer", "encrypt", "a.pdf")(true, nil)
	assert.Contains(t, buf.String(), "component=pdf_transformer")
	assert.Contains(t, buf.String(), "file=a.pdf")
}
