// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StandardObserver times operations for every component and forwards the
// records to a logger and to any registered sinks (metrics)
type StandardObserver struct {
	level  ObservabilityLevel
	logger *slog.Logger

	mu    sync.RWMutex
	sinks []func(OperationData)
}

type ObservabilityLevel int

const (
	ObservabilityOff     ObservabilityLevel = 0
	ObservabilityMetrics ObservabilityLevel = 1
	ObservabilityDebug   ObservabilityLevel = 2
)

// NewStandardObserver creates observability component. A nil logger discards records.
func NewStandardObserver(level ObservabilityLevel, logger *slog.Logger) *StandardObserver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StandardObserver{
		level:  level,
		logger: logger,
	}
}

// Level returns the configured level
func (o *StandardObserver) Level() ObservabilityLevel {
	return o.level
}

// AddSink registers fn to receive every completed operation while the level is not Off
func (o *StandardObserver) AddSink(fn func(OperationData)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sinks = append(o.sinks, fn)
}

// StartTiming returns a function to complete timing
func (o *StandardObserver) StartTiming(component, operation, filePath string) func(success bool, metadata map[string]interface{}) {
	start := time.Now()

	return func(success bool, metadata map[string]interface{}) {
		o.LogOperation(OperationData{
			Component: component,
			Operation: operation,
			FilePath:  filePath,
			Duration:  time.Since(start),
			Success:   success,
			Metadata:  metadata,
		})
	}
}

// LogOperation records operation data
func (o *StandardObserver) LogOperation(data OperationData) {
	if o == nil || o.level == ObservabilityOff {
		return
	}

	o.mu.RLock()
	sinks := o.sinks
	o.mu.RUnlock()
	for _, sink := range sinks {
		sink(data)
	}

	// Per-operation records are only written in debug mode
	if o.level == ObservabilityDebug {
		attrs := []slog.Attr{
			slog.String("component", data.Component),
			slog.String("operation", data.Operation),
			slog.Int64("duration_ms", data.Duration.Milliseconds()),
			slog.Bool("success", data.Success),
		}
		if data.FilePath != "" {
			attrs = append(attrs, slog.String("file", data.FilePath))
		}
		for k, v := range data.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		o.logger.LogAttrs(context.Background(), slog.LevelDebug, "operation", attrs...)
	}
}

// OperationData describes one timed operation
type OperationData struct {
	Component string
	Operation string
	FilePath  string
	Duration  time.Duration
	Success   bool
	Metadata  map[string]interface{}
}
