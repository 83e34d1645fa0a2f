// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package metrics keeps per-run Prometheus counters for the sanitizer.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"ferret-seal/internal/observability"
	"ferret-seal/internal/transforms"
)

const namespace = "ferret_seal"

// Recorder owns a private registry so one process can run several pipelines
// without colliding on the default registerer
type Recorder struct {
	registry *prometheus.Registry

	filesProcessed    *prometheus.CounterVec
	identifiersMasked *prometheus.CounterVec
	transformSeconds  *prometheus.HistogramVec
	archiveBytes      prometheus.Gauge
	uploads           *prometheus.CounterVec
}

// NewRecorder creates and registers the run collectors
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		filesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Input directory entries by kind and outcome.",
		}, []string{"kind", "status"}),
		identifiersMasked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifiers_masked_total",
			Help:      "Distinct identifiers replaced in text files.",
		}, []string{"type"}),
		transformSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Time spent transforming one file.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"component", "success"}),
		archiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_size_bytes",
			Help:      "Size of the last archive written.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_uploads_total",
			Help:      "Archive uploads by outcome.",
		}, []string{"status"}),
	}
	r.registry.MustRegister(r.filesProcessed, r.identifiersMasked, r.transformSeconds, r.archiveBytes, r.uploads)
	return r
}

// Registry exposes the private registry for gathering
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveOperation is an observability sink; only transform operations are timed
func (r *Recorder) ObserveOperation(op observability.OperationData) {
	if op.Operation != "transform" {
		return
	}
	r.transformSeconds.WithLabelValues(op.Component, fmt.Sprint(op.Success)).Observe(op.Duration.Seconds())
}

// RecordFile counts one processed directory entry
func (r *Recorder) RecordFile(pf transforms.ProcessedFile) {
	r.filesProcessed.WithLabelValues(pf.Kind.String(), string(pf.Status)).Inc()
	if pf.Result == nil {
		return
	}
	if pf.Result.IPsMasked > 0 {
		r.identifiersMasked.WithLabelValues("ip").Add(float64(pf.Result.IPsMasked))
	}
	if pf.Result.HostnamesMasked > 0 {
		r.identifiersMasked.WithLabelValues("hostname").Add(float64(pf.Result.HostnamesMasked))
	}
}

// RecordArchive sets the archive size gauge
func (r *Recorder) RecordArchive(sizeBytes int64) {
	r.archiveBytes.Set(float64(sizeBytes))
}

// RecordUpload counts an upload attempt outcome
func (r *Recorder) RecordUpload(err error) {
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	r.uploads.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in text exposition format for the
// node-exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
