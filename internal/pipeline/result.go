// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"ferret-seal/internal/transforms"
)

// Result is the outcome of one Run
type Result struct {
	InputDir  string
	OutputDir string

	// Files holds one record per input directory entry, in enumeration order
	Files []transforms.ProcessedFile

	ArchivePath string
	ArchiveSize int64

	// Verified is set when the archive was re-opened and every member decrypted
	Verified bool

	// UploadURI is where the archive was distributed, if anywhere
	UploadURI string

	StartedAt time.Time
	Duration  time.Duration
}

func (r *Result) filter(status transforms.Status) []transforms.ProcessedFile {
	var out []transforms.ProcessedFile
	for _, pf := range r.Files {
		if pf.Status == status {
			out = append(out, pf)
		}
	}
	return out
}

// Succeeded returns the records whose output went into the archive
func (r *Result) Succeeded() []transforms.ProcessedFile {
	return r.filter(transforms.StatusSucceeded)
}

// Skipped returns the records that were not eligible for processing
func (r *Result) Skipped() []transforms.ProcessedFile {
	return r.filter(transforms.StatusSkipped)
}

// Failed returns the records whose transform failed
func (r *Result) Failed() []transforms.ProcessedFile {
	return r.filter(transforms.StatusFailed)
}

// Errors collects the per-file failures by error type
func (r *Result) Errors() *transforms.TransformErrorCollection {
	c := transforms.NewTransformErrorCollection()
	for _, pf := range r.Failed() {
		c.Add(pf.SourcePath, "pipeline", pf.Error)
	}
	return c
}

// Warnings returns one message per failed or skipped file and per transform
// warning, each naming the file
func (r *Result) Warnings() []string {
	var out []string
	for _, pf := range r.Files {
		name := filepath.Base(pf.SourcePath)
		switch pf.Status {
		case transforms.StatusFailed:
			out = append(out, fmt.Sprintf("%s: not sanitized: %v", name, pf.Error))
		case transforms.StatusSkipped:
			out = append(out, fmt.Sprintf("%s: skipped: %s", name, pf.Reason))
		case transforms.StatusSucceeded:
			if pf.Result != nil {
				for _, w := range pf.Result.Warnings {
					out = append(out, fmt.Sprintf("%s: %s", name, w))
				}
			}
		}
	}
	return out
}

// Totals summarizes the run
type Totals struct {
	Files           int `json:"files" yaml:"files"`
	Succeeded       int `json:"succeeded" yaml:"succeeded"`
	Skipped         int `json:"skipped" yaml:"skipped"`
	Failed          int `json:"failed" yaml:"failed"`
	IPsMasked       int `json:"ips_masked" yaml:"ips_masked"`
	HostnamesMasked int `json:"hostnames_masked" yaml:"hostnames_masked"`
	PagesStamped    int `json:"pages_stamped" yaml:"pages_stamped"`
	MetadataDropped int `json:"metadata_fields_dropped" yaml:"metadata_fields_dropped"`
}

// Totals adds up the per-file counters
func (r *Result) Totals() Totals {
	t := Totals{Files: len(r.Files)}
	for _, pf := range r.Files {
		switch pf.Status {
		case transforms.StatusSucceeded:
			t.Succeeded++
		case transforms.StatusSkipped:
			t.Skipped++
		case transforms.StatusFailed:
			t.Failed++
		}
		if pf.Result == nil {
			continue
		}
		t.IPsMasked += pf.Result.IPsMasked
		t.HostnamesMasked += pf.Result.HostnamesMasked
		t.PagesStamped += pf.Result.PageCount
		t.MetadataDropped += pf.Result.MetadataFieldsDropped
	}
	return t
}
