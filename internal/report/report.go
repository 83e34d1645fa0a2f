// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"ferret-seal/internal/pipeline"
	"ferret-seal/internal/transforms"
)

// Options controls what a formatter renders
type Options struct {
	NoColor bool // Whether to disable colored output

	// IncludeMappings adds the original-to-token table for masked text files.
	// The table contains the unmasked identifiers, so it is off by default.
	IncludeMappings bool
}

// Formatter renders a run summary in one output format
type Formatter interface {
	// Format renders the document
	Format(doc *Document, options Options) (string, error)

	// Name returns the name of the formatter (e.g., "json", "text")
	Name() string

	// Description returns a brief description of what this formatter outputs
	Description() string

	// FileExtension returns the recommended file extension for this format
	FileExtension() string
}

// Registry holds all registered formatters
type Registry struct {
	formatters map[string]Formatter
}

// NewRegistry creates a new formatter registry
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
	}
}

// Register adds a formatter to the registry
func (r *Registry) Register(formatter Formatter) {
	r.formatters[formatter.Name()] = formatter
}

// Get retrieves a formatter by name
func (r *Registry) Get(name string) (Formatter, bool) {
	formatter, exists := r.formatters[name]
	return formatter, exists
}

// List returns all registered formatter names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry holds the built-in formatters
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(NewTextFormatter())
	DefaultRegistry.Register(NewJSONFormatter())
	DefaultRegistry.Register(NewYAMLFormatter())
	DefaultRegistry.Register(NewMarkdownFormatter())
}

// Formats lists the names accepted by Export
func Formats() []string {
	return DefaultRegistry.List()
}

// Export renders res in the named format
func Export(format string, res *pipeline.Result, options Options) (string, error) {
	formatter, exists := DefaultRegistry.Get(format)
	if !exists {
		return "", fmt.Errorf("unsupported format '%s'. Available formats: %s", format, strings.Join(Formats(), ", "))
	}
	return formatter.Format(NewDocument(res, options), options)
}

// Write renders res and writes it to w with a trailing newline
func Write(w io.Writer, format string, res *pipeline.Result, options Options) error {
	out, err := Export(format, res, options)
	if err != nil {
		return err
	}
	if out == "" || !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err = io.WriteString(w, out)
	return err
}

// Document is the serializable view of a run
type Document struct {
	InputDir    string          `json:"input_dir" yaml:"input_dir"`
	OutputDir   string          `json:"output_dir" yaml:"output_dir"`
	Archive     string          `json:"archive" yaml:"archive"`
	ArchiveSize int64           `json:"archive_size" yaml:"archive_size"`
	Verified    bool            `json:"verified" yaml:"verified"`
	UploadURI   string          `json:"upload_uri,omitempty" yaml:"upload_uri,omitempty"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	Duration    string          `json:"duration" yaml:"duration"`
	Totals      pipeline.Totals `json:"totals" yaml:"totals"`
	Files       []FileEntry     `json:"files" yaml:"files"`
	Warnings    []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// FileEntry is one input directory entry
type FileEntry struct {
	Name            string            `json:"name" yaml:"name"`
	Kind            string            `json:"kind" yaml:"kind"`
	Status          string            `json:"status" yaml:"status"`
	Reason          string            `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error           string            `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorType       string            `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Output          string            `json:"output,omitempty" yaml:"output,omitempty"`
	IPsMasked       int               `json:"ips_masked,omitempty" yaml:"ips_masked,omitempty"`
	HostnamesMasked int               `json:"hostnames_masked,omitempty" yaml:"hostnames_masked,omitempty"`
	Pages           int               `json:"pages,omitempty" yaml:"pages,omitempty"`
	MetadataDropped int               `json:"metadata_fields_dropped,omitempty" yaml:"metadata_fields_dropped,omitempty"`
	Mappings        map[string]string `json:"mappings,omitempty" yaml:"mappings,omitempty"`
}

// NewDocument flattens a pipeline result. Mappings are copied only when
// options.IncludeMappings is set.
func NewDocument(res *pipeline.Result, options Options) *Document {
	doc := &Document{
		InputDir:    res.InputDir,
		OutputDir:   res.OutputDir,
		Archive:     res.ArchivePath,
		ArchiveSize: res.ArchiveSize,
		Verified:    res.Verified,
		UploadURI:   res.UploadURI,
		StartedAt:   res.StartedAt,
		Duration:    res.Duration.Round(time.Millisecond).String(),
		Totals:      res.Totals(),
		Files:       make([]FileEntry, 0, len(res.Files)),
		Warnings:    res.Warnings(),
	}

	for _, pf := range res.Files {
		entry := FileEntry{
			Name:   filepath.Base(pf.SourcePath),
			Kind:   pf.Kind.String(),
			Status: string(pf.Status),
			Reason: pf.Reason,
		}
		if pf.Error != nil {
			entry.Error = pf.Error.Error()
			if kind, ok := transforms.ErrorTypeOf(pf.Error); ok {
				entry.ErrorType = kind.String()
			}
		}
		if pf.OutputPath != "" {
			entry.Output = filepath.Base(pf.OutputPath)
		}
		if r := pf.Result; r != nil {
			entry.IPsMasked = r.IPsMasked
			entry.HostnamesMasked = r.HostnamesMasked
			entry.Pages = r.PageCount
			entry.MetadataDropped = r.MetadataFieldsDropped
			if options.IncludeMappings && len(r.Mappings) > 0 {
				entry.Mappings = r.Mappings
			}
		}
		doc.Files = append(doc.Files, entry)
	}
	return doc
}

// sortedKeys returns the mapping keys ordered by token so MASKED_IP.2 follows MASKED_IP.1
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ta, tb := m[a], m[b]
		if len(ta) != len(tb) {
			return len(ta) - len(tb)
		}
		return strings.Compare(ta, tb)
	})
	return keys
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
