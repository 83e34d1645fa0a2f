// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Kind identifies which transform handles a file
type Kind int

const (
	// KindUnknown marks files no transform accepts
	KindUnknown Kind = iota

	// KindText covers plain text files that get identifier masking
	KindText

	// KindDocument covers PDF documents that get a watermark layer and encryption
	KindDocument

	// KindImage covers raster images that get watermark text drawn onto the pixels
	KindImage
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDocument:
		return "document"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// MarshalText lets reports encode kinds by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

var extensionKinds = map[string]Kind{
	".txt":  KindText,
	".log":  KindText,
	".xml":  KindText,
	".pdf":  KindDocument,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
}

// ClassifyPath maps a file path to a Kind using its lower-cased extension
func ClassifyPath(path string) Kind {
	return ClassifyExtension(filepath.Ext(path))
}

// ClassifyExtension maps an extension (with or without the leading dot) to a Kind
func ClassifyExtension(ext string) Kind {
	ext = NormalizeExtension(ext)
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	return KindUnknown
}

// NormalizeExtension lower-cases ext and ensures it starts with a dot
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Transformer is implemented by every per-format transform
type Transformer interface {
	// GetName returns the name of the transformer
	GetName() string

	// GetKind returns the kind of file this transformer handles
	GetKind() Kind

	// GetSupportedTypes returns the file extensions this transformer handles
	GetSupportedTypes() []string

	// Transform writes the sanitized copy of sourcePath into outputDir
	Transform(ctx context.Context, sourcePath, outputDir string) (*Result, error)

	// GetComponentName returns the component name for observability
	GetComponentName() string
}

// Result describes a successful transform
type Result struct {
	// OutputPath is where the sanitized copy was written
	OutputPath string

	// IPsMasked is the number of distinct IP addresses replaced (text only)
	IPsMasked int

	// HostnamesMasked is the number of distinct hostnames replaced (text only)
	HostnamesMasked int

	// Mappings maps each original identifier to its token (text only)
	Mappings map[string]string

	// PageCount is the number of pages watermarked (documents only)
	PageCount int

	// MetadataFieldsDropped is the number of EXIF fields not carried into the output (images only)
	MetadataFieldsDropped int

	// Warnings are non-fatal findings worth surfacing in the run report
	Warnings []string

	// ProcessingTime is the time the transform took
	ProcessingTime time.Duration
}

// Status is the outcome of one directory entry
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// ProcessedFile is the record kept for every entry of the input directory
type ProcessedFile struct {
	// SourcePath is the path of the input entry
	SourcePath string

	// OutputPath is the sanitized copy; empty unless Status is StatusSucceeded
	OutputPath string

	// Kind is the classification of the entry
	Kind Kind

	// Status is the outcome
	Status Status

	// Reason explains a skip
	Reason string

	// Error is the failure cause when Status is StatusFailed
	Error error

	// Result carries transform details for succeeded files
	Result *Result
}

// Succeeded reports whether the file produced an output destined for the archive
func (pf ProcessedFile) Succeeded() bool {
	return pf.Status == StatusSucceeded
}
