// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plaintext

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"ferret-seal/internal/masking"
	"ferret-seal/internal/observability"
	"ferret-seal/internal/transforms"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultWatermarkText is stamped when no text is configured
const DefaultWatermarkText = "CONFIDENTIAL"

// watermarkMarker precedes the watermark text appended to every output
const watermarkMarker = "\n\n# WATERMARK: "

// TextTransformer masks network identifiers in text files and appends a watermark line
type TextTransformer struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver

	// watermarkText is appended after the marker
	watermarkText string

	// sourceEncoding decodes legacy encodings; nil means UTF-8
	sourceEncoding encoding.Encoding
}

// NewTextTransformer creates a new TextTransformer
func NewTextTransformer(watermarkText string, observer *observability.StandardObserver) *TextTransformer {
	if observer == nil {
		observer = observability.NewStandardObserver(observability.ObservabilityMetrics, nil)
	}
	if watermarkText == "" {
		watermarkText = DefaultWatermarkText
	}

	return &TextTransformer{
		observer:      observer,
		watermarkText: watermarkText,
	}
}

// SetSourceEncoding selects the IANA charset used to decode sources (e.g. "windows-1252")
func (tt *TextTransformer) SetSourceEncoding(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		tt.sourceEncoding = nil
		return nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return fmt.Errorf("unknown text encoding %q: %w", name, err)
	}
	if enc == nil {
		return fmt.Errorf("text encoding %q is not supported", name)
	}
	if canonical, err := ianaindex.IANA.Name(enc); err == nil && strings.EqualFold(canonical, "UTF-8") {
		enc = nil
	}
	tt.sourceEncoding = enc
	return nil
}

// GetName returns the name of the transformer
func (tt *TextTransformer) GetName() string {
	return "text_transformer"
}

// GetKind returns transforms.KindText
func (tt *TextTransformer) GetKind() transforms.Kind {
	return transforms.KindText
}

// GetSupportedTypes returns the file types this transformer can handle
func (tt *TextTransformer) GetSupportedTypes() []string {
	return []string{".txt", ".log", ".xml"}
}

// GetComponentName returns the component name for observability
func (tt *TextTransformer) GetComponentName() string {
	return "text_transformer"
}

// Transform writes a masked, watermarked copy of sourcePath into outputDir.
// Read and decode problems never fail the transform; only a failed write does.
func (tt *TextTransformer) Transform(ctx context.Context, sourcePath, outputDir string) (*transforms.Result, error) {
	finishTiming := tt.observer.StartTiming(tt.GetComponentName(), "transform", sourcePath)
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		finishTiming(false, nil)
		return nil, err
	}

	content, warnings := tt.readText(sourcePath)

	session := masking.NewSession()
	masked := session.Mask(content)
	ips, hosts := session.Counts()
	ipMap, hostMap := session.Mappings()
	maps.Copy(ipMap, hostMap)

	outputPath := transforms.OutputPath(outputDir, sourcePath)
	if err := transforms.WriteFileAtomic(outputPath, []byte(masked+watermarkMarker+tt.watermarkText)); err != nil {
		finishTiming(false, map[string]interface{}{"output_path": outputPath})
		return nil, transforms.NewTransformError(transforms.ErrorFileSystem,
			"failed to write masked text", sourcePath, tt.GetComponentName(), err)
	}

	finishTiming(true, map[string]interface{}{
		"output_path":      outputPath,
		"ips_masked":       ips,
		"hostnames_masked": hosts,
	})

	return &transforms.Result{
		OutputPath:      outputPath,
		IPsMasked:       ips,
		HostnamesMasked: hosts,
		Mappings:        ipMap,
		Warnings:        warnings,
		ProcessingTime:  time.Since(startTime),
	}, nil
}

// readText returns whatever text could be decoded from path along with
// warnings describing what was lost
func (tt *TextTransformer) readText(path string) (string, []string) {
	var warnings []string

	data, err := readAllTolerant(path)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("source read incomplete, %d bytes kept: %v", len(data), err))
	}

	if tt.sourceEncoding != nil {
		decoded, err := tt.sourceEncoding.NewDecoder().Bytes(data)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("decoding failed, falling back to UTF-8: %v", err))
		} else {
			data = decoded
		}
	}

	if !utf8.Valid(data) {
		warnings = append(warnings, "invalid UTF-8 sequences dropped")
		return strings.ToValidUTF8(string(data), ""), warnings
	}
	return string(data), warnings
}

// readAllTolerant reads path and returns the bytes read before any error
func readAllTolerant(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
