// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"image"
	"path/filepath"
	"sort"

	"ferret-seal/internal/config"
	"ferret-seal/internal/observability"
	"ferret-seal/internal/security"
	"ferret-seal/internal/transforms"
	imagetransform "ferret-seal/internal/transforms/image"
	"ferret-seal/internal/transforms/pdf"
	"ferret-seal/internal/transforms/plaintext"
)

// Registry maps lower-cased file extensions to the transformer that handles them
type Registry struct {
	transformers map[string]transforms.Transformer
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		transformers: make(map[string]transforms.Transformer),
	}
}

// Register adds t for every extension it supports. A later registration for
// the same extension replaces the earlier one.
func (r *Registry) Register(t transforms.Transformer) {
	for _, ext := range t.GetSupportedTypes() {
		r.transformers[transforms.NormalizeExtension(ext)] = t
	}
}

// Lookup returns the transformer for path's extension
func (r *Registry) Lookup(path string) (transforms.Transformer, bool) {
	t, ok := r.transformers[transforms.NormalizeExtension(filepath.Ext(path))]
	return t, ok
}

// SupportedExtensions returns every registered extension, sorted
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.transformers))
	for ext := range r.transformers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// NewRegistryFromConfig builds the text, document and image transformers for
// one run. The PDF overlay is validated here, so a bad watermark description
// fails before any file is touched.
func NewRegistryFromConfig(cfg *config.Config, password *security.SecureString, observer *observability.StandardObserver) (*Registry, error) {
	text := plaintext.NewTextTransformer(cfg.Watermark.Text, observer)
	if err := text.SetSourceEncoding(cfg.Text.Encoding); err != nil {
		return nil, setupError("invalid text configuration", "", err)
	}

	overlay, err := pdf.NewOverlay(cfg.Watermark.Text, cfg.PDF.Overlay)
	if err != nil {
		return nil, setupError("failed to build watermark overlay", "", err)
	}
	doc, err := pdf.NewPDFTransformer(overlay, password, pdf.EncryptionSettings{
		Method:    cfg.PDF.Encryption,
		KeyLength: cfg.PDF.KeyLength,
	}, observer)
	if err != nil {
		return nil, setupError("invalid document configuration", "", err)
	}
	doc.SetAuditIdentifiers(cfg.PDF.AuditIdentifiers)

	rgba, err := cfg.Image.RGBA()
	if err != nil {
		return nil, setupError("invalid image configuration", "", err)
	}
	img := imagetransform.NewImageTransformer(imagetransform.WatermarkStyle{
		Text:     cfg.Watermark.Text,
		FontPath: cfg.Image.Font,
		FontSize: cfg.Image.FontSize,
		Origin:   image.Pt(cfg.Image.OffsetX, cfg.Image.OffsetY),
		Color:    rgba,
	}, observer)
	img.SetMaxPixels(cfg.Image.MaxPixels)

	r := NewRegistry()
	r.Register(text)
	r.Register(doc)
	r.Register(img)
	return r, nil
}

func setupError(message, path string, cause error) error {
	return transforms.NewTransformError(transforms.ErrorSetup, message, path, "pipeline", cause)
}
