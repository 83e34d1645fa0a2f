// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// DefaultOverlayDescription draws 36pt grey Helvetica at 30% opacity,
// 100pt from the left edge and 500pt up from the bottom of every page
const DefaultOverlayDescription = "fontname:Helvetica, points:36, position:bl, offset:100 500, scalefactor:1 abs, rotation:0, fillcolor:0.6 0.6 0.6, opacity:0.3"

// Overlay is the watermark layer stamped onto every page. It is built and
// validated once per run and never modified afterwards, so one Overlay can
// serve concurrent transforms.
type Overlay struct {
	text        string
	description string
}

// NewOverlay validates text and a pdfcpu watermark description.
// An empty description selects DefaultOverlayDescription.
func NewOverlay(text, description string) (*Overlay, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("watermark text cannot be empty")
	}
	if strings.TrimSpace(description) == "" {
		description = DefaultOverlayDescription
	}

	o := &Overlay{text: text, description: description}
	if _, err := o.watermark(); err != nil {
		return nil, fmt.Errorf("invalid watermark description %q: %w", description, err)
	}
	return o, nil
}

// Text returns the watermark text
func (o *Overlay) Text() string {
	return o.text
}

// Description returns the pdfcpu watermark description
func (o *Overlay) Description() string {
	return o.description
}

// watermark returns a fresh pdfcpu watermark. pdfcpu records per-document
// state (fonts, object numbers) on the watermark while stamping, so each
// document gets its own instance built from the immutable Overlay.
func (o *Overlay) watermark() (*model.Watermark, error) {
	// onTop renders it as a stamp above existing page content
	return api.TextWatermark(o.text, o.description, true, false, types.POINTS)
}
