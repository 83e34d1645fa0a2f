// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ferret-seal/internal/observability"
	"ferret-seal/internal/transforms"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ImageFormat represents the type of image format
type ImageFormat int

const (
	// FormatUnknown represents an unknown image format
	FormatUnknown ImageFormat = iota
	// FormatJPEG represents a JPEG image
	FormatJPEG
	// FormatPNG represents a PNG image
	FormatPNG
)

// String returns the string representation of the image format
func (f ImageFormat) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	default:
		return "unknown"
	}
}

const (
	// DefaultFontPath is tried first; a missing file falls back to the built-in face
	DefaultFontPath = "arial.ttf"

	// DefaultFontSize is the preferred point size at 72 DPI
	DefaultFontSize = 36

	// DefaultMaxPixels bounds decoded image size
	DefaultMaxPixels = 100_000_000

	jpegQuality = 95
)

// WatermarkStyle controls how the watermark text is rasterized
type WatermarkStyle struct {
	Text     string
	FontPath string
	FontSize float64
	Origin   image.Point
	Color    color.RGBA
}

// DefaultWatermarkStyle returns red CONFIDENTIAL text 10px from the top-left corner
func DefaultWatermarkStyle() WatermarkStyle {
	return WatermarkStyle{
		Text:     "CONFIDENTIAL",
		FontPath: DefaultFontPath,
		FontSize: DefaultFontSize,
		Origin:   image.Pt(10, 10),
		Color:    color.RGBA{R: 255, A: 255},
	}
}

// ImageTransformer draws watermark text onto JPEG and PNG images
type ImageTransformer struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver

	style     WatermarkStyle
	maxPixels int

	// parsed font shared by all faces; faces themselves are per call
	fontOnce sync.Once
	font     *opentype.Font
	fontErr  error
}

// NewImageTransformer creates a new ImageTransformer
func NewImageTransformer(style WatermarkStyle, observer *observability.StandardObserver) *ImageTransformer {
	if observer == nil {
		observer = observability.NewStandardObserver(observability.ObservabilityMetrics, nil)
	}
	defaults := DefaultWatermarkStyle()
	if style.Text == "" {
		style.Text = defaults.Text
	}
	if style.FontSize <= 0 {
		style.FontSize = defaults.FontSize
	}
	if style.Color == (color.RGBA{}) {
		style.Color = defaults.Color
	}

	return &ImageTransformer{
		observer:  observer,
		style:     style,
		maxPixels: DefaultMaxPixels,
	}
}

// SetMaxPixels bounds the decoded width*height; non-positive values keep the default
func (it *ImageTransformer) SetMaxPixels(n int) {
	if n > 0 {
		it.maxPixels = n
	}
}

// GetName returns the name of the transformer
func (it *ImageTransformer) GetName() string {
	return "image_transformer"
}

// GetKind returns transforms.KindImage
func (it *ImageTransformer) GetKind() transforms.Kind {
	return transforms.KindImage
}

// GetSupportedTypes returns the file types this transformer can handle
func (it *ImageTransformer) GetSupportedTypes() []string {
	return []string{".jpg", ".jpeg", ".png"}
}

// GetComponentName returns the component name for observability
func (it *ImageTransformer) GetComponentName() string {
	return "image_transformer"
}

// Transform decodes sourcePath, draws the watermark and writes the re-encoded
// image into outputDir. Metadata in the source is not carried over.
func (it *ImageTransformer) Transform(ctx context.Context, sourcePath, outputDir string) (*transforms.Result, error) {
	finishTiming := it.observer.StartTiming(it.GetComponentName(), "transform", sourcePath)
	startTime := time.Now()

	result, err := it.transform(ctx, sourcePath, outputDir)
	if err != nil {
		finishTiming(false, nil)
		return nil, err
	}

	result.ProcessingTime = time.Since(startTime)
	finishTiming(true, map[string]interface{}{
		"output_path":     result.OutputPath,
		"metadata_fields": result.MetadataFieldsDropped,
	})
	return result, nil
}

func (it *ImageTransformer) transform(ctx context.Context, sourcePath, outputDir string) (*transforms.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, transforms.NewTransformError(transforms.ErrorFileSystem,
			"failed to read image", sourcePath, it.GetComponentName(), err)
	}

	format := detectImageFormat(sourcePath, data)
	if format == FormatUnknown {
		return nil, transforms.NewTransformError(transforms.ErrorDecode,
			"unrecognized image format", sourcePath, it.GetComponentName(), nil)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, transforms.NewTransformError(transforms.ErrorDecode,
			"failed to decode image header", sourcePath, it.GetComponentName(), err)
	}
	if cfg.Width*cfg.Height > it.maxPixels {
		return nil, transforms.NewTransformError(transforms.ErrorDecode,
			fmt.Sprintf("image is %dx%d, above the %d pixel limit", cfg.Width, cfg.Height, it.maxPixels),
			sourcePath, it.GetComponentName(), nil)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, transforms.NewTransformError(transforms.ErrorDecode,
			"failed to decode image", sourcePath, it.GetComponentName(), err)
	}

	var warnings []string
	face, fontWarning := it.newFace()
	if fontWarning != "" {
		warnings = append(warnings, fontWarning)
	}
	defer face.Close()

	canvas := toRGBA(src)
	it.drawWatermark(canvas, face)

	outputPath := transforms.OutputPath(outputDir, sourcePath)
	if err := writeImage(outputPath, canvas, format); err != nil {
		return nil, transforms.NewTransformError(transforms.ErrorFileSystem,
			"failed to write watermarked image", sourcePath, it.GetComponentName(), err)
	}

	return &transforms.Result{
		OutputPath:            outputPath,
		MetadataFieldsDropped: countEXIFFields(data),
		Warnings:              warnings,
	}, nil
}

// newFace returns a face for the configured font, or the built-in face with a warning
func (it *ImageTransformer) newFace() (font.Face, string) {
	it.fontOnce.Do(func() {
		if it.style.FontPath == "" {
			it.fontErr = fmt.Errorf("no font configured")
			return
		}
		raw, err := os.ReadFile(it.style.FontPath)
		if err != nil {
			it.fontErr = err
			return
		}
		it.font, it.fontErr = opentype.Parse(raw)
	})

	if it.fontErr == nil {
		face, err := opentype.NewFace(it.font, &opentype.FaceOptions{
			Size:    it.style.FontSize,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			return face, ""
		}
		return basicfont.Face7x13, fmt.Sprintf("font %s unusable, using built-in font: %v", it.style.FontPath, err)
	}
	return basicfont.Face7x13, fmt.Sprintf("font %q unavailable, using built-in font: %v", it.style.FontPath, it.fontErr)
}

// drawWatermark renders the text with its top-left corner at the style origin
func (it *ImageTransformer) drawWatermark(dst *image.RGBA, face font.Face) {
	origin := dst.Bounds().Min.Add(it.style.Origin)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(it.style.Color),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(origin.X),
			Y: fixed.I(origin.Y) + face.Metrics().Ascent,
		},
	}
	d.DrawString(it.style.Text)
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}

func writeImage(outputPath string, img image.Image, format ImageFormat) error {
	staged := transforms.NewStagedFile(outputPath)
	defer staged.Cleanup()

	f, err := staged.Create("encode")
	if err != nil {
		return err
	}

	switch format {
	case FormatJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
	case FormatPNG:
		err = png.Encode(f, img)
	default:
		err = fmt.Errorf("unsupported output format %s", format)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return staged.Commit(f.Name())
}

// detectImageFormat checks the extension first and falls back to magic bytes
func detectImageFormat(filePath string, header []byte) ImageFormat {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	}

	if bytes.HasPrefix(header, []byte{0xFF, 0xD8, 0xFF}) {
		return FormatJPEG
	}
	if bytes.HasPrefix(header, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return FormatPNG
	}
	return FormatUnknown
}

// countEXIFFields returns the number of EXIF fields in data; images without EXIF yield 0
func countEXIFFields(data []byte) int {
	// Decode may return partial data alongside a non-critical error
	x, _ := exif.Decode(bytes.NewReader(data))
	if x == nil {
		return 0
	}
	w := &exifCounter{}
	if err := x.Walk(w); err != nil {
		return 0
	}
	return w.count
}

// exifCounter implements exif.Walker
type exifCounter struct {
	count int
}

func (w *exifCounter) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag != nil {
		w.count++
	}
	return nil
}
