// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"ferret-seal/internal/observability"
	"ferret-seal/internal/security"
	"ferret-seal/internal/transforms"
)

// EncryptionSettings selects the PDF security handler
type EncryptionSettings struct {
	// Method is "aes" or "rc4"
	Method string

	// KeyLength is 128 or 256 for aes, 40 or 128 for rc4
	KeyLength int
}

// DefaultEncryptionSettings returns AES-128 (security handler revision 4)
func DefaultEncryptionSettings() EncryptionSettings {
	return EncryptionSettings{Method: "aes", KeyLength: 128}
}

// Validate checks the method and key length combination
func (es EncryptionSettings) Validate() error {
	switch strings.ToLower(es.Method) {
	case "aes":
		if es.KeyLength != 128 && es.KeyLength != 256 {
			return fmt.Errorf("aes key length must be 128 or 256, got %d", es.KeyLength)
		}
	case "rc4":
		if es.KeyLength != 40 && es.KeyLength != 128 {
			return fmt.Errorf("rc4 key length must be 40 or 128, got %d", es.KeyLength)
		}
	default:
		return fmt.Errorf("unknown encryption method %q (use aes or rc4)", es.Method)
	}
	return nil
}

func (es EncryptionSettings) configuration(userPW, ownerPW string) *model.Configuration {
	if strings.EqualFold(es.Method, "rc4") {
		return model.NewRC4Configuration(userPW, ownerPW, es.KeyLength)
	}
	return model.NewAESConfiguration(userPW, ownerPW, es.KeyLength)
}

// PDFTransformer stamps the run's watermark overlay onto every page and
// encrypts the result with the run password
type PDFTransformer struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver

	overlay    *Overlay
	password   *security.SecureString
	encryption EncryptionSettings

	// auditIdentifiers enables the unmasked identifier check on source text
	auditIdentifiers bool
}

// NewPDFTransformer creates a new PDFTransformer. The password is used for
// both the user and owner entries.
func NewPDFTransformer(overlay *Overlay, password *security.SecureString, encryption EncryptionSettings, observer *observability.StandardObserver) (*PDFTransformer, error) {
	if overlay == nil {
		return nil, fmt.Errorf("watermark overlay is required")
	}
	if password.IsEmpty() {
		return nil, fmt.Errorf("document password cannot be empty")
	}
	if err := encryption.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = observability.NewStandardObserver(observability.ObservabilityMetrics, nil)
	}

	return &PDFTransformer{
		observer:   observer,
		overlay:    overlay,
		password:   password,
		encryption: encryption,
	}, nil
}

// SetAuditIdentifiers enables reporting of IPs and hostnames left in document text
func (pt *PDFTransformer) SetAuditIdentifiers(enabled bool) {
	pt.auditIdentifiers = enabled
}

// GetName returns the name of the transformer
func (pt *PDFTransformer) GetName() string {
	return "pdf_transformer"
}

// GetKind returns transforms.KindDocument
func (pt *PDFTransformer) GetKind() transforms.Kind {
	return transforms.KindDocument
}

// GetSupportedTypes returns the file types this transformer can handle
func (pt *PDFTransformer) GetSupportedTypes() []string {
	return []string{".pdf"}
}

// GetComponentName returns the component name for observability
func (pt *PDFTransformer) GetComponentName() string {
	return "pdf_transformer"
}

// Transform runs the overlay stage and then the encryption stage. Both write
// to staged temporary files next to the final output; the final file appears
// only after both succeed, and no temporary survives a failure.
func (pt *PDFTransformer) Transform(ctx context.Context, sourcePath, outputDir string) (*transforms.Result, error) {
	finishTiming := pt.observer.StartTiming(pt.GetComponentName(), "transform", sourcePath)
	startTime := time.Now()

	if err := ctx.Err(); err != nil {
		finishTiming(false, nil)
		return nil, err
	}

	outputPath := transforms.OutputPath(outputDir, sourcePath)
	staged := transforms.NewStagedFile(outputPath)
	defer staged.Cleanup()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(sourcePath)
	if err != nil {
		finishTiming(false, nil)
		return nil, transforms.NewTransformError(transforms.ErrorDecode,
			"failed to read PDF", sourcePath, pt.GetComponentName(), err)
	}
	pageCount := pdfCtx.PageCount

	stageInput := sourcePath
	if pageCount > 0 {
		overlaid, err := pt.applyOverlay(sourcePath, staged, conf)
		if err != nil {
			finishTiming(false, map[string]interface{}{"stage": "overlay"})
			return nil, err
		}
		stageInput = overlaid
	}

	if err := ctx.Err(); err != nil {
		finishTiming(false, map[string]interface{}{"stage": "overlay"})
		return nil, err
	}

	encrypted, err := pt.applyEncryption(stageInput, sourcePath, staged)
	if err != nil {
		finishTiming(false, map[string]interface{}{"stage": "encrypt"})
		return nil, err
	}

	if err := staged.Commit(encrypted); err != nil {
		finishTiming(false, map[string]interface{}{"stage": "commit"})
		return nil, transforms.NewTransformError(transforms.ErrorFileSystem,
			"failed to write encrypted PDF", sourcePath, pt.GetComponentName(), err)
	}

	result := &transforms.Result{
		OutputPath: outputPath,
		PageCount:  pageCount,
	}

	if pt.auditIdentifiers {
		findings, err := AuditIdentifiers(sourcePath)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("identifier audit skipped: %v", err))
		} else {
			result.Warnings = append(result.Warnings, auditWarnings(findings)...)
		}
	}

	result.ProcessingTime = time.Since(startTime)
	finishTiming(true, map[string]interface{}{
		"output_path": outputPath,
		"pages":       pageCount,
		"encryption":  fmt.Sprintf("%s-%d", pt.encryption.Method, pt.encryption.KeyLength),
	})
	return result, nil
}

func (pt *PDFTransformer) applyOverlay(sourcePath string, staged *transforms.StagedFile, conf *model.Configuration) (string, error) {
	overlayPath, err := staged.TempPath("overlay")
	if err != nil {
		return "", transforms.NewTransformError(transforms.ErrorFileSystem,
			"failed to stage watermark output", sourcePath, pt.GetComponentName(), err)
	}

	wm, err := pt.overlay.watermark()
	if err != nil {
		return "", transforms.NewTransformError(transforms.ErrorDocumentProcessing,
			"failed to prepare watermark", sourcePath, pt.GetComponentName(), err)
	}

	if err := api.AddWatermarksFile(sourcePath, overlayPath, nil, wm, conf); err != nil {
		return "", transforms.NewTransformError(transforms.ErrorDocumentProcessing,
			"failed to apply watermark", sourcePath, pt.GetComponentName(), err)
	}
	return overlayPath, nil
}

func (pt *PDFTransformer) applyEncryption(inputPath, sourcePath string, staged *transforms.StagedFile) (string, error) {
	encryptedPath, err := staged.TempPath("encrypt")
	if err != nil {
		return "", transforms.NewTransformError(transforms.ErrorFileSystem,
			"failed to stage encrypted output", sourcePath, pt.GetComponentName(), err)
	}

	conf := pt.encryption.configuration(pt.password.String(), pt.password.String())
	if err := api.EncryptFile(inputPath, encryptedPath, conf); err != nil {
		return "", transforms.NewTransformError(transforms.ErrorEncryption,
			"failed to encrypt PDF", sourcePath, pt.GetComponentName(), err)
	}
	return encryptedPath, nil
}
