// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline sanitizes every file of a flat input directory and packs
// the results into one encrypted archive.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"ferret-seal/internal/archive"
	"ferret-seal/internal/metrics"
	"ferret-seal/internal/observability"
	"ferret-seal/internal/paths"
	"ferret-seal/internal/resilience"
	"ferret-seal/internal/security"
	"ferret-seal/internal/storage"
	"ferret-seal/internal/transforms"
)

// Pipeline runs the per-file transforms and the archive step
type Pipeline struct {
	registry *Registry
	password *security.SecureString

	logger   *slog.Logger
	observer *observability.StandardObserver
	recorder *metrics.Recorder

	workers     int
	archiveName string
	verify      bool

	target *storage.Target
	store  storage.ObjectStore
	retry  resilience.RetryConfig
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the run logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver sets the observer used for run-level timing
func WithObserver(observer *observability.StandardObserver) Option {
	return func(p *Pipeline) {
		if observer != nil {
			p.observer = observer
		}
	}
}

// WithWorkers sets how many files are transformed at once. Default is 1.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithArchiveName sets the archive file name inside the output directory
func WithArchiveName(name string) Option {
	return func(p *Pipeline) {
		if name != "" {
			p.archiveName = name
		}
	}
}

// WithVerify re-opens the finished archive and decrypts every member. With a
// distribution target the uploaded copy is also read back and its size checked.
func WithVerify(verify bool) Option {
	return func(p *Pipeline) {
		p.verify = verify
	}
}

// WithRecorder records run metrics
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithDistribution uploads the archive to target through store after it is built
func WithDistribution(target storage.Target, store storage.ObjectStore, retry resilience.RetryConfig) Option {
	return func(p *Pipeline) {
		p.target = &target
		p.store = store
		p.retry = retry
	}
}

// New creates a pipeline. The password protects the archive.
func New(registry *Registry, password *security.SecureString, opts ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, setupError("transform registry is required", "", nil)
	}
	if password.IsEmpty() {
		return nil, setupError("archive password cannot be empty", "", nil)
	}

	p := &Pipeline{
		registry:    registry,
		password:    password,
		logger:      slog.New(slog.DiscardHandler),
		workers:     1,
		archiveName: archive.DefaultName,
		retry:       resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.observer == nil {
		p.observer = observability.NewStandardObserver(observability.ObservabilityMetrics, p.logger)
	}
	if p.target != nil && p.store == nil {
		return nil, setupError("distribution target has no object store", "", nil)
	}
	return p, nil
}

// Run sanitizes every regular file directly inside inputDir into outputDir
// and packs the outputs into the archive. Per-file failures are recorded in
// the result; only setup, archive, upload and cancellation errors are returned.
// The result is non-nil whenever enumeration succeeded.
func (p *Pipeline) Run(ctx context.Context, inputDir, outputDir string) (*Result, error) {
	finishTiming := p.observer.StartTiming("pipeline", "run", inputDir)
	result := &Result{
		InputDir:  inputDir,
		OutputDir: outputDir,
		StartedAt: time.Now(),
	}

	entries, err := p.prepare(inputDir, outputDir)
	if err != nil {
		finishTiming(false, nil)
		return nil, err
	}

	p.logger.Info("processing directory", "input", inputDir, "output", outputDir, "entries", len(entries), "workers", p.workers)

	result.Files = make([]transforms.ProcessedFile, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Files[i] = p.processEntry(gctx, inputDir, outputDir, entry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.Duration = time.Since(result.StartedAt)
		finishTiming(false, nil)
		return result, err
	}
	// cancellation after the last file still stops the run before packing
	if err := ctx.Err(); err != nil {
		result.Duration = time.Since(result.StartedAt)
		finishTiming(false, nil)
		return result, err
	}

	for _, pf := range result.Files {
		if p.recorder != nil {
			p.recorder.RecordFile(pf)
		}
		switch pf.Status {
		case transforms.StatusFailed:
			p.logger.Warn("file not sanitized", "file", pf.SourcePath, "error", pf.Error)
		case transforms.StatusSkipped:
			p.logger.Debug("file skipped", "file", pf.SourcePath, "reason", pf.Reason)
		}
	}

	if err := p.pack(ctx, result); err != nil {
		result.Duration = time.Since(result.StartedAt)
		finishTiming(false, nil)
		return result, err
	}

	if p.target != nil {
		if err := p.upload(ctx, result); err != nil {
			result.Duration = time.Since(result.StartedAt)
			finishTiming(false, nil)
			return result, err
		}
	}

	result.Duration = time.Since(result.StartedAt)
	finishTiming(true, map[string]interface{}{
		"succeeded": len(result.Succeeded()),
		"skipped":   len(result.Skipped()),
		"failed":    len(result.Failed()),
	})
	p.logger.Info("archive written", "path", result.ArchivePath, "files", len(result.Succeeded()))
	return result, nil
}

// prepare validates the directories, creates the output directory and lists inputDir
func (p *Pipeline) prepare(inputDir, outputDir string) ([]os.DirEntry, error) {
	if inputDir == "" {
		return nil, setupError("input directory is required", "", nil)
	}
	if outputDir == "" {
		return nil, setupError("output directory is required", "", nil)
	}
	for _, dir := range []string{inputDir, outputDir} {
		if err := paths.ValidatePath(dir); err != nil {
			return nil, setupError("invalid directory", dir, err)
		}
	}

	info, err := os.Stat(inputDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, setupError("input directory does not exist", inputDir, err)
		}
		return nil, setupError("cannot access input directory", inputDir, err)
	}
	if !info.IsDir() {
		return nil, setupError("input path is not a directory", inputDir, nil)
	}

	if paths.SamePath(inputDir, outputDir) {
		return nil, setupError("output directory must differ from the input directory", outputDir, nil)
	}

	if err := transforms.EnsureOutputDir(outputDir); err != nil {
		return nil, setupError("cannot create output directory", outputDir, err)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, setupError("cannot list input directory", inputDir, err)
	}
	return entries, nil
}

// processEntry turns one directory entry into its record. It never returns
// an error; failures are captured on the record.
func (p *Pipeline) processEntry(ctx context.Context, inputDir, outputDir string, entry os.DirEntry) transforms.ProcessedFile {
	src := filepath.Join(inputDir, entry.Name())
	pf := transforms.ProcessedFile{
		SourcePath: src,
		Kind:       transforms.ClassifyPath(src),
	}

	if entry.IsDir() {
		pf.Status = transforms.StatusSkipped
		pf.Reason = "subdirectory (not descended)"
		return pf
	}

	info, err := os.Stat(src)
	if err != nil {
		pf.Status = transforms.StatusFailed
		pf.Error = transforms.NewTransformError(transforms.ErrorFileSystem, "cannot stat file", src, "pipeline", err)
		return pf
	}
	if !info.Mode().IsRegular() {
		pf.Status = transforms.StatusSkipped
		if info.IsDir() {
			pf.Reason = "subdirectory (not descended)"
		} else {
			pf.Reason = "not a regular file"
		}
		return pf
	}

	t, ok := p.registry.Lookup(src)
	if !ok {
		pf.Status = transforms.StatusSkipped
		ext := filepath.Ext(src)
		if ext == "" {
			pf.Reason = "no file extension"
		} else {
			pf.Reason = fmt.Sprintf("unsupported file type %s", transforms.NormalizeExtension(ext))
		}
		return pf
	}
	pf.Kind = t.GetKind()

	res, err := p.transform(ctx, t, src, outputDir)
	if err != nil {
		pf.Status = transforms.StatusFailed
		pf.Error = err
		return pf
	}

	pf.Status = transforms.StatusSucceeded
	pf.OutputPath = res.OutputPath
	pf.Result = res
	return pf
}

// transform runs t and turns a panic inside a third-party decoder into a
// per-file error
func (p *Pipeline) transform(ctx context.Context, t transforms.Transformer, src, outputDir string) (res *transforms.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = transforms.NewTransformError(transforms.ErrorDecode,
				fmt.Sprintf("transform panicked: %v", r), src, t.GetComponentName(), nil)
		}
	}()
	return t.Transform(ctx, src, outputDir)
}

func (p *Pipeline) pack(ctx context.Context, result *Result) error {
	archivePath := filepath.Join(result.OutputDir, p.archiveName)

	var files []string
	for _, pf := range result.Files {
		if pf.Succeeded() {
			files = append(files, pf.OutputPath)
		}
	}

	if err := archive.Pack(ctx, files, archivePath, p.password.String()); err != nil {
		var te *transforms.TransformError
		if errors.As(err, &te) || errors.Is(err, context.Canceled) {
			return err
		}
		return transforms.NewTransformError(transforms.ErrorArchive, "failed to create archive", archivePath, "archive", err)
	}
	result.ArchivePath = archivePath

	if info, err := os.Stat(archivePath); err == nil {
		result.ArchiveSize = info.Size()
		if p.recorder != nil {
			p.recorder.RecordArchive(info.Size())
		}
	}

	if p.verify {
		entries, err := archive.Verify(archivePath, p.password.String())
		if err != nil {
			return transforms.NewTransformError(transforms.ErrorArchive, "archive verification failed", archivePath, "archive", err)
		}
		if len(entries) != len(files) {
			return transforms.NewTransformError(transforms.ErrorArchive,
				fmt.Sprintf("archive holds %d entries, expected %d", len(entries), len(files)), archivePath, "archive", nil)
		}
		result.Verified = true
	}
	return nil
}

func (p *Pipeline) upload(ctx context.Context, result *Result) error {
	finishTiming := p.observer.StartTiming("storage", "upload", result.ArchivePath)
	uri, err := storage.Upload(ctx, p.store, result.ArchivePath, *p.target, p.retry, p.logger)
	if p.recorder != nil {
		p.recorder.RecordUpload(err)
	}
	if err != nil {
		finishTiming(false, map[string]interface{}{"target": p.target.String()})
		return fmt.Errorf("archive kept at %s: %w", result.ArchivePath, err)
	}
	if p.verify {
		if err := storage.VerifyUpload(ctx, p.store, uri, result.ArchivePath); err != nil {
			finishTiming(false, map[string]interface{}{"target": uri, "stage": "verify"})
			return fmt.Errorf("archive kept at %s: %w", result.ArchivePath, err)
		}
		p.logger.Debug("uploaded archive verified", "target", uri)
	}
	finishTiming(true, map[string]interface{}{"target": uri})
	result.UploadURI = uri
	return nil
}
