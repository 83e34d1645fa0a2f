// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package storage ships the finished archive to a distribution target.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ferret-seal/internal/resilience"
)

// ObjectStore defines the minimal methods needed to distribute archives.
type ObjectStore interface {
	// Get returns a reader for the given URI (s3://bucket/key or file:///path).
	Get(ctx context.Context, uri string) (io.ReadCloser, int64, error)
	// Put writes content to the given URI and returns the final URI.
	Put(ctx context.Context, uri string, body io.Reader) (string, error)
}

var (
	// ErrInvalidTarget is returned for distribution targets that cannot be parsed
	ErrInvalidTarget = errors.New("invalid distribution target")

	// ErrObjectNotFound is returned by Get when nothing is stored at the URI
	ErrObjectNotFound = errors.New("object not found")

	// ErrUploadMismatch is returned when the stored archive differs in size from the local one
	ErrUploadMismatch = errors.New("uploaded archive does not match local archive")
)

// Target is a parsed distribution location
type Target struct {
	// Scheme is "s3" or "file"
	Scheme string

	// Bucket is set for s3 targets
	Bucket string

	// Prefix is the key prefix for s3 or the directory for file targets
	Prefix string
}

// ParseTarget accepts s3://bucket[/prefix] and file:///dir
func ParseTarget(raw string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	switch u.Scheme {
	case "s3":
		if u.Host == "" {
			return Target{}, fmt.Errorf("%w: missing bucket in %q", ErrInvalidTarget, raw)
		}
		return Target{Scheme: "s3", Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	case "file":
		dir := u.Path
		if u.Host != "" && u.Host != "localhost" {
			return Target{}, fmt.Errorf("%w: file targets must be local, got host %q", ErrInvalidTarget, u.Host)
		}
		if dir == "" {
			return Target{}, fmt.Errorf("%w: missing directory in %q", ErrInvalidTarget, raw)
		}
		return Target{Scheme: "file", Prefix: filepath.FromSlash(dir)}, nil
	default:
		return Target{}, fmt.Errorf("%w: unsupported scheme %q (use s3:// or file://)", ErrInvalidTarget, u.Scheme)
	}
}

// ObjectURI returns the URI that an object called name is stored at
func (t Target) ObjectURI(name string) string {
	switch t.Scheme {
	case "s3":
		key := name
		if t.Prefix != "" {
			key = path.Join(t.Prefix, name)
		}
		return "s3://" + t.Bucket + "/" + key
	default:
		return "file://" + filepath.ToSlash(filepath.Join(t.Prefix, name))
	}
}

// String returns the target in URI form
func (t Target) String() string {
	if t.Scheme == "s3" {
		if t.Prefix == "" {
			return "s3://" + t.Bucket
		}
		return "s3://" + t.Bucket + "/" + t.Prefix
	}
	return "file://" + filepath.ToSlash(t.Prefix)
}

// NewStore returns the ObjectStore that serves t
func NewStore(ctx context.Context, t Target) (ObjectStore, error) {
	switch t.Scheme {
	case "s3":
		return NewS3(ctx)
	case "file":
		return NewFileStore(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, t.Scheme)
	}
}

// Upload copies localPath to t under its base name, retrying transient
// failures. The file is reopened for every attempt.
func Upload(ctx context.Context, store ObjectStore, localPath string, t Target, retry resilience.RetryConfig, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	uri := t.ObjectURI(filepath.Base(localPath))

	onRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, err error) {
		logger.Warn("retrying archive upload", "attempt", attempt, "target", uri, "error", err)
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	var final string
	err := resilience.RetryWithBackoff(ctx, retry, func(ctx context.Context) error {
		f, err := os.Open(localPath)
		if err != nil {
			return resilience.NewPermanentError(fmt.Sprintf("failed to open %s", localPath), err)
		}
		defer f.Close()

		final, err = store.Put(ctx, uri, f)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to %s: %w", localPath, uri, err)
	}
	return final, nil
}

// VerifyUpload reads the object at uri back from store and checks that both
// the reported and the streamed size equal the size of localPath.
func VerifyUpload(ctx context.Context, store ObjectStore, uri, localPath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	want := info.Size()

	rc, size, err := store.Get(ctx, uri)
	if err != nil {
		return fmt.Errorf("failed to read back %s: %w", uri, err)
	}
	defer rc.Close()

	if size != want {
		return fmt.Errorf("%w: %s reports %d bytes, expected %d", ErrUploadMismatch, uri, size, want)
	}
	read, err := io.Copy(io.Discard, rc)
	if err != nil {
		return fmt.Errorf("failed to read back %s: %w", uri, err)
	}
	if read != want {
		return fmt.Errorf("%w: read %d bytes from %s, expected %d", ErrUploadMismatch, read, uri, want)
	}
	return nil
}
