// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"ferret-seal/internal/transforms"
)

// FileStore writes objects to a local or mounted directory
type FileStore struct{}

// NewFileStore returns a FileStore
func NewFileStore() *FileStore {
	return &FileStore{}
}

func filePath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", fmt.Errorf("%w: %q is not a file:// uri", ErrInvalidTarget, uri)
	}
	return filepath.FromSlash(u.Path), nil
}

// Get opens the file named by uri
func (fs *FileStore) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	p, err := filePath(uri)
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
	}
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Put copies body to the path named by uri through a staged temporary file
func (fs *FileStore) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	p, err := filePath(uri)
	if err != nil {
		return "", err
	}
	if err := transforms.EnsureOutputDir(filepath.Dir(p)); err != nil {
		return "", err
	}

	staged := transforms.NewStagedFile(p)
	defer staged.Cleanup()

	f, err := staged.Create("upload")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to copy to %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := staged.Commit(f.Name()); err != nil {
		return "", err
	}
	return uri, nil
}
