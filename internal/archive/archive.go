// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package archive bundles sanitized outputs into a single AES-256 encrypted zip.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/yeka/zip"

	"ferret-seal/internal/transforms"
)

// DefaultName is the archive file name used when none is configured
const DefaultName = "protected_output.zip"

var (
	// ErrDuplicateEntry is returned when two inputs share a base name
	ErrDuplicateEntry = errors.New("duplicate archive entry")

	// ErrAuthentication is returned when an entry cannot be decrypted with the given password
	ErrAuthentication = errors.New("archive password is incorrect or the entry is corrupt")

	// ErrEmptyPassword is returned when Pack is called without a password
	ErrEmptyPassword = errors.New("archive password cannot be empty")
)

// Entry describes one member of an archive
type Entry struct {
	Name      string `json:"name" yaml:"name"`
	Size      uint64 `json:"size" yaml:"size"`
	Encrypted bool   `json:"encrypted" yaml:"encrypted"`
}

// Pack writes every file in files into archivePath as a flat, AES-256
// encrypted entry named by its base name. The archive is built in a temporary
// file and renamed into place, so archivePath is either complete or absent.
func Pack(ctx context.Context, files []string, archivePath, password string) error {
	if password == "" {
		return archiveError(archivePath, ErrEmptyPassword)
	}
	if err := checkDuplicates(files); err != nil {
		return err
	}

	staged := transforms.NewStagedFile(archivePath)
	defer staged.Cleanup()

	f, err := staged.Create("zip")
	if err != nil {
		return archiveError(archivePath, err)
	}

	zw := zip.NewWriter(f)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			f.Close()
			return err
		}
		if err := addEntry(zw, path, password); err != nil {
			zw.Close()
			f.Close()
			return archiveError(archivePath, err)
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return archiveError(archivePath, fmt.Errorf("failed to finalize archive: %w", err))
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return archiveError(archivePath, err)
	}
	if err := f.Close(); err != nil {
		return archiveError(archivePath, err)
	}

	if err := staged.Commit(f.Name()); err != nil {
		return archiveError(archivePath, err)
	}
	return nil
}

func checkDuplicates(files []string) error {
	seen := make(map[string]string, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q from %s and %s", ErrDuplicateEntry, name, prev, path)
		}
		seen[name] = path
	}
	return nil
}

func addEntry(zw *zip.Writer, path, password string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	w, err := zw.Encrypt(filepath.Base(path), password, zip.AES256Encryption)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", path, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func archiveError(archivePath string, err error) error {
	return transforms.NewTransformError(transforms.ErrorArchive,
		"failed to create archive", archivePath, "archive", err)
}

// List returns the archive members sorted by name. No password is needed.
func List(archivePath string) ([]Entry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		entries = append(entries, Entry{
			Name:      f.Name,
			Size:      f.UncompressedSize64,
			Encrypted: f.IsEncrypted(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Extract decrypts every member of archivePath into destDir and returns the
// written paths. Member names are reduced to their base name.
func Extract(archivePath, password, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	if err := transforms.EnsureOutputDir(destDir); err != nil {
		return nil, err
	}

	var written []string
	for _, f := range r.File {
		name := filepath.Base(f.Name)
		if name == "." || name == string(filepath.Separator) {
			continue
		}
		data, err := readEntry(f, password)
		if err != nil {
			return written, err
		}
		dest := filepath.Join(destDir, name)
		if err := os.WriteFile(dest, data, 0600); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", dest, err)
		}
		written = append(written, dest)
	}
	return written, nil
}

// Verify checks that every member decrypts with password without writing anything
func Verify(archivePath, password string) ([]Entry, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		data, err := readEntry(f, password)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: f.Name, Size: uint64(len(data)), Encrypted: f.IsEncrypted()})
	}
	return entries, nil
}

// readEntry reads one member. Any failure on an encrypted member is reported
// as ErrAuthentication since a wrong password surfaces at open or at EOF.
func readEntry(f *zip.File, password string) ([]byte, error) {
	if f.IsEncrypted() {
		f.SetPassword(password)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, entryError(f, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, entryError(f, err)
	}
	return data, nil
}

func entryError(f *zip.File, err error) error {
	if f.IsEncrypted() {
		return fmt.Errorf("%w: %s: %v", ErrAuthentication, f.Name, err)
	}
	return fmt.Errorf("failed to read %s: %w", f.Name, err)
}
