// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// EnsureOutputDir creates dir with owner-only permissions if it does not exist yet
func EnsureOutputDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", dir)
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// OutputPath returns where the sanitized copy of sourcePath lives inside outputDir
func OutputPath(outputDir, sourcePath string) string {
	return filepath.Join(outputDir, filepath.Base(sourcePath))
}

// StagedFile implements a write-then-promote commit for one output file.
// Every stage writes to its own uniquely named temporary file in the
// destination directory; Commit renames one of them onto the final path and
// Cleanup removes whatever is left. Cleanup is safe to call more than once
// and should always be deferred.
type StagedFile struct {
	finalPath string

	mu        sync.Mutex
	temps     []string
	committed bool
}

// NewStagedFile prepares staging for finalPath
func NewStagedFile(finalPath string) *StagedFile {
	return &StagedFile{finalPath: finalPath}
}

// Create opens a new uniquely named temporary file for stage
func (s *StagedFile) Create(stage string) (*os.File, error) {
	dir := filepath.Dir(s.finalPath)
	pattern := "." + sanitizeStageName(filepath.Base(s.finalPath)) + "." + sanitizeStageName(stage) + "-*.tmp"

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file for %s: %w", s.finalPath, err)
	}

	s.mu.Lock()
	s.temps = append(s.temps, f.Name())
	s.mu.Unlock()
	return f, nil
}

// TempPath reserves a new temporary path for stage and returns it closed and empty
func (s *StagedFile) TempPath(stage string) (string, error) {
	f, err := s.Create(stage)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary file %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// Commit promotes tempPath to the final path
func (s *StagedFile) Commit(tempPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return fmt.Errorf("output already committed: %s", s.finalPath)
	}
	if err := os.Rename(tempPath, s.finalPath); err != nil {
		return fmt.Errorf("failed to promote %s to %s: %w", tempPath, s.finalPath, err)
	}
	s.committed = true
	return nil
}

// Committed reports whether Commit succeeded
func (s *StagedFile) Committed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Cleanup removes every temporary file that was not promoted
func (s *StagedFile) Cleanup() {
	s.mu.Lock()
	temps := s.temps
	s.temps = nil
	s.mu.Unlock()

	// the promoted temp is already gone, so its Remove fails with ErrNotExist
	for _, path := range temps {
		_ = os.Remove(path)
	}
}

// WriteFileAtomic writes data to path through a staged temporary file.
// New files are created with 0600 permissions.
func WriteFileAtomic(path string, data []byte) error {
	staged := NewStagedFile(path)
	defer staged.Cleanup()

	f, err := staged.Create("write")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return staged.Commit(f.Name())
}

func sanitizeStageName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '*' || r == '/' || r == filepath.Separator {
			return '_'
		}
		return r
	}, s)
}
