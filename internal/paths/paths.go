// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
)

// AppName names the per-user configuration directory
const AppName = "ferret-seal"

// ConfigDirEnv overrides the configuration directory on every platform
const ConfigDirEnv = "FERRET_SEAL_CONFIG_DIR"

// GetConfigDir returns the ferret-seal configuration directory.
// FERRET_SEAL_CONFIG_DIR wins, otherwise the XDG config home
// (%LOCALAPPDATA% on Windows, ~/Library/Application Support on macOS).
func GetConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	return filepath.Join(xdg.ConfigHome, AppName)
}

// GetConfigFile returns the path to the main config file
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// ResolvePath returns the cleaned absolute form of path
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(filepath.Clean(path))
}

// SamePath reports whether a and b name the same location. Existing paths
// are compared by inode so symlinks and bind mounts are caught.
func SamePath(a, b string) bool {
	absA, errA := ResolvePath(a)
	absB, errB := ResolvePath(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}

	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

// IsWithin reports whether child is parent or lies below it
func IsWithin(parent, child string) bool {
	absParent, err := ResolvePath(parent)
	if err != nil {
		return false
	}
	absChild, err := ResolvePath(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absParent, absChild)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ValidatePath validates a path for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}

	if strings.ContainsRune(path, 0) {
		return &PathValidationError{Path: path, Reason: "contains null byte"}
	}

	if runtime.GOOS == "windows" {
		return validateWindowsPath(path)
	}
	return nil
}

func validateWindowsPath(path string) error {
	for i, char := range path {
		if strings.ContainsRune(`<>:"|?*`, char) {
			// drive letter (C:)
			if char == ':' && i == 1 {
				continue
			}
			return &PathValidationError{
				Path:   path,
				Reason: "contains invalid character: " + string(char),
			}
		}
	}

	if len(path) > 32767 {
		return &PathValidationError{
			Path:   path,
			Reason: "path exceeds maximum length of 32,767 characters",
		}
	}
	return nil
}

// PathValidationError represents a path validation error
type PathValidationError struct {
	Path   string
	Reason string
}

func (e *PathValidationError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Reason
}
