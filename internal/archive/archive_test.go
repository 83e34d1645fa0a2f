// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferret-seal/internal/transforms"
)

func writeFiles(t *testing.T, dir string, contents map[string][]byte) []string {
	t.Helper()
	var paths []string
	for name, data := range contents {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0600))
		paths = append(paths, path)
	}
	return paths
}

func TestPackExtract_RoundTrip(t *testing.T) {
	src := t.TempDir()
	contents := map[string][]byte{
		"log1.txt":  []byte("Server MASKED_IP.1 connected to HOST_1\n\n# WATERMARK: CONFIDENTIAL"),
		"photo.png": {0x89, 'P', 'N', 'G', 0x00, 0xFF, 0x10},
		"empty.log": {},
	}
	files := writeFiles(t, src, contents)

	archivePath := filepath.Join(t.TempDir(), DefaultName)
	require.NoError(t, Pack(context.Background(), files, archivePath, "archive-pw"))

	entries, err := List(archivePath)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.True(t, e.Encrypted, e.Name)
	}
	assert.Equal(t, "empty.log", entries[0].Name)

	dest := t.TempDir()
	written, err := Extract(archivePath, "archive-pw", dest)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	for name, want := range contents {
		got, err := os.ReadFile(filepath.Join(dest, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestExtract_WrongPassword(t *testing.T) {
	files := writeFiles(t, t.TempDir(), map[string][]byte{"a.txt": []byte("secret payload")})
	archivePath := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, Pack(context.Background(), files, archivePath, "right"))

	_, err := Extract(archivePath, "wrong", t.TempDir())
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = Verify(archivePath, "wrong")
	assert.ErrorIs(t, err, ErrAuthentication)

	entries, err := Verify(archivePath, "right")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(len("secret payload")), entries[0].Size)
}

func TestPack_DuplicateBaseNames(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	files := append(writeFiles(t, a, map[string][]byte{"same.txt": []byte("1")}),
		writeFiles(t, b, map[string][]byte{"same.txt": []byte("2")})...)

	archivePath := filepath.Join(t.TempDir(), "dup.zip")
	err := Pack(context.Background(), files, archivePath, "pw")
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.NoFileExists(t, archivePath)
}

func TestPack_MissingMemberAbortsAndCleansUp(t *testing.T) {
	files := writeFiles(t, t.TempDir(), map[string][]byte{"ok.txt": []byte("fine")})
	files = append(files, filepath.Join(t.TempDir(), "gone.txt"))

	outDir := t.TempDir()
	archivePath := filepath.Join(outDir, "broken.zip")
	err := Pack(context.Background(), files, archivePath, "pw")
	require.Error(t, err)

	kind, ok := transforms.ErrorTypeOf(err)
	require.True(t, ok)
	assert.Equal(t, transforms.ErrorArchive, kind)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary archive removed")
}

func TestPack_UnwritableDestination(t *testing.T) {
	files := writeFiles(t, t.TempDir(), map[string][]byte{"a.txt": []byte("x")})
	err := Pack(context.Background(), files, filepath.Join(t.TempDir(), "no", "such", "dir", "a.zip"), "pw")
	require.Error(t, err)

	kind, ok := transforms.ErrorTypeOf(err)
	require.True(t, ok)
	assert.Equal(t, transforms.ErrorArchive, kind)
}

func TestPack_EmptyPassword(t *testing.T) {
	err := Pack(context.Background(), nil, filepath.Join(t.TempDir(), "a.zip"), "")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestPack_NoFiles(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "empty.zip")
	require.NoError(t, Pack(context.Background(), nil, archivePath, "pw"))

	entries, err := List(archivePath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
