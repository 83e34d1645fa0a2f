// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureOutputDir(dir))
	require.NoError(t, EnsureOutputDir(dir), "second call must be a no-op")

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEnsureOutputDir_FileInTheWay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	assert.Error(t, EnsureOutputDir(path))
	assert.Error(t, EnsureOutputDir(""))
}

func TestStagedFile_CommitAndCleanup(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "report.pdf")
	staged := NewStagedFile(final)

	first, err := staged.TempPath("overlay")
	require.NoError(t, err)
	second, err := staged.TempPath("encrypt")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	require.NoError(t, os.WriteFile(second, []byte("done"), 0600))

	require.NoError(t, staged.Commit(second))
	staged.Cleanup()
	staged.Cleanup()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report.pdf", entries[0].Name())
	assert.True(t, staged.Committed())
	assert.Error(t, staged.Commit(first), "a staged file commits once")
}

func TestStagedFile_CleanupWithoutCommit(t *testing.T) {
	dir := t.TempDir()
	staged := NewStagedFile(filepath.Join(dir, "out.txt"))

	_, err := staged.TempPath("write")
	require.NoError(t, err)
	staged.Cleanup()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.False(t, staged.Committed())
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log1.txt")

	require.NoError(t, WriteFileAtomic(path, []byte("hello")))
	require.NoError(t, WriteFileAtomic(path, []byte("replaced")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "x.txt"), []byte("x"))
	assert.Error(t, err)
}

func TestClassifyPath(t *testing.T) {
	tests := map[string]Kind{
		"log1.txt":        KindText,
		"SERVER.LOG":      KindText,
		"config.Xml":      KindText,
		"manual.pdf":      KindDocument,
		"photo.JPG":       KindImage,
		"photo.jpeg":      KindImage,
		"diagram.png":     KindImage,
		"notes.docx":      KindUnknown,
		"README":          KindUnknown,
		"archive.tar.gz":  KindUnknown,
		"dir/nested.json": KindUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, ClassifyPath(path), path)
	}
	assert.Equal(t, KindImage, ClassifyExtension("PNG"))
	assert.Equal(t, "document", KindDocument.String())
}

func TestTransformError(t *testing.T) {
	cause := errors.New("bad magic")
	err := NewTransformError(ErrorDecode, "cannot decode image", "in/a.png", "image_transformer", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsRecoverable(err))
	assert.Contains(t, err.Error(), "[decode]")
	assert.Contains(t, err.Error(), "in/a.png")

	kind, ok := ErrorTypeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrorDecode, kind)

	setup := NewTransformError(ErrorSetup, "input missing", "", "pipeline", nil)
	assert.False(t, IsRecoverable(setup))
	assert.Equal(t, "[setup] input missing (component: pipeline)", setup.Error())
}

func TestTransformErrorCollection(t *testing.T) {
	c := NewTransformErrorCollection()
	assert.False(t, c.HasErrors())

	c.Add("a.png", "image_transformer", NewTransformError(ErrorDecode, "corrupt", "a.png", "image_transformer", nil))
	c.Add("b.txt", "text_transformer", errors.New("disk full"))
	c.Add("c.txt", "text_transformer", nil)

	assert.True(t, c.HasErrors())
	assert.Len(t, c.GetErrors(), 2)
	assert.Len(t, c.GetErrorsByType(ErrorFileSystem), 1)
	assert.False(t, c.HasUnrecoverableErrors())

	c.Add("", "archive", NewTransformError(ErrorArchive, "cannot open", "", "archive", nil))
	assert.True(t, c.HasUnrecoverableErrors())
}
