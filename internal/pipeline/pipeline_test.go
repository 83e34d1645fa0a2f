// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ferret-seal/internal/archive"
	"ferret-seal/internal/config"
	"ferret-seal/internal/metrics"
	"ferret-seal/internal/resilience"
	"ferret-seal/internal/security"
	"ferret-seal/internal/storage"
	"ferret-seal/internal/transforms"
	"ferret-seal/internal/transforms/pdf/pdftest"
)

const testPassword = "correct horse battery staple"

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	os.Exit(m.Run())
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	pw := security.NewSecureString(testPassword)
	reg, err := NewRegistryFromConfig(config.Default(), pw, nil)
	require.NoError(t, err)
	p, err := New(reg, pw, opts...)
	require.NoError(t, err)
	return p
}

func write(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0600))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func extract(t *testing.T, archivePath string) string {
	t.Helper()
	dest := t.TempDir()
	_, err := archive.Extract(archivePath, testPassword, dest)
	require.NoError(t, err)
	return dest
}

func TestRun_TextEndToEnd(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	write(t, in, "log1.txt", []byte("Connect to 10.0.0.1 and backup.example.com"))

	res, err := newTestPipeline(t).Run(context.Background(), in, out)
	require.NoError(t, err)

	require.Len(t, res.Files, 1)
	assert.Equal(t, transforms.StatusSucceeded, res.Files[0].Status)
	assert.Equal(t, filepath.Join(out, "protected_output.zip"), res.ArchivePath)

	dest := extract(t, res.ArchivePath)
	data, err := os.ReadFile(filepath.Join(dest, "log1.txt"))
	require.NoError(t, err)
	text := string(data)

	assert.Equal(t, 1, strings.Count(text, "MASKED_IP.1"))
	assert.Equal(t, 1, strings.Count(text, "HOST_1"))
	assert.NotContains(t, text, "10.0.0.1")
	assert.NotContains(t, text, "backup.example.com")
	assert.True(t, strings.HasSuffix(text, "\n\n# WATERMARK: CONFIDENTIAL"))

	totals := res.Totals()
	assert.Equal(t, 1, totals.IPsMasked)
	assert.Equal(t, 1, totals.HostnamesMasked)
}

func TestRun_CorruptImageDoesNotStopValidDocument(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, in, "a_broken.png", []byte("definitely not a png"))
	write(t, in, "b_report.pdf", pdftest.MinimalPDF("hello"))

	res, err := newTestPipeline(t).Run(context.Background(), in, out)
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	assert.Equal(t, transforms.StatusFailed, res.Files[0].Status)
	assert.Equal(t, transforms.StatusSucceeded, res.Files[1].Status)

	kind, ok := transforms.ErrorTypeOf(res.Files[0].Error)
	require.True(t, ok)
	assert.Equal(t, transforms.ErrorDecode, kind)

	entries, err := archive.List(res.ArchivePath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b_report.pdf", entries[0].Name)

	warnings := res.Warnings()
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "a_broken.png")
	assert.True(t, res.Errors().HasErrors())
	assert.False(t, res.Errors().HasUnrecoverableErrors())

	outEntries, err := os.ReadDir(out)
	require.NoError(t, err)
	var names []string
	for _, e := range outEntries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"b_report.pdf", "protected_output.zip"}, names, "no temporaries left in the output directory")
}

func TestRun_SkipsUnsupportedAndSubdirectories(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, in, "notes.docx", []byte("PK\x03\x04"))
	write(t, in, "README", []byte("no extension"))
	write(t, in, "z.log", []byte("ok"))
	require.NoError(t, os.Mkdir(filepath.Join(in, "nested"), 0700))
	write(t, filepath.Join(in, "nested"), "inner.txt", []byte("10.1.1.1"))

	res, err := newTestPipeline(t).Run(context.Background(), in, out)
	require.NoError(t, err)

	skipped := res.Skipped()
	require.Len(t, skipped, 3)
	reasons := map[string]string{}
	for _, pf := range skipped {
		reasons[filepath.Base(pf.SourcePath)] = pf.Reason
		assert.Empty(t, pf.OutputPath)
	}
	assert.Equal(t, "unsupported file type .docx", reasons["notes.docx"])
	assert.Equal(t, "no file extension", reasons["README"])
	assert.Contains(t, reasons["nested"], "subdirectory")

	assert.NoFileExists(t, filepath.Join(out, "notes.docx"))
	assert.NoFileExists(t, filepath.Join(out, "inner.txt"))

	entries, err := archive.List(res.ArchivePath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "z.log", entries[0].Name)
}

func TestRun_PreservesEnumerationOrderWithWorkers(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	var want []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("f%02d.txt", i)
		write(t, in, name, []byte(fmt.Sprintf("host%d.example.org at 10.0.0.%d", i, i)))
		want = append(want, name)
	}
	write(t, in, "g.png", pngBytes(t))
	want = append(want, "g.png")

	res, err := newTestPipeline(t, WithWorkers(4), WithVerify(true)).Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.True(t, res.Verified)

	var got []string
	for _, pf := range res.Files {
		got = append(got, filepath.Base(pf.SourcePath))
		assert.Equal(t, transforms.StatusSucceeded, pf.Status, pf.SourcePath)
	}
	assert.Equal(t, want, got)

	dest := extract(t, res.ArchivePath)
	data, err := os.ReadFile(filepath.Join(dest, "f07.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "HOST_1 at MASKED_IP.1"), "each file starts its own counters")
}

func TestRun_SetupErrors(t *testing.T) {
	p := newTestPipeline(t)
	base := t.TempDir()
	file := filepath.Join(base, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"missing input", filepath.Join(base, "missing"), filepath.Join(base, "out1")},
		{"input is a file", file, filepath.Join(base, "out2")},
		{"same directory", base, base},
		{"output blocked by file", t.TempDir(), filepath.Join(file, "out")},
		{"empty input", "", filepath.Join(base, "out3")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Run(context.Background(), tt.in, tt.out)
			require.Error(t, err)
			assert.Nil(t, res)

			kind, ok := transforms.ErrorTypeOf(err)
			require.True(t, ok)
			assert.Equal(t, transforms.ErrorSetup, kind)
			assert.False(t, transforms.IsRecoverable(err))
		})
	}
}

func TestRun_EmptyInputStillProducesArchive(t *testing.T) {
	res, err := newTestPipeline(t).Run(context.Background(), t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, res.Files)

	entries, err := archive.List(res.ArchivePath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_ArchiveFailureIsFatal(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, in, "a.txt", []byte("x"))
	// a directory squatting on the archive name makes the final rename fail
	require.NoError(t, os.Mkdir(filepath.Join(out, "protected_output.zip"), 0700))
	write(t, filepath.Join(out, "protected_output.zip"), "keep", []byte("x"))

	res, err := newTestPipeline(t).Run(context.Background(), in, out)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.ArchivePath)

	kind, ok := transforms.ErrorTypeOf(err)
	require.True(t, ok)
	assert.Equal(t, transforms.ErrorArchive, kind)
}

func TestRun_Canceled(t *testing.T) {
	in := t.TempDir()
	write(t, in, "a.txt", []byte("x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestPipeline(t).Run(ctx, in, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_DistributesArchive(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, in, "a.txt", []byte("10.9.9.9"))
	drop := t.TempDir()

	target, err := storage.ParseTarget("file://" + filepath.ToSlash(drop))
	require.NoError(t, err)
	rec := metrics.NewRecorder()

	p := newTestPipeline(t,
		WithDistribution(target, storage.NewFileStore(), resilience.RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond}),
		WithRecorder(rec),
	)
	res, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, target.ObjectURI("protected_output.zip"), res.UploadURI)
	assert.FileExists(t, filepath.Join(drop, "protected_output.zip"))
}

func TestRun_VerifyReadsBackUpload(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, in, "a.txt", []byte("10.9.9.9"))
	drop := t.TempDir()

	target, err := storage.ParseTarget("file://" + filepath.ToSlash(drop))
	require.NoError(t, err)

	p := newTestPipeline(t,
		WithVerify(true),
		WithDistribution(target, storage.NewFileStore(), resilience.RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond}),
	)
	res, err := p.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.Equal(t, target.ObjectURI("protected_output.zip"), res.UploadURI)
}

// truncatingStore keeps only the first few bytes of every upload
type truncatingStore struct {
	*storage.FileStore
}

func (s truncatingStore) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	return s.FileStore.Put(ctx, uri, io.LimitReader(body, 16))
}

func TestRun_VerifyDetectsShortUpload(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, in, "a.txt", []byte("10.9.9.9"))

	target, err := storage.ParseTarget("file://" + filepath.ToSlash(t.TempDir()))
	require.NoError(t, err)

	p := newTestPipeline(t,
		WithVerify(true),
		WithDistribution(target, truncatingStore{storage.NewFileStore()}, resilience.RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond}),
	)
	res, err := p.Run(context.Background(), in, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUploadMismatch)
	assert.Empty(t, res.UploadURI)
	assert.FileExists(t, res.ArchivePath, "local archive kept")
}

type failingStore struct{ calls atomic.Int32 }

func (s *failingStore) Get(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	return nil, 0, errors.New("unused")
}

func (s *failingStore) Put(ctx context.Context, uri string, body io.Reader) (string, error) {
	s.calls.Add(1)
	return "", resilience.NewPermanentError("access denied", nil)
}

func TestRun_UploadFailureKeepsLocalArchive(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	write(t, in, "a.txt", []byte("x"))

	store := &failingStore{}
	p := newTestPipeline(t, WithDistribution(storage.Target{Scheme: "s3", Bucket: "b"}, store, resilience.RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond}))
	res, err := p.Run(context.Background(), in, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive kept at")
	assert.Equal(t, int32(1), store.calls.Load(), "permanent errors are not retried")
	assert.FileExists(t, res.ArchivePath)
	assert.Empty(t, res.UploadURI)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, security.NewSecureString("pw"))
	assert.Error(t, err)

	_, err = New(NewRegistry(), security.NewSecureString(""))
	assert.Error(t, err)

	_, err = New(NewRegistry(), security.NewSecureString("pw"), WithDistribution(storage.Target{Scheme: "s3", Bucket: "b"}, nil, resilience.DefaultRetryConfig()))
	assert.Error(t, err)
}

func TestNewRegistryFromConfig(t *testing.T) {
	pw := security.NewSecureString("pw")

	reg, err := NewRegistryFromConfig(config.Default(), pw, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{".jpeg", ".jpg", ".log", ".pdf", ".png", ".txt", ".xml"}, reg.SupportedExtensions())

	tr, ok := reg.Lookup("/in/REPORT.PDF")
	require.True(t, ok)
	assert.Equal(t, transforms.KindDocument, tr.GetKind())

	_, ok = reg.Lookup("/in/notes.docx")
	assert.False(t, ok)

	cfg := config.Default()
	cfg.PDF.Overlay = "this is not a description"
	_, err = NewRegistryFromConfig(cfg, pw, nil)
	require.Error(t, err)
	kind, _ := transforms.ErrorTypeOf(err)
	assert.Equal(t, transforms.ErrorSetup, kind)

	cfg = config.Default()
	cfg.Text.Encoding = "no-such-charset"
	_, err = NewRegistryFromConfig(cfg, pw, nil)
	assert.Error(t, err)
}
