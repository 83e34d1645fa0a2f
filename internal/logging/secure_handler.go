// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// MaskValue replaces sensitive attribute values
const MaskValue = "[REDACTED]"

// sensitiveKeys are attribute keys whose values are never logged
var sensitiveKeys = map[string]bool{
	"password":          true,
	"passwd":            true,
	"pdf_password":      true,
	"archive_password":  true,
	"secret":            true,
	"token":             true,
	"access_key":        true,
	"secret_access_key": true,
	"session_token":     true,
	"credentials":       true,
}

var sensitiveKeywords = []string{"password", "secret", "token", "credential"}

// secretSet holds literal secret values known at runtime (the run password)
type secretSet struct {
	mu     sync.RWMutex
	values []string
}

func (s *secretSet) add(v string) {
	if v == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, v)
}

func (s *secretSet) scrub(text string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.values {
		text = strings.ReplaceAll(text, v, MaskValue)
	}
	return text
}

// SecureHandler wraps an slog.Handler and sanitizes attributes before they reach it.
// Values under sensitive keys are replaced, and registered secret values are
// scrubbed from messages and string attributes wherever they appear.
type SecureHandler struct {
	handler slog.Handler
	secrets *secretSet
}

// NewSecureHandler creates a SecureHandler wrapping handler.
// A nil handler falls back to slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler, secrets: &secretSet{}}
}

// RegisterSecret makes the handler scrub value from every subsequent record,
// including records from loggers derived with With or WithGroup.
func (h *SecureHandler) RegisterSecret(value string) {
	h.secrets.add(value)
}

// Enabled delegates to the wrapped handler
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record and forwards it
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, h.secrets.scrub(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with sanitized attrs attached
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized), secrets: h.secrets}
}

// WithGroup returns a handler that nests attrs under name
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name), secrets: h.secrets}
}

func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.secrets.scrub(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, h.secrets.scrub(err.Error()))
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if sensitiveKeys[lower] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Options configures NewLogger
type Options struct {
	// Debug lowers the level to debug
	Debug bool

	// Quiet raises the level to warn; Debug wins when both are set
	Quiet bool

	// JSON selects the JSON handler instead of the text handler
	JSON bool
}

// NewLogger builds a sanitizing logger writing to w and returns its handler
// so callers can register run secrets.
func NewLogger(w io.Writer, opts Options) (*slog.Logger, *SecureHandler) {
	level := slog.LevelInfo
	switch {
	case opts.Debug:
		level = slog.LevelDebug
	case opts.Quiet:
		level = slog.LevelWarn
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if opts.JSON {
		base = slog.NewJSONHandler(w, handlerOpts)
	} else {
		base = slog.NewTextHandler(w, handlerOpts)
	}

	secure := NewSecureHandler(base)
	return slog.New(secure), secure
}
