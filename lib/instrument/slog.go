// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package instrument

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"reflect"
	"sync"
)

// builtinHandlerType is the type of slog's own default handler. That
// handler writes through package log, which slog.SetDefault redirects
// back into slog, so it cannot be kept in the chain once we install a
// handler of our own.
var builtinHandlerType = reflect.TypeOf(slog.Default().Handler())

// SlogOptions configures the Slog instrumentation.
type SlogOptions struct {
	// Replace sends default-logger output only to the capture handler.
	// By default it also still reaches the handler that was installed
	// before.
	Replace bool
}

// Slog installs a capture handler behind slog.Default. While enabled,
// package log output reaches the capture handler too.
type Slog struct {
	capture slog.Handler
	options SlogOptions

	mu          sync.Mutex
	enabled     bool
	priorLogger *slog.Logger
	priorWriter io.Writer
	priorFlags  int
}

// NewSlog returns a disabled Slog instrumentation for capture.
func NewSlog(capture slog.Handler, options SlogOptions) *Slog {
	return &Slog{capture: capture, options: options}
}

func (s *Slog) Name() string { return "slog" }

// Enable replaces the default logger.
func (s *Slog) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return ErrAlreadyEnabled
	}

	s.priorLogger = slog.Default()
	s.priorWriter = log.Writer()
	s.priorFlags = log.Flags()

	handlers := []slog.Handler{s.capture}
	if !s.options.Replace {
		prior := s.priorLogger.Handler()
		if reflect.TypeOf(prior) == builtinHandlerType {
			prior = slog.NewTextHandler(s.priorWriter, nil)
		}
		handlers = append([]slog.Handler{prior}, handlers...)
	}
	slog.SetDefault(slog.New(&teeHandler{handlers: handlers}))
	s.enabled = true
	return nil
}

// Disable restores the default logger and package log's output and
// flags as they were when Enable was called.
func (s *Slog) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return ErrNotEnabled
	}
	slog.SetDefault(s.priorLogger)
	log.SetOutput(s.priorWriter)
	log.SetFlags(s.priorFlags)
	s.priorLogger, s.priorWriter = nil, nil
	s.enabled = false
	return nil
}

// teeHandler hands each record to every handler that accepts its
// level.
type teeHandler struct {
	handlers []slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for index, handler := range h.handlers {
		handlers[index] = handler.WithAttrs(attrs)
	}
	return &teeHandler{handlers: handlers}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for index, handler := range h.handlers {
		handlers[index] = handler.WithGroup(name)
	}
	return &teeHandler{handlers: handlers}
}
