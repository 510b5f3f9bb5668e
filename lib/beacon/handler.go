// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"strconv"
	"time"

	"github.com/bureau-foundation/beacon/lib/record"
)

// SourceKey holds "file:line" of the logging call when the slog record
// carries a program counter.
const SourceKey = "source"

// Handler returns a slog.Handler that posts each record as a log
// entry. Group names prefix attribute keys with dots ("http.method").
// Attribute values that cannot be encoded as telemetry are rendered as
// strings.
func (c *Client) Handler() slog.Handler {
	return &logHandler{client: c}
}

type logHandler struct {
	client *Client
	attrs  map[string]any
	prefix string
}

func (h *logHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.client != nil && level >= h.client.level.Level()
}

func (h *logHandler) Handle(_ context.Context, r slog.Record) error {
	if h.client == nil {
		return nil
	}
	attributes := maps.Clone(h.attrs)
	if attributes == nil {
		attributes = make(map[string]any, r.NumAttrs()+1)
	}
	r.Attrs(func(attr slog.Attr) bool {
		flatten(attributes, h.prefix, attr)
		return true
	})
	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			attributes[SourceKey] = frame.File + ":" + strconv.Itoa(frame.Line)
		}
	}
	h.client.postLog(record.SeverityFromSlog(r.Level), r.Message, attributes, r.Time)
	return nil
}

func (h *logHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.attrs = maps.Clone(h.attrs)
	if next.attrs == nil {
		next.attrs = make(map[string]any, len(attrs))
	}
	for _, attr := range attrs {
		flatten(next.attrs, h.prefix, attr)
	}
	return &next
}

func (h *logHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// flatten adds attr to attributes under prefix, expanding groups.
func flatten(attributes map[string]any, prefix string, attr slog.Attr) {
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		group := value.Group()
		if len(group) == 0 {
			return
		}
		// An inline group (empty key) adds its members at this level.
		nested := prefix
		if attr.Key != "" {
			nested = prefix + attr.Key + "."
		}
		for _, member := range group {
			flatten(attributes, nested, member)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	attributes[prefix+attr.Key] = attributeValue(value)
}

// attributeValue converts a resolved slog value to one the record
// codec can always encode.
func attributeValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindString:
		return value.String()
	case slog.KindInt64:
		return value.Int64()
	case slog.KindUint64:
		return value.Uint64()
	case slog.KindFloat64:
		return value.Float64()
	case slog.KindBool:
		return value.Bool()
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time()
	}

	switch typed := value.Any().(type) {
	case error:
		return typed.Error()
	case []byte:
		return typed
	case time.Time:
		return typed
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
