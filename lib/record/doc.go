// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package record defines the unit of telemetry that moves through the
// pipeline and the envelope that carries a group of them to a
// collector.
//
// A [Record] pairs a timestamp with a [Payload]: a [LogEntry], a
// [Span], or a session replay event from lib/replay. Records are
// immutable once handed to a buffer. Their encoded size is computed on
// first use and cached, since the buffer's byte accounting and the
// export path both ask for it.
//
// On the wire a record is a CBOR map of timestamp, kind, and the
// encoded payload. Decoding understands logs and spans directly; any
// other kind decodes to an [Opaque] payload that the owning package
// (lib/replay for replay events) converts back into its own type. This
// keeps lib/record free of imports on the packages that define
// payloads.
package record
