// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Beacon configuration from a single YAML or
// JSONC file.
//
// The file is named by the BEACON_CONFIG environment variable (via
// [Load]) or a --config flag (via [LoadFile]). There is no discovery
// and no fallback search path.
//
// Files ending in .json or .jsonc have comments and trailing commas
// stripped with tidwall/jsonc. The result is valid YAML, so both
// formats go through the same yaml.v3 decoder and accept the same
// duration strings ("5s", "10m").
//
// An environment section (development, staging, production) may
// override the exporter settings when [Config].Environment matches.
// After loading, ${VAR} and ${VAR:-default} are expanded in the
// service name, exporter endpoint, and header values.
//
// Key exports:
//
//   - [Config] -- pipelines, throttle, trace attributes, exporter, collector
//   - [Default] -- every field at its documented default
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] -- every problem at once, joined
package config
