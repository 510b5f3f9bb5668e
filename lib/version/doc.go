// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for Beacon
// binaries and the User-Agent the HTTP exporter identifies itself
// with.
//
// Version information is injected at build time via -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/beacon/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without ldflags, [Commit] falls back to the VCS revision recorded in
// the binary's build info.
package version
