// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoIncludesDirtyMarker(t *testing.T) {
	savedCommit, savedDirty := GitCommit, GitDirty
	defer func() { GitCommit, GitDirty = savedCommit, savedDirty }()

	GitCommit, GitDirty = "abc1234", "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Fatalf("Info() = %q, want the dirty commit", got)
	}
	GitDirty = "false"
	if got := Info(); strings.Contains(got, "dirty") {
		t.Fatalf("Info() = %q, want no dirty marker", got)
	}
}

func TestFullIncludesGoVersion(t *testing.T) {
	if got := Full(); !strings.Contains(got, "Go: go") {
		t.Fatalf("Full() = %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "beacon/"+Version {
		t.Fatalf("UserAgent() = %q", got)
	}
}
