// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package xmaps

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestContains(t *testing.T) {
	m := map[string]int{"a": 1, "b": 2}
	if !Contains(m, "a") {
		t.Error("Contains(a) = false")
	}
	if Contains(m, "c") {
		t.Error("Contains(c) = true")
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"c": 3, "a": 1, "b": 2}
	if diff := cmp.Diff([]string{"a", "b", "c"}, SortedKeys(m)); diff != "" {
		t.Errorf("SortedKeys mismatch (-want +got):\n%s", diff)
	}
	var empty map[string]int
	if got := SortedKeys(empty); len(got) != 0 {
		t.Errorf("SortedKeys(nil) = %v", got)
	}
}
