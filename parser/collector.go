// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package parser

// Collector accumulates errors swallowed by Optional and Many during a parse
// so the final diagnostic can present them as additional parsing issues.
//
// One collector exists per parse invocation; it lives on the [Input] and is
// never shared across parses.
type Collector struct {
	errors []*ParseError
}

// record stores a swallowed error. Only [*ParseError] values are kept.
func (c *Collector) record(err error) {
	if c == nil {
		return
	}
	if pe, ok := err.(*ParseError); ok {
		c.errors = append(c.errors, pe)
	}
}

// secondary returns the swallowed errors that are plausibly independent of
// the primary failure: duplicates at the same position and errors at the
// primary's own position are filtered out, and the list is capped to keep
// diagnostics readable.
func (c *Collector) secondary(primary *ParseError) []*ParseError {
	const maxSecondary = 8
	var out []*ParseError
	seen := map[int]bool{primary.Span.Start: true}
	for i := len(c.errors) - 1; i >= 0 && len(out) < maxSecondary; i-- {
		e := c.errors[i]
		if seen[e.Span.Start] {
			continue
		}
		seen[e.Span.Start] = true
		out = append(out, e)
	}
	return out
}
