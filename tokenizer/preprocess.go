// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package tokenizer

// Preprocess filters a token stream for parsing: whitespace, newlines, and
// non-documentation comments are dropped; documentation comments are kept so
// they stay attached to the following declaration. Spans of retained tokens
// are not altered.
func Preprocess(tokens []TokenSpan) []TokenSpan {
	out := make([]TokenSpan, 0, len(tokens))
	for _, ts := range tokens {
		switch ts.Token.Kind {
		case TokenWhitespace, TokenNewline:
			continue
		case TokenComment:
			if !ts.Token.Comment.Kind.IsDoc() {
				continue
			}
		}
		out = append(out, ts)
	}
	return out
}
