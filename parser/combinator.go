// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package parser turns a preprocessed token stream into a typed AST using a
// hand-written parser-combinator library.
//
// Combinators that silently swallow failures ([Optional], [Many]) route the
// swallowed error into the parse's error collector so the final diagnostic
// can list additional parsing issues alongside the primary one.
package parser

import (
	"fmt"
	"strings"

	"github.com/go-kairei/kairei/tokenizer"
	"github.com/go-kairei/kairei/types"
)

// ParseError is a parse failure at a token position. Nested holds secondary
// errors swallowed by Optional and Many combinators during the failed
// attempt.
type ParseError struct {
	Message string
	Span    types.Span
	Nested  []*ParseError
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse error at %s: %s", e.Span, e.Message)
	if len(e.Nested) > 0 {
		fmt.Fprintf(&b, " (%d additional parsing issues)", len(e.Nested))
		for _, n := range e.Nested {
			fmt.Fprintf(&b, "\n  - %s: %s", n.Span, n.Message)
		}
	}
	return b.String()
}

// Diagnostic converts the error into a [types.Diagnostic].
func (e *ParseError) Diagnostic() *types.Diagnostic {
	return &types.Diagnostic{
		Severity:   types.SeverityError,
		Code:       "PARSE_0001",
		Message:    e.Message,
		Suggestion: "check the construct at the reported position against the DSL grammar",
		Span:       e.Span,
	}
}

// Input is an immutable cursor over the token stream. Copies share the
// underlying tokens and the per-parse error collector.
type Input struct {
	tokens    []tokenizer.TokenSpan
	pos       int
	collector *Collector
}

// NewInput returns an input positioned at the first token. The collector is
// freshly initialized; a new one is created for every parse invocation.
func NewInput(tokens []tokenizer.TokenSpan) Input {
	return Input{tokens: tokens, collector: &Collector{}}
}

// AtEOF reports whether the cursor is past the last token.
func (in Input) AtEOF() bool { return in.pos >= len(in.tokens) }

// Peek returns the current token without consuming it.
func (in Input) Peek() (tokenizer.TokenSpan, bool) {
	if in.AtEOF() {
		return tokenizer.TokenSpan{}, false
	}
	return in.tokens[in.pos], true
}

// Advance returns the input moved one token forward.
func (in Input) Advance() Input {
	in.pos++
	return in
}

// SpanHere returns the span of the current token, or a zero-width span just
// past the final token at EOF.
func (in Input) SpanHere() types.Span {
	if ts, ok := in.Peek(); ok {
		return ts.Span
	}
	if len(in.tokens) > 0 {
		last := in.tokens[len(in.tokens)-1].Span
		return types.Span{
			Start: last.End, End: last.End,
			Line: last.EndLine, Column: last.EndColumn,
			EndLine: last.EndLine, EndColumn: last.EndColumn,
		}
	}
	return types.NewSpan(0, 0, 1, 1)
}

// spanBetween returns the source span covered by tokens consumed between two
// cursor states.
func spanBetween(before, after Input) types.Span {
	if before.pos >= after.pos || before.AtEOF() {
		return before.SpanHere()
	}
	first := before.tokens[before.pos].Span
	last := after.tokens[after.pos-1].Span
	return first.Merge(last)
}

// errorAt builds a ParseError at the input's current position.
func errorAt(in Input, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Span: in.SpanHere()}
}

// Parser consumes tokens from an input and produces a value. On failure the
// returned error is a [*ParseError] and the returned input is unspecified.
type Parser[O any] func(Input) (Input, O, error)

// Satisfy consumes one token matching pred, described by what in errors.
func Satisfy(what string, pred func(tokenizer.Token) bool) Parser[tokenizer.TokenSpan] {
	return func(in Input) (Input, tokenizer.TokenSpan, error) {
		ts, ok := in.Peek()
		if !ok {
			return in, tokenizer.TokenSpan{}, errorAt(in, "expected %s, found end of input", what)
		}
		if !pred(ts.Token) {
			return in, tokenizer.TokenSpan{}, errorAt(in, "expected %s, found %s", what, ts.Token)
		}
		return in.Advance(), ts, nil
	}
}

// Token consumes one token of the given kind.
func Token(kind tokenizer.TokenKind) Parser[tokenizer.TokenSpan] {
	return Satisfy(kind.String(), func(t tokenizer.Token) bool { return t.Kind == kind })
}

// Map transforms the output of p with f.
func Map[A, B any](p Parser[A], f func(A) B) Parser[B] {
	return func(in Input) (Input, B, error) {
		rest, a, err := p(in)
		if err != nil {
			var zero B
			return in, zero, err
		}
		return rest, f(a), nil
	}
}

// Many applies p zero or more times until it fails. The terminating failure
// is routed into the error collector.
func Many[A any](p Parser[A]) Parser[[]A] {
	return func(in Input) (Input, []A, error) {
		var out []A
		for {
			rest, a, err := p(in)
			if err != nil {
				in.collector.record(err)
				return in, out, nil
			}
			if rest.pos == in.pos {
				// Zero-width success would loop forever.
				return in, out, nil
			}
			out = append(out, a)
			in = rest
		}
	}
}

// Many1 applies p one or more times.
func Many1[A any](p Parser[A]) Parser[[]A] {
	return func(in Input) (Input, []A, error) {
		rest, first, err := p(in)
		if err != nil {
			return in, nil, err
		}
		rest2, more, err := Many(p)(rest)
		if err != nil {
			return in, nil, err
		}
		return rest2, append([]A{first}, more...), nil
	}
}

// Choice tries each parser in order and returns the first success. On total
// failure it returns the error of the alternative that progressed furthest.
func Choice[A any](ps ...Parser[A]) Parser[A] {
	return func(in Input) (Input, A, error) {
		var zero A
		var best *ParseError
		for _, p := range ps {
			rest, a, err := p(in)
			if err == nil {
				return rest, a, nil
			}
			if pe, ok := err.(*ParseError); ok {
				if best == nil || pe.Span.Start > best.Span.Start {
					best = pe
				}
			}
		}
		if best == nil {
			best = errorAt(in, "no alternative matched")
		}
		return in, zero, best
	}
}

// Optional applies p and returns nil on failure without consuming input. The
// swallowed failure is routed into the error collector.
func Optional[A any](p Parser[A]) Parser[*A] {
	return func(in Input) (Input, *A, error) {
		rest, a, err := p(in)
		if err != nil {
			in.collector.record(err)
			return in, nil, nil
		}
		return rest, &a, nil
	}
}

// Pair holds the outputs of [Sequence].
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple holds the outputs of [Sequence3].
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Sequence applies a then b.
func Sequence[A, B any](a Parser[A], b Parser[B]) Parser[Pair[A, B]] {
	return func(in Input) (Input, Pair[A, B], error) {
		var zero Pair[A, B]
		rest, av, err := a(in)
		if err != nil {
			return in, zero, err
		}
		rest2, bv, err := b(rest)
		if err != nil {
			return in, zero, err
		}
		return rest2, Pair[A, B]{av, bv}, nil
	}
}

// Sequence3 applies a, b, then c.
func Sequence3[A, B, C any](a Parser[A], b Parser[B], c Parser[C]) Parser[Triple[A, B, C]] {
	return func(in Input) (Input, Triple[A, B, C], error) {
		var zero Triple[A, B, C]
		rest, av, err := a(in)
		if err != nil {
			return in, zero, err
		}
		rest2, bv, err := b(rest)
		if err != nil {
			return in, zero, err
		}
		rest3, cv, err := c(rest2)
		if err != nil {
			return in, zero, err
		}
		return rest3, Triple[A, B, C]{av, bv, cv}, nil
	}
}

// SepBy parses zero or more p separated by sep.
func SepBy[A, S any](p Parser[A], sep Parser[S]) Parser[[]A] {
	return func(in Input) (Input, []A, error) {
		rest, first, err := p(in)
		if err != nil {
			in.collector.record(err)
			return in, nil, nil
		}
		out := []A{first}
		in = rest
		for {
			rest, _, err := sep(in)
			if err != nil {
				return in, out, nil
			}
			rest2, a, err := p(rest)
			if err != nil {
				return in, out, err
			}
			out = append(out, a)
			in = rest2
		}
	}
}

// Lazy defers construction of p until first use, breaking recursive grammar
// cycles.
func Lazy[A any](f func() Parser[A]) Parser[A] {
	var p Parser[A]
	return func(in Input) (Input, A, error) {
		if p == nil {
			p = f()
		}
		return p(in)
	}
}

// Keyword consumes the given keyword token.
func Keyword(kw tokenizer.Keyword) Parser[tokenizer.TokenSpan] {
	return Satisfy(fmt.Sprintf("keyword %q", kw), func(t tokenizer.Token) bool { return t.IsKeyword(kw) })
}

// Op consumes the given operator token.
func Op(op tokenizer.Operator) Parser[tokenizer.TokenSpan] {
	return Satisfy(fmt.Sprintf("operator %q", op), func(t tokenizer.Token) bool { return t.IsOperator(op) })
}

// Delim consumes the given delimiter token.
func Delim(d tokenizer.Delimiter) Parser[tokenizer.TokenSpan] {
	return Satisfy(fmt.Sprintf("delimiter %q", d), func(t tokenizer.Token) bool { return t.IsDelimiter(d) })
}

// Ident consumes an identifier token and returns its text.
func Ident() Parser[string] {
	p := Token(tokenizer.TokenIdentifier)
	return func(in Input) (Input, string, error) {
		rest, ts, err := p(in)
		if err != nil {
			return in, "", err
		}
		return rest, ts.Token.Text, nil
	}
}
