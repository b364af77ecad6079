// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package tokenizer turns DSL source text into a sequence of located tokens.
//
// The scanner tries prioritized alternatives at each position (whitespace,
// newline, literal, comment, word, operator, delimiter) and fails with a
// [ParseError] carrying the offending span when nothing matches.
package tokenizer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-kairei/kairei/types"
)

// ParseError is a tokenize failure: unexpected character, unterminated
// string, or illegal escape.
type ParseError struct {
	Message string
	// Found holds up to the next 20 characters at the failure position.
	Found string
	Span  types.Span
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("tokenize error at %s: %s (found %q)", e.Span, e.Message, e.Found)
}

// Diagnostic converts the error into a [types.Diagnostic].
func (e *ParseError) Diagnostic() *types.Diagnostic {
	return &types.Diagnostic{
		Severity:   types.SeverityError,
		Code:       "TOKEN_0001",
		Message:    e.Message,
		Suggestion: "check the highlighted region for an unexpected character or an unterminated construct",
		Span:       e.Span,
	}
}

// Tokenizer is a streaming lexer over a single source string. It maintains
// the current byte position and 1-based line/column.
type Tokenizer struct {
	src  string
	pos  int
	line int
	col  int

	// lastSignificant is the kind of the last non-trivia token, used to
	// decide whether '-' begins a negative literal or is a binary operator.
	lastSignificant *Token
}

// New returns a tokenizer positioned at the start of src.
func New(src string) *Tokenizer {
	return &Tokenizer{src: src, line: 1, col: 1}
}

// Tokenize scans the whole input. It returns either the complete token list
// or a single [*ParseError] whose span indexes a valid byte boundary.
func Tokenize(src string) ([]TokenSpan, error) {
	return New(src).Tokenize()
}

// Tokenize scans the remaining input.
func (t *Tokenizer) Tokenize() ([]TokenSpan, error) {
	var tokens []TokenSpan
	for t.pos < len(t.src) {
		start, startLine, startCol := t.pos, t.line, t.col
		tok, err := t.next()
		if err != nil {
			return nil, err
		}
		span := types.Span{
			Start:     start,
			End:       t.pos,
			Line:      startLine,
			Column:    startCol,
			EndLine:   t.line,
			EndColumn: t.col,
		}
		tok.Text = t.src[start:t.pos]
		switch tok.Kind {
		case TokenWhitespace, TokenNewline, TokenComment:
		default:
			last := tok
			t.lastSignificant = &last
		}
		tokens = append(tokens, TokenSpan{Token: tok, Span: span})
	}
	return tokens, nil
}

// next scans one token starting at the current position.
func (t *Tokenizer) next() (Token, error) {
	c := t.src[t.pos]
	switch {
	case c == ' ' || c == '\t':
		t.consumeWhile(func(b byte) bool { return b == ' ' || b == '\t' })
		return Token{Kind: TokenWhitespace}, nil
	case c == '\n' || c == '\r':
		if c == '\r' && t.peekAt(1) == '\n' {
			t.advance(2)
		} else {
			t.advance(1)
		}
		return Token{Kind: TokenNewline}, nil
	case c == '"':
		return t.scanString()
	case c >= '0' && c <= '9':
		return t.scanNumber(false)
	case c == '-' && t.peekAt(1) >= '0' && t.peekAt(1) <= '9' && t.signAllowed():
		t.advance(1)
		return t.scanNumber(true)
	case c == '/':
		if tok, ok, err := t.scanComment(); ok || err != nil {
			return tok, err
		}
		t.advance(1)
		return Token{Kind: TokenOperator, Operator: OpSlash}, nil
	case isWordStart(c):
		return t.scanWord(), nil
	default:
		for _, op := range multiCharOperators {
			if strings.HasPrefix(t.src[t.pos:], string(op)) {
				t.advance(len(op))
				return Token{Kind: TokenOperator, Operator: op}, nil
			}
		}
		if op, ok := singleCharOperators[c]; ok {
			t.advance(1)
			return Token{Kind: TokenOperator, Operator: op}, nil
		}
		if d, ok := delimiters[c]; ok {
			t.advance(1)
			return Token{Kind: TokenDelimiter, Delimiter: d}, nil
		}
		return Token{}, t.errorf("unexpected character %q", c)
	}
}

// signAllowed reports whether a '-' at the current position may begin a
// negative numeric literal rather than a binary minus.
func (t *Tokenizer) signAllowed() bool {
	last := t.lastSignificant
	if last == nil {
		return true
	}
	switch last.Kind {
	case TokenIdentifier, TokenLiteral:
		return false
	case TokenDelimiter:
		switch last.Delimiter {
		case DelimCloseParen, DelimCloseBracket, DelimCloseBrace:
			return false
		}
	}
	return true
}

func (t *Tokenizer) scanWord() Token {
	start := t.pos
	t.consumeWhile(isWordPart)
	word := t.src[start:t.pos]
	switch {
	case word == "true" || word == "false":
		return Token{Kind: TokenLiteral, Literal: &Literal{Kind: LitBool, Bool: word == "true"}}
	case word == "null":
		return Token{Kind: TokenLiteral, Literal: &Literal{Kind: LitNull}}
	default:
		if kw, ok := keywords[word]; ok {
			return Token{Kind: TokenKeyword, Keyword: kw}
		}
		if typeNames[word] {
			return Token{Kind: TokenType, TypeName: word}
		}
		return Token{Kind: TokenIdentifier}
	}
}

// durationUnits is ordered longest-suffix-first so "ms" wins over "m".
var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"us", time.Microsecond},
	{"ns", time.Nanosecond},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"d", 24 * time.Hour},
}

func (t *Tokenizer) scanNumber(negative bool) (Token, error) {
	start := t.pos
	if negative {
		start--
	}
	t.consumeWhile(isDigit)
	isFloat := false
	if t.peekAt(0) == '.' && isDigit(t.peekAt(1)) {
		isFloat = true
		t.advance(1)
		t.consumeWhile(isDigit)
	}
	if !isFloat {
		for _, du := range durationUnits {
			if strings.HasPrefix(t.src[t.pos:], du.suffix) && !isWordPart(t.peekAt(len(du.suffix))) {
				text := t.src[start:t.pos]
				t.advance(len(du.suffix))
				n, err := strconv.ParseInt(text, 10, 64)
				if err != nil {
					return Token{}, t.errorf("invalid duration literal %q", t.src[start:t.pos])
				}
				return Token{Kind: TokenLiteral, Literal: &Literal{
					Kind:     LitDuration,
					Duration: time.Duration(n) * du.unit,
				}}, nil
			}
		}
	}
	text := t.src[start:t.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Token{}, t.errorf("invalid float literal %q", text)
		}
		return Token{Kind: TokenLiteral, Literal: &Literal{Kind: LitFloat, Float: f}}, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Token{}, t.errorf("invalid integer literal %q", text)
	}
	return Token{Kind: TokenLiteral, Literal: &Literal{Kind: LitInt, Int: n}}, nil
}

// scanComment recognizes comments in order of specificity: doc block, doc
// line, block, line. The ok result is false when the input is not a comment.
func (t *Tokenizer) scanComment() (Token, bool, error) {
	rest := t.src[t.pos:]
	switch {
	case strings.HasPrefix(rest, "/**"):
		end := strings.Index(rest[3:], "*/")
		if end < 0 {
			return Token{}, true, t.unterminatedFrom(t.mark(), "unterminated documentation block comment")
		}
		content := rest[3 : 3+end]
		t.advance(3 + end + 2)
		return Token{Kind: TokenComment, Comment: &Comment{Content: strings.TrimSpace(content), Kind: CommentDocBlock}}, true, nil
	case strings.HasPrefix(rest, "///"):
		end := lineEnd(rest)
		content := rest[3:end]
		t.advance(end)
		return Token{Kind: TokenComment, Comment: &Comment{Content: strings.TrimSpace(content), Kind: CommentDocLine}}, true, nil
	case strings.HasPrefix(rest, "/*"):
		end := strings.Index(rest[2:], "*/")
		if end < 0 {
			return Token{}, true, t.unterminatedFrom(t.mark(), "unterminated block comment")
		}
		content := rest[2 : 2+end]
		t.advance(2 + end + 2)
		return Token{Kind: TokenComment, Comment: &Comment{Content: strings.TrimSpace(content), Kind: CommentBlock}}, true, nil
	case strings.HasPrefix(rest, "//"):
		end := lineEnd(rest)
		content := rest[2:end]
		t.advance(end)
		return Token{Kind: TokenComment, Comment: &Comment{Content: strings.TrimSpace(content), Kind: CommentLine}}, true, nil
	}
	return Token{}, false, nil
}

const tripleQuote = `"""`

func (t *Tokenizer) scanString() (Token, error) {
	if strings.HasPrefix(t.src[t.pos:], tripleQuote) {
		return t.scanTripleString()
	}
	return t.scanSingleString()
}

func (t *Tokenizer) scanSingleString() (Token, error) {
	start := t.mark()
	t.advance(1) // opening quote
	var parts []StringPart
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			parts = append(parts, StringPart{Kind: PartText, Text: text.String()})
			text.Reset()
		}
	}
	for {
		if t.pos >= len(t.src) {
			return Token{}, t.unterminatedFrom(start, "unterminated string literal")
		}
		c := t.src[t.pos]
		switch {
		case c == '"':
			t.advance(1)
			flush()
			return Token{Kind: TokenLiteral, Literal: &Literal{
				Kind: LitString,
				Str:  &StringLit{Parts: parts},
			}}, nil
		case c == '\n' || c == '\r':
			return Token{}, t.unterminatedFrom(start, "unterminated string literal: raw newline in single-quoted string")
		case c == '\\':
			esc := t.peekAt(1)
			decoded, ok := decodeEscape(esc)
			if !ok {
				return Token{}, t.errorf("illegal escape sequence \\%c", esc)
			}
			t.advance(2)
			text.WriteByte(decoded)
		case c == '$' && t.peekAt(1) == '{':
			name, err := t.scanInterpolation()
			if err != nil {
				return Token{}, err
			}
			flush()
			parts = append(parts, StringPart{Kind: PartInterpolation, Text: name})
		default:
			t.advance(1)
			text.WriteByte(c)
		}
	}
}

func (t *Tokenizer) scanTripleString() (Token, error) {
	start := t.mark()
	t.advance(len(tripleQuote))
	var parts []StringPart
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			parts = append(parts, StringPart{Kind: PartText, Text: text.String()})
			text.Reset()
		}
	}
	for {
		if t.pos >= len(t.src) {
			return Token{}, t.unterminatedFrom(start, "unterminated triple-quoted string literal")
		}
		rest := t.src[t.pos:]
		switch {
		case strings.HasPrefix(rest, tripleQuote):
			t.advance(len(tripleQuote))
			flush()
			return Token{Kind: TokenLiteral, Literal: &Literal{
				Kind: LitString,
				Str:  &StringLit{Triple: true, Parts: parts},
			}}, nil
		case rest[0] == '\n' || rest[0] == '\r':
			if rest[0] == '\r' && t.peekAt(1) == '\n' {
				t.advance(2)
			} else {
				t.advance(1)
			}
			flush()
			parts = append(parts, StringPart{Kind: PartNewline})
		case rest[0] == '$' && t.peekAt(1) == '{':
			name, err := t.scanInterpolation()
			if err != nil {
				return Token{}, err
			}
			flush()
			parts = append(parts, StringPart{Kind: PartInterpolation, Text: name})
		default:
			t.advance(1)
			text.WriteByte(rest[0])
		}
	}
}

func (t *Tokenizer) scanInterpolation() (string, error) {
	t.advance(2) // ${
	start := t.pos
	t.consumeWhile(isWordPart)
	if t.pos == start {
		return "", t.errorf("empty interpolation")
	}
	name := t.src[start:t.pos]
	if t.peekAt(0) != '}' {
		return "", t.errorf("unterminated interpolation ${%s", name)
	}
	t.advance(1)
	return name, nil
}

// errorf builds a single-position ParseError at the current location.
func (t *Tokenizer) errorf(format string, args ...any) error {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Found:   found(t.src[t.pos:]),
		Span: types.Span{
			Start:     t.pos,
			End:       min(t.pos+1, len(t.src)),
			Line:      t.line,
			Column:    t.col,
			EndLine:   t.line,
			EndColumn: t.col + 1,
		},
	}
}

// position is a saved scan location used to anchor error spans on the
// construct that failed rather than the point the failure was noticed.
type position struct {
	pos  int
	line int
	col  int
}

// mark captures the current scan location.
func (t *Tokenizer) mark() position {
	return position{pos: t.pos, line: t.line, col: t.col}
}

// unterminatedFrom builds a ParseError whose span runs from start to the end
// of input, so multi-line constructs report EndLine > Line. It consumes the
// rest of the input to compute the end location.
func (t *Tokenizer) unterminatedFrom(start position, message string) error {
	rest := t.src[start.pos:]
	t.advance(len(t.src) - t.pos)
	return &ParseError{
		Message: message,
		Found:   found(rest),
		Span: types.Span{
			Start:     start.pos,
			End:       len(t.src),
			Line:      start.line,
			Column:    start.col,
			EndLine:   t.line,
			EndColumn: t.col,
		},
	}
}

func found(rest string) string {
	if len(rest) > 20 {
		return rest[:20]
	}
	return rest
}

func lineEnd(s string) int {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return i
	}
	return len(s)
}

func decodeEscape(c byte) (byte, bool) {
	switch c {
	case '"':
		return '"', true
	case '\\':
		return '\\', true
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '$':
		return '$', true
	default:
		return 0, false
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool { return isWordStart(c) || isDigit(c) }

// advance moves the scan position n bytes forward, updating line and column
// per character so multi-line constructs produce correct end locations.
func (t *Tokenizer) advance(n int) {
	for range n {
		if t.pos >= len(t.src) {
			return
		}
		if t.src[t.pos] == '\n' {
			t.line++
			t.col = 1
		} else {
			t.col++
		}
		t.pos++
	}
}

func (t *Tokenizer) consumeWhile(pred func(byte) bool) {
	for t.pos < len(t.src) && pred(t.src[t.pos]) {
		t.advance(1)
	}
}

func (t *Tokenizer) peekAt(offset int) byte {
	if t.pos+offset >= len(t.src) {
		return 0
	}
	return t.src[t.pos+offset]
}
