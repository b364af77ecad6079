// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package tokenizer

import (
	"strings"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/google/go-cmp/cmp"
)

// kinds extracts the token kinds of a scan for compact assertions.
func kinds(tokens []TokenSpan) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, ts := range tokens {
		out[i] = ts.Token.Kind
	}
	return out
}

func TestTokenizeKeywordsAndIdentifiers(t *testing.T) {
	tokens, err := Tokenize("micro Greeter")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []TokenKind{TokenKeyword, TokenWhitespace, TokenIdentifier}
	if diff := cmp.Diff(want, kinds(tokens)); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if tokens[0].Token.Keyword != KeywordMicro {
		t.Errorf("keyword = %q, want micro", tokens[0].Token.Keyword)
	}
	if tokens[2].Token.Text != "Greeter" {
		t.Errorf("identifier text = %q, want Greeter", tokens[2].Token.Text)
	}
}

func TestTokenizeKeywordPrefixIsIdentifier(t *testing.T) {
	// A word that merely starts with a keyword must scan as one identifier.
	tokens, err := Tokenize("online")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token.Kind != TokenIdentifier {
		t.Fatalf("got %v, want a single identifier", tokens)
	}
}

func TestTokenizeLiterals(t *testing.T) {
	tests := []struct {
		input string
		check func(t *testing.T, tok Token)
	}{
		{"42", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitInt || tok.Literal.Int != 42 {
				t.Errorf("got %+v, want Int 42", tok.Literal)
			}
		}},
		{"-7", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitInt || tok.Literal.Int != -7 {
				t.Errorf("got %+v, want Int -7", tok.Literal)
			}
		}},
		{"1.5", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitFloat || tok.Literal.Float != 1.5 {
				t.Errorf("got %+v, want Float 1.5", tok.Literal)
			}
		}},
		{"true", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitBool || !tok.Literal.Bool {
				t.Errorf("got %+v, want Bool true", tok.Literal)
			}
		}},
		{"null", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitNull {
				t.Errorf("got %+v, want Null", tok.Literal)
			}
		}},
		{"250ms", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitDuration || tok.Literal.Duration != 250*time.Millisecond {
				t.Errorf("got %+v, want Duration 250ms", tok.Literal)
			}
		}},
		{"2h", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitDuration || tok.Literal.Duration != 2*time.Hour {
				t.Errorf("got %+v, want Duration 2h", tok.Literal)
			}
		}},
		{"1d", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitDuration || tok.Literal.Duration != 24*time.Hour {
				t.Errorf("got %+v, want Duration 24h", tok.Literal)
			}
		}},
		{"500us", func(t *testing.T, tok Token) {
			if tok.Literal.Kind != LitDuration || tok.Literal.Duration != 500*time.Microsecond {
				t.Errorf("got %+v, want Duration 500us", tok.Literal)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if err != nil {
				t.Fatalf("Tokenize(%q): %v", tt.input, err)
			}
			if len(tokens) != 1 || tokens[0].Token.Kind != TokenLiteral {
				t.Fatalf("got %v, want a single literal", tokens)
			}
			tt.check(t, tokens[0].Token)
		})
	}
}

func TestTokenizeBinaryMinusAfterIdentifier(t *testing.T) {
	tokens, err := Tokenize("a-1")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []TokenKind{TokenIdentifier, TokenOperator, TokenLiteral}
	if diff := cmp.Diff(want, kinds(tokens)); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if tokens[2].Token.Literal.Int != 1 {
		t.Errorf("literal = %d, want 1", tokens[2].Token.Literal.Int)
	}
}

func TestTokenizeStringInterpolation(t *testing.T) {
	tokens, err := Tokenize(`"hello ${name}!"`)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	lit := tokens[0].Token.Literal
	if lit.Kind != LitString || lit.Str.Triple {
		t.Fatalf("got %+v, want single-quoted string", lit)
	}
	want := []StringPart{
		{Kind: PartText, Text: "hello "},
		{Kind: PartInterpolation, Text: "name"},
		{Kind: PartText, Text: "!"},
	}
	if diff := cmp.Diff(want, lit.Str.Parts); diff != "" {
		t.Fatalf("parts mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeTripleQuotedString(t *testing.T) {
	input := "\"\"\"line one\nline ${two}\"\"\""
	tokens, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	lit := tokens[0].Token.Literal
	if !lit.Str.Triple {
		t.Fatal("expected triple-quoted string")
	}
	want := []StringPart{
		{Kind: PartText, Text: "line one"},
		{Kind: PartNewline},
		{Kind: PartText, Text: "line "},
		{Kind: PartInterpolation, Text: "two"},
	}
	if diff := cmp.Diff(want, lit.Str.Parts); diff != "" {
		t.Fatalf("parts mismatch (-want +got):\n%s", diff)
	}
	span := tokens[0].Span
	if span.Line != 1 || span.EndLine != 2 {
		t.Errorf("span lines = %d..%d, want 1..2", span.Line, span.EndLine)
	}
	if got := span.Text(input); got != input {
		t.Errorf("span text = %q, want the whole literal", got)
	}
}

func TestTokenizeUnterminatedTripleQuote(t *testing.T) {
	input := heredoc.Doc(`
		micro Bad {
		  state { s: String = """never
		closed
	`)
	_, err := Tokenize(input)
	if err == nil {
		t.Fatal("expected an error for an unterminated triple-quoted string")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if pe.Span.Line != 2 {
		t.Errorf("span line = %d, want 2 (the opening quote line)", pe.Span.Line)
	}
	if pe.Span.EndLine <= pe.Span.Line {
		t.Errorf("span end line = %d, want > %d", pe.Span.EndLine, pe.Span.Line)
	}
	if pe.Span.End > len(input) {
		t.Errorf("span end %d exceeds input length %d", pe.Span.End, len(input))
	}
}

func TestTokenizeRawNewlineInSingleQuoted(t *testing.T) {
	_, err := Tokenize("\"broken\nstring\"")
	if err == nil {
		t.Fatal("expected an error for a raw newline in a single-quoted string")
	}
}

func TestTokenizeIllegalEscape(t *testing.T) {
	_, err := Tokenize(`"bad \q escape"`)
	if err == nil {
		t.Fatal("expected an error for an illegal escape")
	}
	if !strings.Contains(err.Error(), "illegal escape") {
		t.Errorf("error = %v, want an illegal escape message", err)
	}
}

func TestTokenizeComments(t *testing.T) {
	input := heredoc.Doc(`
		/** doc block */
		/// doc line
		/* plain block */
		// plain line
	`)
	tokens, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	var comments []Comment
	for _, ts := range tokens {
		if ts.Token.Kind == TokenComment {
			comments = append(comments, *ts.Token.Comment)
		}
	}
	want := []Comment{
		{Content: "doc block", Kind: CommentDocBlock},
		{Content: "doc line", Kind: CommentDocLine},
		{Content: "plain block", Kind: CommentBlock},
		{Content: "plain line", Kind: CommentLine},
	}
	if diff := cmp.Diff(want, comments); diff != "" {
		t.Fatalf("comments mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeUnexpectedCharacter(t *testing.T) {
	_, err := Tokenize("micro @oops")
	if err == nil {
		t.Fatal("expected an error for an unexpected character")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if !strings.HasPrefix(pe.Found, "@") {
		t.Errorf("found = %q, want the offending region", pe.Found)
	}
	if len(pe.Found) > 20 {
		t.Errorf("found length = %d, want at most 20", len(pe.Found))
	}
}

// TestTokenizeSpanConcatenation checks that concatenating every token's span
// text reproduces the source.
func TestTokenizeSpanConcatenation(t *testing.T) {
	source := heredoc.Doc(`
		micro Counter {
		  state { counter: Int = 0 }
		  observe {
		    on Bump() {
		      return Ok({counter: self.counter + 1})
		    }
		  }
		}
	`)
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	var rebuilt strings.Builder
	for _, ts := range tokens {
		if ts.Span.Start > ts.Span.End {
			t.Fatalf("span start %d > end %d", ts.Span.Start, ts.Span.End)
		}
		if ts.Span.Line < 1 || ts.Span.Column < 1 {
			t.Fatalf("span line/column must be 1-based, got %d:%d", ts.Span.Line, ts.Span.Column)
		}
		if got, want := ts.Span.Text(source), ts.Token.Text; got != want {
			t.Fatalf("span text %q != token text %q", got, want)
		}
		rebuilt.WriteString(ts.Token.Text)
	}
	if rebuilt.String() != source {
		t.Error("token concatenation does not reproduce the source")
	}
}

func TestPreprocess(t *testing.T) {
	source := heredoc.Doc(`
		/// greeter doc
		// dropped
		micro Greeter { /* dropped too */ }
	`)
	tokens, err := Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	filtered := Preprocess(tokens)
	for _, ts := range filtered {
		switch ts.Token.Kind {
		case TokenWhitespace, TokenNewline:
			t.Fatalf("preprocessed stream still holds %s", ts.Token.Kind)
		case TokenComment:
			if !ts.Token.Comment.Kind.IsDoc() {
				t.Fatalf("non-doc comment survived preprocessing: %q", ts.Token.Comment.Content)
			}
		}
	}
	if filtered[0].Token.Kind != TokenComment || filtered[0].Token.Comment.Content != "greeter doc" {
		t.Errorf("doc comment should lead the stream, got %v", filtered[0].Token)
	}
	// Spans of retained tokens are unchanged.
	if got := filtered[0].Span.Text(source); got != "/// greeter doc" {
		t.Errorf("retained span text = %q", got)
	}
}
