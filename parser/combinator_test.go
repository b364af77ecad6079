// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-kairei/kairei/tokenizer"
)

func tokensOf(t *testing.T, source string) Input {
	t.Helper()
	tokens, err := tokenizer.Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	return NewInput(tokenizer.Preprocess(tokens))
}

func TestSatisfyAndToken(t *testing.T) {
	in := tokensOf(t, "micro Greeter")
	rest, ts, err := Keyword(tokenizer.KeywordMicro)(in)
	if err != nil {
		t.Fatalf("Keyword: %v", err)
	}
	if !ts.Token.IsKeyword(tokenizer.KeywordMicro) {
		t.Errorf("token = %s", ts.Token)
	}
	if _, _, err := Token(tokenizer.TokenIdentifier)(rest); err != nil {
		t.Errorf("Token(Identifier): %v", err)
	}
	// Failure does not consume input.
	failedRest, _, err := Keyword(tokenizer.KeywordState)(in)
	if err == nil {
		t.Fatal("expected a failure")
	}
	if failedRest.pos != in.pos {
		t.Error("failed parser must not consume input")
	}
}

func TestManyAndMany1(t *testing.T) {
	in := tokensOf(t, "a b c 1")
	rest, idents, err := Many(Ident())(in)
	if err != nil {
		t.Fatalf("Many: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, idents); diff != "" {
		t.Fatalf("idents mismatch (-want +got):\n%s", diff)
	}
	// The terminating failure went into the collector.
	if len(in.collector.errors) == 0 {
		t.Error("Many should route its terminating failure into the collector")
	}
	if _, _, err := Many1(Ident())(rest); err == nil {
		t.Error("Many1 on a literal should fail")
	}
}

func TestChoiceReturnsFurthestError(t *testing.T) {
	in := tokensOf(t, "micro 1")
	// Both alternatives fail; the one that progressed past 'micro' wins.
	longer := Map(Sequence(Keyword(tokenizer.KeywordMicro), Ident()), func(p Pair[tokenizer.TokenSpan, string]) string {
		return p.Second
	})
	_, _, err := Choice(longer, Ident())(in)
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error type = %T", err)
	}
	if pe.Span.Start == 0 {
		t.Errorf("expected the error past the keyword, got span %+v", pe.Span)
	}
}

func TestSequence3(t *testing.T) {
	in := tokensOf(t, "micro Greeter {")
	_, triple, err := Sequence3(
		Keyword(tokenizer.KeywordMicro),
		Ident(),
		Delim(tokenizer.DelimOpenBrace),
	)(in)
	if err != nil {
		t.Fatalf("Sequence3: %v", err)
	}
	if triple.Second != "Greeter" {
		t.Errorf("middle output = %q", triple.Second)
	}
}

func TestOptionalRoutesSwallowedError(t *testing.T) {
	in := tokensOf(t, "micro")
	rest, got, err := Optional(Ident())(in)
	if err != nil {
		t.Fatalf("Optional: %v", err)
	}
	if got != nil {
		t.Errorf("Optional on mismatch = %v, want nil", got)
	}
	if rest.pos != in.pos {
		t.Error("Optional must not consume on failure")
	}
	if len(in.collector.errors) != 1 {
		t.Errorf("collector errors = %d, want the swallowed failure", len(in.collector.errors))
	}
}

func TestSepBy(t *testing.T) {
	in := tokensOf(t, "a, b, c")
	_, idents, err := SepBy(Ident(), Delim(tokenizer.DelimComma))(in)
	if err != nil {
		t.Fatalf("SepBy: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, idents); diff != "" {
		t.Fatalf("idents mismatch (-want +got):\n%s", diff)
	}
}

func TestLazyBreaksRecursion(t *testing.T) {
	calls := 0
	var p Parser[string]
	p = Lazy(func() Parser[string] {
		calls++
		return Ident()
	})
	in := tokensOf(t, "x y")
	for range 2 {
		var err error
		var out string
		in, out, err = p(in)
		if err != nil {
			t.Fatalf("Lazy: %v", err)
		}
		if out == "" {
			t.Error("empty output")
		}
	}
	if calls != 1 {
		t.Errorf("constructor calls = %d, want 1 (memoized)", calls)
	}
}
