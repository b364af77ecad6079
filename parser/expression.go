// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/tokenizer"
	"github.com/go-kairei/kairei/types"
)

// binaryLevels define precedence climbing, loosest first.
var binaryLevels = []map[tokenizer.Operator]ast.BinaryOp{
	{tokenizer.OpOr: ast.OpOr},
	{tokenizer.OpAnd: ast.OpAnd},
	{
		tokenizer.OpEqual:        ast.OpEq,
		tokenizer.OpNotEqual:     ast.OpNotEq,
		tokenizer.OpLess:         ast.OpLess,
		tokenizer.OpLessEqual:    ast.OpLessEq,
		tokenizer.OpGreater:      ast.OpGreater,
		tokenizer.OpGreaterEqual: ast.OpGreaterEq,
	},
	{tokenizer.OpPlus: ast.OpAdd, tokenizer.OpMinus: ast.OpSub},
	{tokenizer.OpStar: ast.OpMul, tokenizer.OpSlash: ast.OpDiv, tokenizer.OpPercent: ast.OpMod},
}

// expressionParser parses a full expression with binary operator precedence.
func expressionParser(in Input) (Input, ast.Expression, error) {
	return binaryLevel(0)(in)
}

func binaryLevel(level int) Parser[ast.Expression] {
	if level >= len(binaryLevels) {
		return primaryParser
	}
	ops := binaryLevels[level]
	next := binaryLevel(level + 1)
	return func(in Input) (Input, ast.Expression, error) {
		start := in
		rest, left, err := next(in)
		if err != nil {
			return in, nil, err
		}
		for {
			ts, ok := rest.Peek()
			if !ok || ts.Token.Kind != tokenizer.TokenOperator {
				return rest, left, nil
			}
			op, matches := ops[ts.Token.Operator]
			if !matches {
				return rest, left, nil
			}
			after := rest.Advance()
			after, right, err := next(after)
			if err != nil {
				return in, nil, err
			}
			left = ast.NewBinaryExpr(spanBetween(start, after), op, left, right)
			rest = after
		}
	}
}

// primaryParser parses a primary expression by dispatching on the next
// token.
func primaryParser(in Input) (Input, ast.Expression, error) {
	ts, ok := in.Peek()
	if !ok {
		return in, nil, errorAt(in, "expected expression, found end of input")
	}
	switch {
	case ts.Token.Kind == tokenizer.TokenLiteral:
		return literalParser(in)
	case ts.Token.IsDelimiter(tokenizer.DelimOpenParen):
		rest := in.Advance()
		rest, e, err := expressionParser(rest)
		if err != nil {
			return in, nil, err
		}
		rest, _, err = Delim(tokenizer.DelimCloseParen)(rest)
		if err != nil {
			return in, nil, err
		}
		return rest, e, nil
	case ts.Token.IsDelimiter(tokenizer.DelimOpenBracket):
		return listParser(in)
	case ts.Token.IsDelimiter(tokenizer.DelimOpenBrace):
		return mapParser(in)
	case ts.Token.IsKeyword(tokenizer.KeywordOk):
		return wrapperParser(in, true)
	case ts.Token.IsKeyword(tokenizer.KeywordErr):
		return wrapperParser(in, false)
	case ts.Token.IsKeyword(tokenizer.KeywordRequest):
		return requestParser(in)
	case ts.Token.IsKeyword(tokenizer.KeywordAwait):
		return awaitParser(in)
	case ts.Token.IsKeyword(tokenizer.KeywordThink):
		return thinkParser(in)
	case ts.Token.IsKeyword(tokenizer.KeywordIf):
		return ifExprParser(in)
	case ts.Token.IsKeyword(tokenizer.KeywordMatch):
		return matchParser(in)
	case ts.Token.IsKeyword(tokenizer.KeywordSelf):
		return stateAccessParser(in)
	case ts.Token.Kind == tokenizer.TokenIdentifier:
		return identExprParser(in)
	default:
		return in, nil, errorAt(in, "expected expression, found %s", ts.Token)
	}
}

// stringExprFrom converts a string literal token into a string expression.
func stringExprFrom(ts tokenizer.TokenSpan) *ast.StringExpr {
	lit := ts.Token.Literal.Str
	parts := make([]ast.StringPart, len(lit.Parts))
	for i, p := range lit.Parts {
		switch p.Kind {
		case tokenizer.PartText:
			parts[i] = ast.StringPart{Kind: ast.PartText, Text: p.Text}
		case tokenizer.PartInterpolation:
			parts[i] = ast.StringPart{Kind: ast.PartInterpolation, Text: p.Text}
		case tokenizer.PartNewline:
			parts[i] = ast.StringPart{Kind: ast.PartNewline}
		}
	}
	return ast.NewStringExpr(ts.Span, lit.Triple, parts)
}

func literalParser(in Input) (Input, ast.Expression, error) {
	rest, ts, err := Token(tokenizer.TokenLiteral)(in)
	if err != nil {
		return in, nil, err
	}
	lit := ts.Token.Literal
	switch lit.Kind {
	case tokenizer.LitInt:
		return rest, ast.NewLiteralExpr(ts.Span, types.IntValue(lit.Int)), nil
	case tokenizer.LitFloat:
		return rest, ast.NewLiteralExpr(ts.Span, types.FloatValue(lit.Float)), nil
	case tokenizer.LitBool:
		return rest, ast.NewLiteralExpr(ts.Span, types.BoolValue(lit.Bool)), nil
	case tokenizer.LitNull:
		return rest, ast.NewLiteralExpr(ts.Span, types.Null), nil
	case tokenizer.LitDuration:
		return rest, ast.NewLiteralExpr(ts.Span, types.DurationValue(lit.Duration)), nil
	case tokenizer.LitString:
		return rest, stringExprFrom(ts), nil
	default:
		return in, nil, errorAt(in, "unsupported literal %s", ts.Token)
	}
}

func listParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Delim(tokenizer.DelimOpenBracket)(in)
	if err != nil {
		return in, nil, err
	}
	rest, elems, err := SepBy(expressionParser, Delim(tokenizer.DelimComma))(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBracket)(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewListExpr(spanBetween(start, rest), elems), nil
}

func mapParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Delim(tokenizer.DelimOpenBrace)(in)
	if err != nil {
		return in, nil, err
	}
	entries := make(map[string]ast.Expression)
	var order []string
	first := true
	for {
		if next, _, err2 := Delim(tokenizer.DelimCloseBrace)(rest); err2 == nil {
			rest = next
			break
		}
		if !first {
			next, _, err2 := Delim(tokenizer.DelimComma)(rest)
			if err2 != nil {
				return in, nil, err2
			}
			rest = next
		}
		first = false
		next, key, err2 := Ident()(rest)
		if err2 != nil {
			return in, nil, err2
		}
		next, _, err2 = Delim(tokenizer.DelimColon)(next)
		if err2 != nil {
			return in, nil, err2
		}
		next, value, err2 := expressionParser(next)
		if err2 != nil {
			return in, nil, err2
		}
		if _, dup := entries[key]; dup {
			return in, nil, errorAt(rest, "duplicate map key %q", key)
		}
		entries[key] = value
		order = append(order, key)
		rest = next
	}
	return rest, ast.NewMapExpr(spanBetween(start, rest), order, entries), nil
}

func wrapperParser(in Input, isOk bool) (Input, ast.Expression, error) {
	start := in
	rest := in.Advance() // Ok or Err keyword
	rest, _, err := Delim(tokenizer.DelimOpenParen)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, value, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseParen)(rest)
	if err != nil {
		return in, nil, err
	}
	span := spanBetween(start, rest)
	if isOk {
		return rest, ast.NewOkExpr(span, value), nil
	}
	return rest, ast.NewErrExpr(span, value), nil
}

// requestParser parses `request Target.Type(args)` with an optional
// `with { timeout: 5s }` options clause.
func requestParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordRequest)(in)
	if err != nil {
		return in, nil, err
	}
	rest, target, err := Ident()(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Op(tokenizer.OpDot)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, requestType, err := eventNameParser(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenParen)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, args, err := SepBy(argumentParser, Delim(tokenizer.DelimComma))(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseParen)(rest)
	if err != nil {
		return in, nil, err
	}
	req := ast.NewRequestExpr(types.Span{}, target, requestType, args)
	if next, _, err2 := Keyword(tokenizer.KeywordWith)(rest); err2 == nil {
		next2, opts, err3 := optionsParser(next)
		if err3 != nil {
			return in, nil, err3
		}
		req.Timeout = opts["timeout"]
		rest = next2
	}
	out := ast.NewRequestExpr(spanBetween(start, rest), target, requestType, args)
	out.Timeout = req.Timeout
	return rest, out, nil
}

// optionsParser parses `{ key: expr, ... }` after a with keyword.
func optionsParser(in Input) (Input, map[string]ast.Expression, error) {
	rest, _, err := Delim(tokenizer.DelimOpenBrace)(in)
	if err != nil {
		return in, nil, err
	}
	opts := make(map[string]ast.Expression)
	first := true
	for {
		if next, _, err2 := Delim(tokenizer.DelimCloseBrace)(rest); err2 == nil {
			return next, opts, nil
		}
		if !first {
			next, _, err2 := Delim(tokenizer.DelimComma)(rest)
			if err2 != nil {
				return in, nil, err2
			}
			rest = next
		}
		first = false
		next, key, err2 := Ident()(rest)
		if err2 != nil {
			return in, nil, err2
		}
		next, _, err2 = Delim(tokenizer.DelimColon)(next)
		if err2 != nil {
			return in, nil, err2
		}
		next, value, err2 := expressionParser(next)
		if err2 != nil {
			return in, nil, err2
		}
		opts[key] = value
		rest = next
	}
}

// awaitParser parses `await [req, ...]` or `await request ...`.
func awaitParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordAwait)(in)
	if err != nil {
		return in, nil, err
	}
	if ts, ok := rest.Peek(); ok && ts.Token.IsKeyword(tokenizer.KeywordRequest) {
		rest2, req, err2 := requestParser(rest)
		if err2 != nil {
			return in, nil, err2
		}
		return rest2, ast.NewAwaitExpr(spanBetween(start, rest2), []ast.Expression{req}), nil
	}
	rest, _, err = Delim(tokenizer.DelimOpenBracket)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, reqs, err := SepBy(expressionParser, Delim(tokenizer.DelimComma))(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBracket)(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewAwaitExpr(spanBetween(start, rest), reqs), nil
}

// thinkParser parses `think(args)` with an optional `with { ... }` clause.
func thinkParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordThink)(in)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenParen)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, args, err := SepBy(argumentParser, Delim(tokenizer.DelimComma))(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseParen)(rest)
	if err != nil {
		return in, nil, err
	}
	var with map[string]ast.Expression
	if next, _, err2 := Keyword(tokenizer.KeywordWith)(rest); err2 == nil {
		next2, opts, err3 := optionsParser(next)
		if err3 != nil {
			return in, nil, err3
		}
		with = opts
		rest = next2
	}
	return rest, ast.NewThinkExpr(spanBetween(start, rest), args, with), nil
}

// ifExprParser parses an if expression: `if cond { expr } else { expr }`.
func ifExprParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordIf)(in)
	if err != nil {
		return in, nil, err
	}
	rest, cond, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, then, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Keyword(tokenizer.KeywordElse)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, els, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewIfExpr(spanBetween(start, rest), cond, then, els), nil
}

// matchParser parses `match subject { pattern => expr, ... }` where a
// pattern is a literal or `_` for the default arm.
func matchParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordMatch)(in)
	if err != nil {
		return in, nil, err
	}
	rest, subject, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	var arms []*ast.MatchArm
	for {
		if next, _, err2 := Delim(tokenizer.DelimCloseBrace)(rest); err2 == nil {
			rest = next
			break
		}
		armStart := rest
		var pattern ast.Expression
		if ts, ok := rest.Peek(); ok && ts.Token.Kind == tokenizer.TokenIdentifier && ts.Token.Text == "_" {
			rest = rest.Advance()
		} else {
			next, p, err2 := literalParser(rest)
			if err2 != nil {
				return in, nil, err2
			}
			pattern = p
			rest = next
		}
		next, _, err2 := Op(tokenizer.OpFatArrow)(rest)
		if err2 != nil {
			return in, nil, err2
		}
		next, body, err2 := expressionParser(next)
		if err2 != nil {
			return in, nil, err2
		}
		arms = append(arms, ast.NewMatchArm(spanBetween(armStart, next), pattern, body))
		rest = next
		if after, _, err3 := Delim(tokenizer.DelimComma)(rest); err3 == nil {
			rest = after
		}
	}
	if len(arms) == 0 {
		return in, nil, errorAt(in, "match expression requires at least one arm")
	}
	return rest, ast.NewMatchExpr(spanBetween(start, rest), subject, arms), nil
}

// stateAccessParser parses `self.a` or `self.a.b`.
func stateAccessParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordSelf)(in)
	if err != nil {
		return in, nil, err
	}
	var path []string
	for {
		next, _, err2 := Op(tokenizer.OpDot)(rest)
		if err2 != nil {
			break
		}
		next2, seg, err3 := Ident()(next)
		if err3 != nil {
			return in, nil, err3
		}
		path = append(path, seg)
		rest = next2
	}
	if len(path) == 0 {
		return in, nil, errorAt(rest, "expected '.' after self")
	}
	return rest, ast.NewStateAccessExpr(spanBetween(start, rest), path), nil
}

// identExprParser parses a variable reference or a function call.
func identExprParser(in Input) (Input, ast.Expression, error) {
	start := in
	rest, name, err := Ident()(in)
	if err != nil {
		return in, nil, err
	}
	if next, _, err2 := Delim(tokenizer.DelimOpenParen)(rest); err2 == nil {
		next2, args, err3 := SepBy(expressionParser, Delim(tokenizer.DelimComma))(next)
		if err3 != nil {
			return in, nil, err3
		}
		next2, _, err3 = Delim(tokenizer.DelimCloseParen)(next2)
		if err3 != nil {
			return in, nil, err3
		}
		return next2, ast.NewCallExpr(spanBetween(start, next2), name, args), nil
	}
	return rest, ast.NewVariableExpr(spanBetween(start, rest), name), nil
}

// argumentParser parses a named (`name: expr`) or positional argument.
func argumentParser(in Input) (Input, *ast.Argument, error) {
	start := in
	// Named form: identifier ':' expression.
	if ts, ok := in.Peek(); ok && ts.Token.Kind == tokenizer.TokenIdentifier {
		if next, _, err := Delim(tokenizer.DelimColon)(in.Advance()); err == nil {
			next2, value, err2 := expressionParser(next)
			if err2 != nil {
				return in, nil, err2
			}
			return next2, ast.NewArgument(spanBetween(start, next2), ts.Token.Text, value), nil
		}
	}
	rest, value, err := expressionParser(in)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewArgument(spanBetween(start, rest), "", value), nil
}
