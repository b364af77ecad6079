// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/tokenizer"
	"github.com/go-kairei/kairei/types"
)

// init registers the grammar's documentation entries. Every named parser is
// categorized with examples, producing a self-describing grammar for
// tooling.
func init() {
	registerDoc(DocEntry{
		Name:        "root",
		Category:    CategoryRoot,
		Description: "A compilation unit: an optional world definition followed by micro-agent definitions.",
		Examples:    []string{`world App { policy "be helpful" } micro Greeter { }`},
		Related:     []string{"world", "microAgent"},
	})
	registerDoc(DocEntry{
		Name:        "world",
		Category:    CategoryWorld,
		Description: "A world definition holding global policies.",
		Examples:    []string{`world App { policy "respond in English" }`},
		Related:     []string{"root", "policy"},
	})
	registerDoc(DocEntry{
		Name:        "policy",
		Category:    CategoryAgent,
		Description: "A policy declaration: free text guiding LLM-backed behavior.",
		Examples:    []string{`policy "always answer concisely"`},
		Related:     []string{"world", "microAgent"},
	})
	registerDoc(DocEntry{
		Name:        "microAgent",
		Category:    CategoryAgent,
		Description: "A micro-agent definition: policies, state, lifecycle, and handler blocks.",
		Examples: []string{
			`micro Counter { state { count: Int = 0 } observe { on Bump() { return Ok({count: self.count + 1}) } } }`,
		},
		Related: []string{"state", "lifecycle", "handlerBlock"},
	})
	registerDoc(DocEntry{
		Name:        "state",
		Category:    CategoryAgent,
		Description: "The agent's mutable state block: typed variables with optional initial expressions.",
		Examples:    []string{`state { counter: Int = 0; greeting: String = "hi" }`},
		Related:     []string{"microAgent", "type"},
	})
	registerDoc(DocEntry{
		Name:        "lifecycle",
		Category:    CategoryAgent,
		Description: "The lifecycle block holding on_init and on_destroy handlers.",
		Examples:    []string{`lifecycle { on_init { emit Ready() } on_destroy { } }`},
		Related:     []string{"microAgent"},
	})
	registerDoc(DocEntry{
		Name:        "handlerBlock",
		Category:    CategoryHandler,
		Description: "An observe, answer, or react block grouping handlers of one kind.",
		Examples:    []string{`answer { on request Ping() -> Result<String, Error> { return Ok("pong") } }`},
		Related:     []string{"handler", "microAgent"},
	})
	registerDoc(DocEntry{
		Name:        "handler",
		Category:    CategoryHandler,
		Description: "One handler: an event or request type, parameters, a return type, and a block.",
		Examples:    []string{`on Tick(delta_time: Float) { return Ok(null) }`},
		Related:     []string{"handlerBlock", "block"},
	})
	registerDoc(DocEntry{
		Name:        "type",
		Category:    CategoryType,
		Description: "A type expression: simple, array, Map, Result, Option, or custom.",
		Examples:    []string{`Int`, `[String]`, `Map<String, Int>`, `Result<String, Error>`, `Option<Float>`},
		Related:     []string{"state", "handler"},
	})
	registerDoc(DocEntry{
		Name:        "block",
		Category:    CategoryStatement,
		Description: "A brace-delimited statement block.",
		Examples:    []string{`{ return Ok("done") }`},
		Related:     []string{"statement"},
	})
	registerDoc(DocEntry{
		Name:        "statement",
		Category:    CategoryStatement,
		Description: "A statement: return, if, emit, assignment, or expression, with an optional onFail handler.",
		Examples:    []string{`return Ok(self.counter)`, `self.counter = self.counter + 1`, `emit Bump()`},
		Related:     []string{"expression", "block"},
	})
	registerDoc(DocEntry{
		Name:        "expression",
		Category:    CategoryExpression,
		Description: "An expression with precedence-climbing binary operators.",
		Examples:    []string{`self.counter + 1`, `a == b && c < d`},
		Related:     []string{"primary", "statement"},
	})
	registerDoc(DocEntry{
		Name:        "primary",
		Category:    CategoryExpression,
		Description: "A primary expression: literal, variable, state access, call, request, await, think, Ok/Err, if, or match.",
		Examples:    []string{`Ok("pong")`, `await [request A.Q(), request B.Q()]`, `think("plan a trip")`},
		Related:     []string{"expression", "literal"},
	})
	registerDoc(DocEntry{
		Name:        "literal",
		Category:    CategoryLiteral,
		Description: "A literal: integer, float, boolean, null, duration, string, list, or map.",
		Examples:    []string{`42`, `1.5`, `true`, `10s`, `"hi ${name}"`, `[1, 2]`, `{count: 1}`},
		Related:     []string{"primary"},
	})
}

// Parse turns a preprocessed token stream into an AST root. On failure it
// returns a [*ParseError] holding the primary failure plus the secondary
// errors collected during the attempt; no partial AST is emitted.
func Parse(tokens []tokenizer.TokenSpan) (*ast.Root, error) {
	in := NewInput(tokens)
	rest, root, err := rootParser(in)
	if err != nil {
		return nil, withSecondary(in, err)
	}
	if !rest.AtEOF() {
		return nil, withSecondary(in, errorAt(rest, "unexpected token at top level"))
	}
	return root, nil
}

// withSecondary attaches the collected swallowed errors to the primary one.
func withSecondary(in Input, err error) error {
	pe, ok := err.(*ParseError)
	if !ok {
		return err
	}
	pe.Nested = in.collector.secondary(pe)
	return pe
}

// rootItem is either a world or an agent definition.
type rootItem struct {
	world *ast.WorldDef
	agent *ast.MicroAgentDef
}

func rootParser(in Input) (Input, *ast.Root, error) {
	start := in
	items := Many(Choice(
		Map(worldParser, func(w *ast.WorldDef) rootItem { return rootItem{world: w} }),
		Map(agentParser, func(a *ast.MicroAgentDef) rootItem { return rootItem{agent: a} }),
	))
	rest, parts, err := items(in)
	if err != nil {
		return in, nil, err
	}
	root := &ast.Root{}
	for _, item := range parts {
		switch {
		case item.world != nil:
			if root.World != nil {
				return in, nil, errorAt(in, "duplicate world definition %q", item.world.Name)
			}
			root.World = item.world
		case item.agent != nil:
			root.Agents = append(root.Agents, item.agent)
		}
	}
	out := ast.NewRoot(spanBetween(start, rest), root.World, root.Agents)
	return rest, out, nil
}

// docComments consumes leading documentation comments and returns their
// joined content.
func docComments(in Input) (Input, string, error) {
	doc := ""
	for {
		ts, ok := in.Peek()
		if !ok || ts.Token.Kind != tokenizer.TokenComment {
			return in, doc, nil
		}
		if doc != "" {
			doc += "\n"
		}
		doc += ts.Token.Comment.Content
		in = in.Advance()
	}
}

// staticString parses a string literal with no interpolation parts.
func staticString(in Input) (Input, string, error) {
	rest, ts, err := Token(tokenizer.TokenLiteral)(in)
	if err != nil {
		return in, "", err
	}
	lit := ts.Token.Literal
	if lit.Kind != tokenizer.LitString {
		return in, "", errorAt(in, "expected string literal, found %s", ts.Token)
	}
	se := stringExprFrom(ts)
	s, ok := se.Static()
	if !ok {
		return in, "", errorAt(in, "interpolation is not allowed here")
	}
	return rest, s, nil
}

func worldParser(in Input) (Input, *ast.WorldDef, error) {
	start := in
	in2, doc, _ := docComments(in)
	rest, _, err := Keyword(tokenizer.KeywordWorld)(in2)
	if err != nil {
		return in, nil, err
	}
	rest, name, err := Ident()(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, policies, err := Many(policyParser)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	w := ast.NewWorldDef(spanBetween(start, rest), name, policies)
	w.Doc = doc
	return rest, w, nil
}

func policyParser(in Input) (Input, string, error) {
	rest, _, err := Keyword(tokenizer.KeywordPolicy)(in)
	if err != nil {
		return in, "", err
	}
	rest, text, err := staticString(rest)
	if err != nil {
		return in, "", err
	}
	return rest, text, nil
}

// agentItem is one block inside a micro-agent body.
type agentItem struct {
	policy    string
	hasPolicy bool
	state     *ast.StateDef
	lifecycle *ast.LifecycleDef
	handlers  *ast.HandlerBlock
}

func agentParser(in Input) (Input, *ast.MicroAgentDef, error) {
	start := in
	in2, doc, _ := docComments(in)
	rest, _, err := Keyword(tokenizer.KeywordMicro)(in2)
	if err != nil {
		return in, nil, err
	}
	rest, name, err := Ident()(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	item := Choice(
		Map(policyParser, func(p string) agentItem { return agentItem{policy: p, hasPolicy: true} }),
		Map(stateParser, func(s *ast.StateDef) agentItem { return agentItem{state: s} }),
		Map(lifecycleParser, func(l *ast.LifecycleDef) agentItem { return agentItem{lifecycle: l} }),
		Map(handlerBlockParser, func(h *ast.HandlerBlock) agentItem { return agentItem{handlers: h} }),
	)
	rest, items, err := Many(item)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	def := ast.NewMicroAgentDef(spanBetween(start, rest), name)
	def.Doc = doc
	for _, it := range items {
		switch {
		case it.hasPolicy:
			def.Policies = append(def.Policies, it.policy)
		case it.state != nil:
			if def.State != nil {
				return in, nil, errorAt(in, "duplicate state block in agent %q", name)
			}
			def.State = it.state
		case it.lifecycle != nil:
			if def.Lifecycle != nil {
				return in, nil, errorAt(in, "duplicate lifecycle block in agent %q", name)
			}
			def.Lifecycle = it.lifecycle
		case it.handlers != nil:
			switch it.handlers.Kind {
			case ast.HandlerObserve:
				def.Observe = mergeHandlerBlocks(def.Observe, it.handlers)
			case ast.HandlerAnswer:
				def.Answer = mergeHandlerBlocks(def.Answer, it.handlers)
			case ast.HandlerReact:
				def.React = mergeHandlerBlocks(def.React, it.handlers)
			}
		}
	}
	return rest, def, nil
}

func mergeHandlerBlocks(existing, next *ast.HandlerBlock) *ast.HandlerBlock {
	if existing == nil {
		return next
	}
	existing.Handlers = append(existing.Handlers, next.Handlers...)
	return existing
}

func stateParser(in Input) (Input, *ast.StateDef, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordState)(in)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, vars, err := Many(stateVarParser)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	def := ast.NewStateDef(spanBetween(start, rest))
	for _, v := range vars {
		if _, dup := def.Variables[v.Name]; dup {
			return in, nil, errorAt(in, "duplicate state variable %q", v.Name)
		}
		def.Declare(v)
	}
	return rest, def, nil
}

func stateVarParser(in Input) (Input, *ast.VariableDef, error) {
	start := in
	in2, _, _ := docComments(in)
	rest, name, err := Ident()(in2)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimColon)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, typ, err := typeParser(rest)
	if err != nil {
		return in, nil, err
	}
	var initial ast.Expression
	if next, _, err2 := Op(tokenizer.OpAssign)(rest); err2 == nil {
		next2, e, err3 := expressionParser(next)
		if err3 != nil {
			return in, nil, err3
		}
		initial = e
		rest = next2
	}
	if next, _, err2 := Delim(tokenizer.DelimSemicolon)(rest); err2 == nil {
		rest = next
	}
	return rest, ast.NewVariableDef(spanBetween(start, rest), name, typ, initial), nil
}

func lifecycleParser(in Input) (Input, *ast.LifecycleDef, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordLifecycle)(in)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	var onInit, onDestroy []ast.Statement
	for {
		if next, _, err2 := Keyword(tokenizer.KeywordOnInit)(rest); err2 == nil {
			next2, block, err3 := blockParser(next)
			if err3 != nil {
				return in, nil, err3
			}
			onInit = block
			rest = next2
			continue
		}
		if next, _, err2 := Keyword(tokenizer.KeywordOnDestroy)(rest); err2 == nil {
			next2, block, err3 := blockParser(next)
			if err3 != nil {
				return in, nil, err3
			}
			onDestroy = block
			rest = next2
			continue
		}
		break
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewLifecycleDef(spanBetween(start, rest), onInit, onDestroy), nil
}

func handlerBlockParser(in Input) (Input, *ast.HandlerBlock, error) {
	start := in
	ts, ok := in.Peek()
	if !ok {
		return in, nil, errorAt(in, "expected handler block, found end of input")
	}
	var kind ast.HandlerKind
	switch {
	case ts.Token.IsKeyword(tokenizer.KeywordObserve):
		kind = ast.HandlerObserve
	case ts.Token.IsKeyword(tokenizer.KeywordAnswer):
		kind = ast.HandlerAnswer
	case ts.Token.IsKeyword(tokenizer.KeywordReact):
		kind = ast.HandlerReact
	default:
		return in, nil, errorAt(in, "expected observe, answer, or react, found %s", ts.Token)
	}
	rest := in.Advance()
	rest, _, err := Delim(tokenizer.DelimOpenBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, handlers, err := Many(handlerParser(kind))(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewHandlerBlock(spanBetween(start, rest), kind, handlers), nil
}

// handlerParser parses one handler of the given kind.
func handlerParser(kind ast.HandlerKind) Parser[*ast.HandlerDef] {
	return func(in Input) (Input, *ast.HandlerDef, error) {
		start := in
		in2, doc, _ := docComments(in)
		rest, _, err := Keyword(tokenizer.KeywordOn)(in2)
		if err != nil {
			return in, nil, err
		}
		if kind == ast.HandlerAnswer {
			rest, _, err = Keyword(tokenizer.KeywordRequest)(rest)
			if err != nil {
				return in, nil, err
			}
		}
		rest, name, err := eventNameParser(rest)
		if err != nil {
			return in, nil, err
		}
		rest, _, err = Delim(tokenizer.DelimOpenParen)(rest)
		if err != nil {
			return in, nil, err
		}
		rest, params, err := SepBy(parameterParser, Delim(tokenizer.DelimComma))(rest)
		if err != nil {
			return in, nil, err
		}
		rest, _, err = Delim(tokenizer.DelimCloseParen)(rest)
		if err != nil {
			return in, nil, err
		}
		var ret *types.TypeInfo
		if next, _, err2 := Op(tokenizer.OpArrow)(rest); err2 == nil {
			next2, t, err3 := typeParser(next)
			if err3 != nil {
				return in, nil, err3
			}
			ret = t
			rest = next2
		}
		rest, block, err := blockParser(rest)
		if err != nil {
			return in, nil, err
		}
		def := ast.NewHandlerDef(spanBetween(start, rest), kind, name)
		def.Doc = doc
		def.Parameters = params
		if ret != nil {
			def.ReturnType = ret
		}
		def.Block = block
		return rest, def, nil
	}
}

// eventNameParser accepts an identifier or a built-in type name used as an
// event or request name (e.g. Tick, StateUpdated, Ping).
func eventNameParser(in Input) (Input, string, error) {
	ts, ok := in.Peek()
	if !ok {
		return in, "", errorAt(in, "expected event name, found end of input")
	}
	switch ts.Token.Kind {
	case tokenizer.TokenIdentifier, tokenizer.TokenType:
		return in.Advance(), ts.Token.Text, nil
	default:
		return in, "", errorAt(in, "expected event name, found %s", ts.Token)
	}
}

func parameterParser(in Input) (Input, *ast.Parameter, error) {
	start := in
	rest, name, err := Ident()(in)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimColon)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, typ, err := typeParser(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewParameter(spanBetween(start, rest), name, typ), nil
}

func typeParser(in Input) (Input, *types.TypeInfo, error) {
	ts, ok := in.Peek()
	if !ok {
		return in, nil, errorAt(in, "expected type, found end of input")
	}
	switch {
	case ts.Token.IsDelimiter(tokenizer.DelimOpenBracket):
		rest := in.Advance()
		rest, elem, err := typeParser(rest)
		if err != nil {
			return in, nil, err
		}
		rest, _, err = Delim(tokenizer.DelimCloseBracket)(rest)
		if err != nil {
			return in, nil, err
		}
		return rest, types.Array(elem), nil
	case ts.Token.Kind == tokenizer.TokenType:
		name := ts.Token.Text
		rest := in.Advance()
		switch name {
		case "Result":
			rest, args, err := typeArgs(rest, 2)
			if err != nil {
				return in, nil, err
			}
			return rest, types.Result(args[0], args[1]), nil
		case "Option":
			rest, args, err := typeArgs(rest, 1)
			if err != nil {
				return in, nil, err
			}
			return rest, types.Option(args[0]), nil
		case "Map":
			rest, args, err := typeArgs(rest, 2)
			if err != nil {
				return in, nil, err
			}
			return rest, types.MapOf(args[0], args[1]), nil
		default:
			return rest, types.Simple(name), nil
		}
	case ts.Token.Kind == tokenizer.TokenIdentifier:
		return in.Advance(), types.Custom(ts.Token.Text), nil
	default:
		return in, nil, errorAt(in, "expected type, found %s", ts.Token)
	}
}

// typeArgs parses <T> or <T, U> generic argument lists.
func typeArgs(in Input, n int) (Input, []*types.TypeInfo, error) {
	rest, _, err := Op(tokenizer.OpLess)(in)
	if err != nil {
		return in, nil, err
	}
	args := make([]*types.TypeInfo, 0, n)
	for i := range n {
		if i > 0 {
			rest, _, err = Delim(tokenizer.DelimComma)(rest)
			if err != nil {
				return in, nil, err
			}
		}
		var t *types.TypeInfo
		rest, t, err = typeParser(rest)
		if err != nil {
			return in, nil, err
		}
		args = append(args, t)
	}
	rest, _, err = Op(tokenizer.OpGreater)(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, args, nil
}

func blockParser(in Input) (Input, []ast.Statement, error) {
	rest, _, err := Delim(tokenizer.DelimOpenBrace)(in)
	if err != nil {
		return in, nil, err
	}
	rest, stmts, err := Many(statementParser)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Delim(tokenizer.DelimCloseBrace)(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, stmts, nil
}

func statementParser(in Input) (Input, ast.Statement, error) {
	start := in
	rest, inner, err := baseStatement(in)
	if err != nil {
		return in, nil, err
	}
	// Optional onFail clause wraps the statement.
	if next, _, err2 := Keyword(tokenizer.KeywordOnFail)(rest); err2 == nil {
		binding := ""
		if next2, _, err3 := Delim(tokenizer.DelimOpenParen)(next); err3 == nil {
			next3, name, err4 := Ident()(next2)
			if err4 != nil {
				return in, nil, err4
			}
			next3, _, err4 = Delim(tokenizer.DelimCloseParen)(next3)
			if err4 != nil {
				return in, nil, err4
			}
			binding = name
			next = next3
		}
		next, handler, err3 := blockParser(next)
		if err3 != nil {
			return in, nil, err3
		}
		inner = ast.NewWithErrorStatement(spanBetween(start, next), inner, binding, handler)
		rest = next
	}
	if next, _, err2 := Delim(tokenizer.DelimSemicolon)(rest); err2 == nil {
		rest = next
	}
	return rest, inner, nil
}

func baseStatement(in Input) (Input, ast.Statement, error) {
	ts, ok := in.Peek()
	if !ok {
		return in, nil, errorAt(in, "expected statement, found end of input")
	}
	switch {
	case ts.Token.IsKeyword(tokenizer.KeywordReturn):
		return returnStatement(in)
	case ts.Token.IsKeyword(tokenizer.KeywordIf):
		return ifStatement(in)
	case ts.Token.IsKeyword(tokenizer.KeywordEmit):
		return emitStatement(in)
	default:
		return Choice[ast.Statement](assignStatement, exprStatement)(in)
	}
}

func returnStatement(in Input) (Input, ast.Statement, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordReturn)(in)
	if err != nil {
		return in, nil, err
	}
	rest, value, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewReturnStatement(spanBetween(start, rest), value), nil
}

func ifStatement(in Input) (Input, ast.Statement, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordIf)(in)
	if err != nil {
		return in, nil, err
	}
	rest, cond, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	rest, then, err := blockParser(rest)
	if err != nil {
		return in, nil, err
	}
	var els []ast.Statement
	if next, _, err2 := Keyword(tokenizer.KeywordElse)(rest); err2 == nil {
		next2, block, err3 := blockParser(next)
		if err3 != nil {
			return in, nil, err3
		}
		els = block
		rest = next2
	}
	return rest, ast.NewIfStatement(spanBetween(start, rest), cond, then, els), nil
}

func emitStatement(in Input) (Input, ast.Statement, error) {
	start := in
	rest, _, err := Keyword(tokenizer.KeywordEmit)(in)
	if err != nil {
		return in, nil, err
	}
	rest, name, err := eventNameParser(rest)
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
	return rest, ast.NewEmitStatement(spanBetween(start, rest), name, args), nil
}

func assignStatement(in Input) (Input, ast.Statement, error) {
	start := in
	rest, targets, err := sepBy1(assignTarget, Delim(tokenizer.DelimComma))(in)
	if err != nil {
		return in, nil, err
	}
	rest, _, err = Op(tokenizer.OpAssign)(rest)
	if err != nil {
		return in, nil, err
	}
	rest, value, err := expressionParser(rest)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewAssignStatement(spanBetween(start, rest), targets, value), nil
}

// sepBy1 is SepBy requiring at least one element.
func sepBy1[A, S any](p Parser[A], sep Parser[S]) Parser[[]A] {
	return func(in Input) (Input, []A, error) {
		rest, first, err := p(in)
		if err != nil {
			return in, nil, err
		}
		out := []A{first}
		in = rest
		for {
			next, _, err := sep(in)
			if err != nil {
				return in, out, nil
			}
			next2, a, err := p(next)
			if err != nil {
				return in, out, nil
			}
			out = append(out, a)
			in = next2
		}
	}
}

// assignTarget parses a state access or a variable name.
func assignTarget(in Input) (Input, ast.Expression, error) {
	ts, ok := in.Peek()
	if !ok {
		return in, nil, errorAt(in, "expected assignment target, found end of input")
	}
	if ts.Token.IsKeyword(tokenizer.KeywordSelf) {
		return stateAccessParser(in)
	}
	start := in
	rest, name, err := Ident()(in)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewVariableExpr(spanBetween(start, rest), name), nil
}

func exprStatement(in Input) (Input, ast.Statement, error) {
	start := in
	rest, e, err := expressionParser(in)
	if err != nil {
		return in, nil, err
	}
	return rest, ast.NewExpressionStatement(spanBetween(start, rest), e), nil
}
