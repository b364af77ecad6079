// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/go-kairei/kairei/ast"
	"github.com/go-kairei/kairei/tokenizer"
	"github.com/go-kairei/kairei/types"
)

// parseSource runs the full front half of the front-end: tokenize,
// preprocess, parse.
func parseSource(t *testing.T, source string) *ast.Root {
	t.Helper()
	tokens, err := tokenizer.Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	root, err := Parse(tokenizer.Preprocess(tokens))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return root
}

func parseError(t *testing.T, source string) *ParseError {
	t.Helper()
	tokens, err := tokenizer.Tokenize(source)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	_, err = Parse(tokenizer.Preprocess(tokens))
	if err == nil {
		t.Fatal("expected a parse error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	return pe
}

func TestParseHelloAgent(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		micro E {
		  answer {
		    on request Ping() -> Result<String, Error> {
		      return Ok("pong")
		    }
		  }
		}
	`))
	if len(root.Agents) != 1 {
		t.Fatalf("agents = %d, want 1", len(root.Agents))
	}
	agent := root.Agents[0]
	if agent.Name != "E" {
		t.Errorf("name = %q, want E", agent.Name)
	}
	if agent.Answer == nil || len(agent.Answer.Handlers) != 1 {
		t.Fatal("expected one answer handler")
	}
	h := agent.Answer.Handlers[0]
	if h.EventName != "Ping" {
		t.Errorf("handler event = %q, want Ping", h.EventName)
	}
	want := types.Result(types.TypeString, types.TypeError)
	if !h.ReturnType.Equal(want) {
		t.Errorf("return type = %s, want %s", h.ReturnType, want)
	}
	ret, ok := h.Block[0].(*ast.ReturnStatement)
	if !ok {
		t.Fatalf("statement type = %T, want return", h.Block[0])
	}
	if _, ok := ret.Value.(*ast.OkExpr); !ok {
		t.Fatalf("return value type = %T, want Ok wrapper", ret.Value)
	}
}

func TestParseWorldAndPolicies(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		world Travel {
		  policy "answer in English"
		  policy "be concise"
		}
		micro Planner {
		  policy "prefer trains"
		}
	`))
	if root.World == nil || root.World.Name != "Travel" {
		t.Fatal("expected world Travel")
	}
	if diff := cmp.Diff([]string{"answer in English", "be concise"}, root.World.Policies); diff != "" {
		t.Errorf("world policies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"prefer trains"}, root.Agents[0].Policies); diff != "" {
		t.Errorf("agent policies mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStateBlock(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		micro Counter {
		  state {
		    counter: Int = 0;
		    name: String = "c";
		    window: Duration = 10s;
		    history: [Int] = [1, 2, 3]
		  }
		}
	`))
	state := root.Agents[0].State
	if state == nil {
		t.Fatal("expected a state block")
	}
	if diff := cmp.Diff([]string{"counter", "name", "window", "history"}, state.Order); diff != "" {
		t.Fatalf("declaration order mismatch (-want +got):\n%s", diff)
	}
	if !state.Variables["history"].Type.Equal(types.Array(types.TypeInt)) {
		t.Errorf("history type = %s, want [Int]", state.Variables["history"].Type)
	}
	lit, ok := state.Variables["window"].Initial.(*ast.LiteralExpr)
	if !ok {
		t.Fatalf("window initial type = %T, want literal", state.Variables["window"].Initial)
	}
	if d, ok := lit.Value.(types.DurationValue); !ok || time.Duration(d) != 10*time.Second {
		t.Errorf("window initial = %s, want 10s", lit.Value)
	}
}

func TestParseLifecycleAndHandlers(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		micro Worker {
		  lifecycle {
		    on_init { emit Ready() }
		    on_destroy { emit Gone() }
		  }
		  observe {
		    on Tick(delta_time: Float) {
		      return Ok({last: delta_time})
		    }
		  }
		  react {
		    on Alarm() {
		      emit Escalate(level: 2)
		      return Ok(null)
		    }
		  }
		}
	`))
	agent := root.Agents[0]
	if agent.Lifecycle == nil || len(agent.Lifecycle.OnInit) != 1 || len(agent.Lifecycle.OnDestroy) != 1 {
		t.Fatal("expected on_init and on_destroy blocks")
	}
	if agent.Observe == nil || agent.Observe.Handlers[0].EventName != "Tick" {
		t.Fatal("expected an observe handler on Tick")
	}
	if got := agent.Observe.Handlers[0].Parameters[0].Name; got != "delta_time" {
		t.Errorf("parameter = %q, want delta_time", got)
	}
	if agent.React == nil || agent.React.Handlers[0].EventName != "Alarm" {
		t.Fatal("expected a react handler on Alarm")
	}
	emit, ok := agent.React.Handlers[0].Block[0].(*ast.EmitStatement)
	if !ok {
		t.Fatalf("statement type = %T, want emit", agent.React.Handlers[0].Block[0])
	}
	if emit.EventName != "Escalate" || emit.Args[0].Name != "level" {
		t.Errorf("emit = %s(%s), want Escalate(level)", emit.EventName, emit.Args[0].Name)
	}
}

func TestParseBinaryPrecedence(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		micro M {
		  answer {
		    on request Q() -> Result<String, Error> {
		      x = 1 + 2 * 3 == 7 && true
		      return Ok("done")
		    }
		  }
		}
	`))
	assign := root.Agents[0].Answer.Handlers[0].Block[0].(*ast.AssignStatement)
	and, ok := assign.Value.(*ast.BinaryExpr)
	if !ok || and.Op != ast.OpAnd {
		t.Fatalf("top operator = %v, want &&", assign.Value)
	}
	eq, ok := and.Left.(*ast.BinaryExpr)
	if !ok || eq.Op != ast.OpEq {
		t.Fatalf("left of && = %v, want ==", and.Left)
	}
	add, ok := eq.Left.(*ast.BinaryExpr)
	if !ok || add.Op != ast.OpAdd {
		t.Fatalf("left of == = %v, want +", eq.Left)
	}
	mul, ok := add.Right.(*ast.BinaryExpr)
	if !ok || mul.Op != ast.OpMul {
		t.Fatalf("right of + = %v, want *", add.Right)
	}
}

func TestParseRequestAndAwait(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		micro Orchestrator {
		  answer {
		    on request Plan() -> Result<String, Error> {
		      results = await [request A.Quote(city: "Paris"), request B.Quote() with { timeout: 5s }]
		      single = request C.Check()
		      return Ok("ok")
		    }
		  }
		}
	`))
	block := root.Agents[0].Answer.Handlers[0].Block
	await := block[0].(*ast.AssignStatement).Value.(*ast.AwaitExpr)
	if len(await.Requests) != 2 {
		t.Fatalf("await requests = %d, want 2", len(await.Requests))
	}
	first := await.Requests[0].(*ast.RequestExpr)
	if first.Target != "A" || first.RequestType != "Quote" {
		t.Errorf("first request = %s.%s, want A.Quote", first.Target, first.RequestType)
	}
	if first.Args[0].Name != "city" {
		t.Errorf("argument name = %q, want city", first.Args[0].Name)
	}
	second := await.Requests[1].(*ast.RequestExpr)
	if second.Timeout == nil {
		t.Error("second request should carry a timeout option")
	}
	single := block[1].(*ast.AssignStatement).Value.(*ast.RequestExpr)
	if single.Target != "C" {
		t.Errorf("single request target = %q, want C", single.Target)
	}
}

func TestParseThinkIfMatch(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		micro Guide {
		  state { mood: String = "calm" }
		  answer {
		    on request Suggest(city: String) -> Result<String, Error> {
		      tone = if self.mood == "calm" { "gentle" } else { "brisk" }
		      label = match city {
		        "Paris" => "romantic",
		        "Tokyo" => "electric",
		        _ => "unknown",
		      }
		      idea = think("suggest a trip to ${city}") with { temperature: 0.5 }
		      return Ok(idea)
		    }
		  }
		}
	`))
	block := root.Agents[0].Answer.Handlers[0].Block
	if _, ok := block[0].(*ast.AssignStatement).Value.(*ast.IfExpr); !ok {
		t.Error("expected an if expression")
	}
	match := block[1].(*ast.AssignStatement).Value.(*ast.MatchExpr)
	if len(match.Arms) != 3 {
		t.Fatalf("match arms = %d, want 3", len(match.Arms))
	}
	if match.Arms[2].Pattern != nil {
		t.Error("last arm should be the default")
	}
	think := block[2].(*ast.AssignStatement).Value.(*ast.ThinkExpr)
	if _, ok := think.With["temperature"]; !ok {
		t.Error("think should carry a temperature option")
	}
}

func TestParseOnFail(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		micro Careful {
		  answer {
		    on request Q() -> Result<String, Error> {
		      x = request Remote.Fetch() onFail(err) {
		        return Err(err)
		      }
		      return Ok("fine")
		    }
		  }
		}
	`))
	block := root.Agents[0].Answer.Handlers[0].Block
	we, ok := block[0].(*ast.WithErrorStatement)
	if !ok {
		t.Fatalf("statement type = %T, want onFail wrapper", block[0])
	}
	if we.ErrorBinding != "err" {
		t.Errorf("binding = %q, want err", we.ErrorBinding)
	}
	if _, ok := we.Statement.(*ast.AssignStatement); !ok {
		t.Errorf("inner statement type = %T, want assignment", we.Statement)
	}
}

func TestParseDocCommentsAttach(t *testing.T) {
	root := parseSource(t, heredoc.Doc(`
		/// Greets the world.
		micro Greeter {
		  answer {
		    /** Answers a ping. */
		    on request Ping() -> Result<String, Error> { return Ok("pong") }
		  }
		}
	`))
	if got := root.Agents[0].Doc; got != "Greets the world." {
		t.Errorf("agent doc = %q", got)
	}
	if got := root.Agents[0].Answer.Handlers[0].Doc; got != "Answers a ping." {
		t.Errorf("handler doc = %q", got)
	}
}

func TestParseErrorHasSpanAndSecondary(t *testing.T) {
	pe := parseError(t, heredoc.Doc(`
		micro Broken {
		  state { counter: Int = }
		}
	`))
	if pe.Span.Line < 1 || pe.Span.Column < 1 {
		t.Errorf("span = %+v, want 1-based location", pe.Span)
	}
	if !strings.Contains(pe.Error(), "parse error") {
		t.Errorf("message = %q", pe.Error())
	}
	if len(pe.Nested) == 0 {
		t.Error("expected secondary errors collected during the failed attempt")
	}
}

func TestParseErrorNoPartialAST(t *testing.T) {
	tokens, err := tokenizer.Tokenize("micro Broken {")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	root, err := Parse(tokenizer.Preprocess(tokens))
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if root != nil {
		t.Error("a failed parse must not emit a partial AST")
	}
}

func TestParserDocumentationRegistry(t *testing.T) {
	entries := Documentation()
	if len(entries) == 0 {
		t.Fatal("expected registered parser documentation")
	}
	byName := make(map[string]DocEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}
	for _, name := range []string{"root", "microAgent", "statement", "expression", "type"} {
		e, ok := byName[name]
		if !ok {
			t.Errorf("missing documentation for %q", name)
			continue
		}
		if e.Description == "" || len(e.Examples) == 0 {
			t.Errorf("documentation for %q lacks description or examples", name)
		}
	}
	if _, ok := DocumentationFor("microAgent"); !ok {
		t.Error("DocumentationFor(microAgent) not found")
	}
}

func TestParseCollectorIsPerParse(t *testing.T) {
	// Two parses must not share collected errors: the collector is created
	// fresh for each invocation.
	source := "micro Ok1 { }"
	for range 2 {
		root := parseSource(t, source)
		if len(root.Agents) != 1 {
			t.Fatal("parse failed unexpectedly")
		}
	}
	pe := parseError(t, "micro Bad { state { x: } }")
	if len(pe.Nested) > 8 {
		t.Errorf("secondary errors = %d, want at most 8", len(pe.Nested))
	}
}
