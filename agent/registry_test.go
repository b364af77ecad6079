// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/go-kairei/kairei/event"
	"github.com/go-kairei/kairei/types"
)

const workerSource = `
micro Worker {
  state { jobs: Int = 0 }
  answer {
    on request Ping() -> Result<String, Error> { return Ok("pong") }
  }
}
`

func newTestRegistry(t *testing.T) (*Registry, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	reg := NewRegistry(bus, WithRegistryRequestTimeout(time.Second))
	t.Cleanup(func() {
		_ = reg.ShutdownAll(t.Context(), 2*time.Second)
	})
	return reg, bus
}

func TestRegistryRegisterAndRun(t *testing.T) {
	reg, _ := newTestRegistry(t)
	root := compile(t, workerSource)
	if _, err := reg.Register(root.Agents[0]); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Register(root.Agents[0]); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if reg.IsRunning("Worker") {
		t.Error("agent should not run before Run")
	}
	if err := reg.Run(t.Context(), "Worker"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reg.IsRunning("Worker") {
		t.Error("agent should be running")
	}
	if err := reg.Run(t.Context(), "Missing"); err == nil {
		t.Fatal("running an unknown agent should fail")
	}
}

func TestRegistryShutdownRemoves(t *testing.T) {
	reg, bus := newTestRegistry(t)
	watcher := bus.Subscribe()
	defer watcher.Close()

	root := compile(t, workerSource)
	if _, err := reg.Register(root.Agents[0]); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Run(t.Context(), "Worker"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := reg.Shutdown(t.Context(), "Worker"); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if len(reg.List()) != 0 {
		t.Errorf("List() = %v, want empty", reg.List())
	}
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-watcher.Events():
			if ev.Type.Kind == types.EventAgentRemoved {
				return
			}
		case <-deadline:
			t.Fatal("no AgentRemoved event")
		}
	}
}

func TestRegistryRestart(t *testing.T) {
	reg, _ := newTestRegistry(t)
	root := compile(t, workerSource)
	if _, err := reg.Register(root.Agents[0]); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Run(t.Context(), "Worker"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := reg.Restart(t.Context(), "Worker"); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if !reg.IsRunning("Worker") {
		t.Error("agent should be running after restart")
	}
}

func TestRegistryScaleUpAndDown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	root := compile(t, workerSource)
	if _, err := reg.Register(root.Agents[0]); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Run(t.Context(), "Worker"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	names, err := reg.ScaleUp(t.Context(), "Worker", 3)
	if err != nil {
		t.Fatalf("ScaleUp: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("instances = %d, want 3", len(names))
	}
	for i, name := range names {
		if !strings.HasPrefix(name, "Worker-") {
			t.Errorf("instance name %q lacks the base prefix", name)
		}
		if !strings.HasSuffix(name, "-"+string(rune('0'+i))) {
			t.Errorf("instance name %q lacks the index suffix %d", name, i)
		}
		if !reg.IsRunning(name) {
			t.Errorf("instance %q is not running", name)
		}
	}

	status := reg.ScaleStatus("Worker")
	if status.Total != 4 || status.Running != 4 {
		t.Errorf("status = %+v, want 4 total, 4 running", status)
	}

	// Clones answer like the base.
	resp, err := reg.bus.Request(t.Context(),
		types.NewEvent(types.Request("Ping", "tester", names[0], "")), time.Second)
	if err != nil {
		t.Fatalf("Request to clone: %v", err)
	}
	if got := resp.Parameter("result").String(); got != "pong" {
		t.Errorf("clone result = %q, want pong", got)
	}

	if err := reg.ScaleDown(t.Context(), "Worker", 2); err != nil {
		t.Fatalf("ScaleDown: %v", err)
	}
	status = reg.ScaleStatus("Worker")
	if status.Total != 2 {
		t.Errorf("after scale-down status = %+v, want 2 total", status)
	}
	// The base agent itself is never a scale-down victim.
	if !reg.IsRunning("Worker") {
		t.Error("base agent should survive scale-down")
	}
}

func TestRegistryScaleDownShortfall(t *testing.T) {
	reg, _ := newTestRegistry(t)
	root := compile(t, workerSource)
	if _, err := reg.Register(root.Agents[0]); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.ScaleUp(t.Context(), "Worker", 1); err != nil {
		t.Fatalf("ScaleUp: %v", err)
	}
	err := reg.ScaleDown(t.Context(), "Worker", 5)
	re, ok := err.(*Error)
	if !ok || re.Kind != KindScalingShortfall {
		t.Fatalf("error = %v, want scaling shortfall", err)
	}
	// The available instance was still shut down.
	if got := reg.ScaleStatus("Worker").Total; got != 1 {
		t.Errorf("total after shortfall = %d, want 1 (base only)", got)
	}
}

func TestRegistryScaleUpUnknownBase(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.ScaleUp(t.Context(), "Ghost", 2)
	re, ok := err.(*Error)
	if !ok || re.Kind != KindAgentNotFound {
		t.Fatalf("error = %v, want agent not found", err)
	}
}

func TestRegistryShutdownAllDeadline(t *testing.T) {
	bus := event.NewBus()
	reg := NewRegistry(bus)
	root := compile(t, heredoc.Doc(`
		micro A { }
		micro B { }
	`))
	for _, def := range root.Agents {
		if _, err := reg.Register(def); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if err := reg.RunAll(t.Context()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if err := reg.ShutdownAll(t.Context(), 2*time.Second); err != nil {
		t.Fatalf("ShutdownAll: %v", err)
	}
	if len(reg.List()) != 0 {
		t.Errorf("agents remain after ShutdownAll: %v", reg.List())
	}
}
