// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

// Package kairei is a runtime for declaring and executing populations of
// cooperating micro-agents defined in a small domain-specific language.
//
// An agent declares mutable state, reacts to events, answers typed requests,
// and may orchestrate further requests to peer agents, including LLM-backed
// ones. The runtime hosts many such agents concurrently, routes events and
// typed request/response pairs between them, enforces lifecycle and scaling
// policies, and presents a uniform provider abstraction over external LLM
// backends.
package kairei

// Version is the version of the Kairei runtime.
var Version = "v0.0.0"
