// Package model defines the provider-agnostic invocation surface the swarm
// orchestrator drives, plus concrete helpers for testing.
//
// Core goals:
//   - Keep the orchestrator decoupled from vendor SDKs behind Invoker
//   - Normalize one agent turn as Request (model, system prompt, user
//     prompt, accumulated context) and Response (text, token usage)
//   - Facilitate lightweight mocking for tests (MockInvoker)
//
// Providers (OpenAI, Anthropic, Google) implement the Invoker interface in
// their subpackages so the topology executor remains transport independent.
package model
