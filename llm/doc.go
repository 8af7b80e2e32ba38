// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines common types, interfaces, and utilities that allow the codebase
// to work with multiple LLM providers (Anthropic, OpenAI, Ollama) without being
// tightly coupled to any specific provider's SDK.
//
// # Core Concepts
//
//  1. Messages: The Message type represents a conversation message with role (user, assistant, system)
//     and text content blocks.
//
//  2. Client Interface: The Client interface provides Synchronous() for non-streaming calls.
//     Implementations handle provider-specific details.
//
//  3. Middleware: The Middleware interface allows adding cross-cutting concerns like logging
//     without modifying provider implementations.
//
//  4. Errors: The Error type classifies every provider failure as permanent (repeating the call
//     cannot help) or transient (it might). Errors that carry neither kind are unclassified.
//
// Usage Example
//
//	client, _ := anthropic.NewAnthropicClient(apiKey, "", logger)
//
//	req := &llm.Request{
//	    Model: "claude-3-7-sonnet-latest",
//	    Messages: []llm.Message{
//	        llm.NewTextMessage(llm.RoleUser, "Hello!"),
//	    },
//	}
//
//	resp, err := client.Synchronous(ctx, req)
//
// # Extension Points
//
// To add a new LLM provider:
//  1. Implement the Client interface
//  2. Translate between provider-specific types and llm package types
//  3. Translate provider-specific errors to llm.Error values with the right Kind
package llm
