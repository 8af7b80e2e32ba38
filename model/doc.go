// Package model describes invocable models: their identity, provider, pricing and
// knowledge cutoff, bound to the llm.Client that actually performs the call.
//
// Endpoints are immutable values built once at startup from a Catalog and shared by
// reference across any number of concurrent calls.
package model
