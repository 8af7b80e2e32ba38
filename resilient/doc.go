// Package resilient wraps a primary model endpoint with bounded retries and an
// optional single-level fallback endpoint.
//
// An Invoker exposes the same contract as the endpoint it wraps: callers send a
// request and get a response or an error, and never learn whether the answer came
// from the primary or the fallback model. Each call runs a small explicit state
// machine:
//
//	PRIMARY_ACTIVE --success--> SUCCEEDED
//	PRIMARY_ACTIVE --fallback-triggering failure, fallback configured--> FALLBACK_ACTIVE
//	PRIMARY_ACTIVE --any other failure--> EXHAUSTED
//	FALLBACK_ACTIVE --success--> SUCCEEDED
//	FALLBACK_ACTIVE --failure--> EXHAUSTED
//
// Both active states run the endpoint under the same RetryPolicy with a fresh
// attempt counter. Invokers hold no mutable state between calls and are safe for
// concurrent use.
package resilient
