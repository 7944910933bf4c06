// Package syncer runs the fetch-and-reconcile pass over one world's work set.
//
// The shape is a fan-in pipeline: a fixed pool of workers fetches character
// data concurrently through the shared API client, and every database
// mutation is expressed as an idempotent intent funneled through a single
// writer goroutine that applies them in batch transactions. Workers never
// touch the database for writes, so there is exactly one mutator per run and
// re-running a pass converges to the same state.
//
// Failure handling is per step, per character: a throttled or broken fetch
// retries with capped exponential backoff when transient, is recorded in the
// sync_failures table otherwise, and never takes down the character or the
// run. Cancellation via context is the only way Run itself returns an error.
package syncer
