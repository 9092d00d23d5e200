// Package replay feeds recorded completion events through a completion
// handler concurrently.
//
// Events are read from JSON lines, either in the pipeline's own
// CompletionEvent form or as raw EventBridge envelopes. A Runner dispatches
// them on a bounded worker pool and reports progress and a per-event result.
// Replaying an event whose job already completed is harmless: the handler
// returns the stored outcome without dispatching again.
package replay
