// Package routing turns field confidences into a routing decision and
// dispatches the record accordingly.
//
// Aggregate and Decide are pure. A record whose aggregate confidence meets the
// threshold is AUTO_ACCEPT and goes to the storage sink; anything else,
// including a record with no scored fields, is NEEDS_REVIEW and goes to the
// review sink. Both sinks are keyed by stable identifiers so repeated
// dispatch of the same record is harmless.
package routing
