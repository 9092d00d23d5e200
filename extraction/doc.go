// Package extraction submits documents to the asynchronous extraction service.
//
// The Client interface is the boundary to the service. A Submitter turns a
// new-document event into a submitted job: it deduplicates redelivered events
// by fingerprint, predicts where the service will write its output, submits
// under a bounded retry policy, and persists the correlation record that the
// completion side later reads. Submission never waits for the job to finish.
package extraction
