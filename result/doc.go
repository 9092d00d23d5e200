// Package result locates, fetches and parses extraction result artifacts.
//
// Locate derives the artifact location from the correlation record and the
// completion event. An ArtifactStore reads the artifact; a missing object is
// reported as core.MissingArtifactError so callers can retry while the
// artifact becomes visible. Parser validates the payload against a versioned
// JSON Schema and flattens it into extracted fields. Payloads that cannot be
// interpreted are reported as core.MalformedResultError carrying the raw bytes.
package result
