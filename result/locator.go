package result

import (
	"strings"

	"github.com/poiesic/docroute/core"
)

// ArtifactPath is the result artifact's path below a job's output prefix.
const ArtifactPath = "custom_output/0/result.json"

// Locate returns the location of the result artifact for a completed job.
//
// The base prefix is the output location carried by the event when present.
// Otherwise it is the predicted prefix from the correlation record followed by
// {job_id}/0/, which is where the service nests a job's output.
func Locate(job *core.ExtractionJob, event *core.CompletionEvent) (core.ObjectRef, error) {
	var base core.ObjectRef
	switch {
	case event != nil && event.Output != nil && !event.Output.IsZero():
		base = core.ObjectRef{Bucket: event.Output.Bucket, Key: event.Output.Name}
	case job != nil && !job.OutputLocation.IsZero():
		jobID := job.JobID
		if event != nil && event.JobID != "" {
			jobID = event.JobID
		}
		base = core.ObjectRef{
			Bucket: job.OutputLocation.Bucket,
			Key:    normalizePrefix(job.OutputLocation.Key) + jobID + "/0/",
		}
	default:
		return core.ObjectRef{}, core.Permanent("locate result", ErrNoOutputLocation)
	}
	if base.Bucket == "" {
		return core.ObjectRef{}, core.Permanent("locate result", ErrNoOutputLocation)
	}
	return core.ObjectRef{
		Bucket: base.Bucket,
		Key:    normalizePrefix(base.Key) + ArtifactPath,
	}, nil
}

// normalizePrefix collapses repeated slashes, strips leading slashes and
// ensures a single trailing slash. An empty prefix stays empty.
func normalizePrefix(prefix string) string {
	parts := strings.FieldsFunc(prefix, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "/") + "/"
}
