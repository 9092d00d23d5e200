package docroute

import "github.com/poiesic/docroute/cloud"

// WithServices routes external dependencies through the AWS adapters in svc:
// extraction, artifacts, correlation store, record table and human review.
// Nil adapters are skipped. Options applied after it may still replace
// individual sinks.
func WithServices(svc *cloud.Services) Option {
	return func(o *options) {
		if svc == nil {
			return
		}
		if svc.Extraction != nil {
			o.client = svc.Extraction
		}
		if svc.Artifacts != nil {
			o.store = svc.Artifacts
		}
		if svc.Jobs != nil {
			o.jobs = svc.Jobs
		}
		if svc.Records != nil {
			o.sink = svc.Records
		}
		if svc.Reviews != nil {
			o.review = svc.Reviews
		}
	}
}
