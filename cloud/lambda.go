package cloud

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/poiesic/docroute/core"
)

// DocumentEvents translates an S3 notification into new-document events.
// Only ObjectCreated records are kept; folder placeholder keys are skipped.
func DocumentEvents(e events.S3Event) ([]*core.DocumentEvent, error) {
	var out []*core.DocumentEvent
	for _, record := range e.Records {
		if record.EventName != "" && !strings.HasPrefix(record.EventName, "ObjectCreated") {
			continue
		}
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			decoded, err := url.QueryUnescape(record.S3.Object.Key)
			if err != nil {
				return nil, core.Permanent("decode object key", fmt.Errorf("%w: %q", err, record.S3.Object.Key))
			}
			key = decoded
		}
		if strings.HasSuffix(key, "/") {
			continue
		}
		out = append(out, &core.DocumentEvent{
			Bucket:    record.S3.Bucket.Name,
			Key:       key,
			ETag:      strings.Trim(record.S3.Object.ETag, `"`),
			VersionID: record.S3.Object.VersionID,
			EventTime: record.EventTime.UTC(),
		})
	}
	return out, nil
}

// jobDetail is the detail of a data automation job state change event.
type jobDetail struct {
	JobID          string         `json:"job_id"`
	JobStatus      string         `json:"job_status"`
	InputObject    *locationField `json:"input_s3_object"`
	OutputLocation *locationField `json:"output_s3_location"`
}

type locationField struct {
	Bucket string `json:"s3_bucket"`
	Name   string `json:"name"`
}

// CompletionEventFromCloudWatch decodes a job state change event.
// The output name is kept as reported; the locator normalizes it.
func CompletionEventFromCloudWatch(e events.CloudWatchEvent) (*core.CompletionEvent, error) {
	if len(e.Detail) == 0 || string(e.Detail) == "null" {
		return nil, core.Permanent("decode completion event", ErrMissingDetail)
	}
	var detail jobDetail
	if err := json.Unmarshal(e.Detail, &detail); err != nil {
		return nil, core.Permanent("decode completion event", err)
	}

	event := &core.CompletionEvent{
		JobID:     detail.JobID,
		Status:    jobStatus(detail.JobStatus),
		Timestamp: e.Time.UTC(),
	}
	if in := detail.InputObject; in != nil {
		event.SourceDocument = core.ObjectRef{Bucket: in.Bucket, Key: in.Name}
	}
	if out := detail.OutputLocation; out != nil && (out.Bucket != "" || out.Name != "") {
		event.Output = &core.Location{Bucket: out.Bucket, Name: out.Name}
	}
	return event, nil
}

// jobStatus folds the service's failure variants into FAILURE. Unknown
// values pass through so validation rejects them.
func jobStatus(s string) core.JobStatus {
	switch strings.ToUpper(s) {
	case "SUCCESS":
		return core.JobStatusSuccess
	case "FAILURE", "FAILED", "CLIENT_ERROR", "SERVICE_ERROR":
		return core.JobStatusFailure
	default:
		return core.JobStatus(s)
	}
}

// Response is the handler result shape: an HTTP-style status and a JSON body.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// NewResponse renders body as JSON.
func NewResponse(status int, body any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"message": err.Error()})
	}
	return Response{StatusCode: status, Body: string(data)}
}
