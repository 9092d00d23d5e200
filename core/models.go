package core

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Fingerprint is a deterministic content hash used for idempotency lookups.
type Fingerprint string

// FingerprintFromContent generates a deterministic fingerprint from text using BLAKE2b hashing.
// Identical content always produces identical fingerprints.
func FingerprintFromContent(text string) Fingerprint {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], binary.LittleEndian.Uint64(sum))
	return Fingerprint(hex.EncodeToString(buf[:]))
}

// Decision is the routing outcome for an extraction record.
type Decision string

const (
	// DecisionAutoAccept sends the record straight to the storage sink.
	DecisionAutoAccept Decision = "AUTO_ACCEPT"
	// DecisionNeedsReview sends the record to the human-review sink.
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
)

// Status labels written alongside stored records.
const (
	StatusHighConfidence = "high_confidence"
	StatusNeedsReview    = "needs_review"
	StatusPendingReview  = "pending_review"
)

// JobStatus is the terminal status reported by the extraction service.
type JobStatus string

const (
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailure JobStatus = "FAILURE"
)

// JobState tracks an extraction job through its lifecycle in the correlation store.
type JobState string

const (
	JobStateSubmitted JobState = "SUBMITTED"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
)

// ObjectRef points at an object in blob storage.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// URI renders the reference as an s3:// URI.
func (r ObjectRef) URI() string {
	return "s3://" + r.Bucket + "/" + strings.TrimPrefix(r.Key, "/")
}

// IsZero reports whether the reference is empty.
func (r ObjectRef) IsZero() bool {
	return r.Bucket == "" && r.Key == ""
}

// Document is an ingested source document. Immutable once created.
type Document struct {
	ID          string      `json:"id"`
	Source      ObjectRef   `json:"source"`
	IngestedAt  time.Time   `json:"ingested_at"`
	Fingerprint Fingerprint `json:"fingerprint"`
}

// DocumentIDFromKey derives a document identifier from a storage key:
// the basename with its extension removed.
func DocumentIDFromKey(key string) string {
	base := path.Base(strings.TrimSuffix(key, "/"))
	if base == "." || base == "/" {
		return ""
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// NewDocument builds a Document from a new-document event.
func NewDocument(event *DocumentEvent) *Document {
	return &Document{
		ID:          DocumentIDFromKey(event.Key),
		Source:      ObjectRef{Bucket: event.Bucket, Key: event.Key},
		IngestedAt:  event.EventTime.UTC(),
		Fingerprint: event.Fingerprint(),
	}
}

// DocumentEvent announces a newly stored document.
type DocumentEvent struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	ETag      string    `json:"etag,omitempty"`
	VersionID string    `json:"version_id,omitempty"`
	EventTime time.Time `json:"event_time"`
}

// Fingerprint identifies this particular upload of the object.
// Redelivery of the same event yields the same fingerprint; a re-upload does not.
func (e *DocumentEvent) Fingerprint() Fingerprint {
	revision := e.VersionID
	if revision == "" {
		revision = e.ETag
	}
	if revision == "" {
		revision = e.EventTime.UTC().Format(time.RFC3339Nano)
	}
	return FingerprintFromContent(e.Bucket + "\x00" + e.Key + "\x00" + revision)
}

// Location is a prefix or object location reported by the extraction service.
type Location struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// IsZero reports whether the location is empty.
func (l Location) IsZero() bool {
	return l.Bucket == "" && l.Name == ""
}

// CompletionEvent is the asynchronous notification that an extraction job finished.
type CompletionEvent struct {
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	SourceDocument ObjectRef `json:"source_document"`
	Output         *Location `json:"output,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// JobOutcome is what a completed job produced.
type JobOutcome struct {
	RecordID     string   `json:"record_id"`
	Decision     Decision `json:"decision"`
	Status       string   `json:"status"`
	ReviewTicket string   `json:"review_ticket,omitempty"`
}

// ExtractionJob is the durable correlation record written at submission time.
type ExtractionJob struct {
	JobID          string      `json:"job_id"`
	Handle         string      `json:"handle"` // Full invocation identifier returned by the service
	Document       Document    `json:"document"`
	SubmittedAt    time.Time   `json:"submitted_at"`
	OutputLocation ObjectRef   `json:"output_location"` // Predicted output prefix
	State          JobState    `json:"state"`
	Attempts       int         `json:"attempts"` // Completion attempts that did not finish
	LastError      string      `json:"last_error,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Outcome        *JobOutcome `json:"outcome,omitempty"`
}

// JobIDFromHandle extracts the job identifier from an invocation handle.
// Handles look like arn:aws:bedrock:us-east-1:123:data-automation-invocation/<job_id>.
func JobIDFromHandle(handle string) string {
	handle = strings.TrimRight(handle, "/")
	if i := strings.LastIndexByte(handle, '/'); i >= 0 {
		return handle[i+1:]
	}
	return handle
}

// ExtractedField is a single value pulled from a document by the extraction service.
type ExtractedField struct {
	Name       string          `json:"name"`
	Value      string          `json:"value"`
	Confidence float64         `json:"confidence"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	PageIndex  *int            `json:"page_index,omitempty"`
}

// ExtractionRecord is the routed unit: one per document.
type ExtractionRecord struct {
	ID                      string            `json:"id"`
	JobID                   string            `json:"job_id"`
	Document                Document          `json:"document"`
	OutputLocation          ObjectRef         `json:"output_location"`
	MatchedSchemaID         string            `json:"matched_schema_id,omitempty"`
	MatchedSchemaConfidence float64           `json:"matched_schema_confidence,omitempty"`
	Classification          string            `json:"classification,omitempty"`
	Fields                  []ExtractedField  `json:"fields"`
	Defaults                map[string]string `json:"defaults,omitempty"` // Display values for absent fields; never aggregated
	AggregateConfidence     float64           `json:"aggregate_confidence"`
	HasConfidence           bool              `json:"has_confidence"`
	Decision                Decision          `json:"decision"`
	Status                  string            `json:"status"`
	FlaggedFields           []string          `json:"flagged_fields,omitempty"`
	ReviewReason            string            `json:"review_reason,omitempty"`
	ReviewTicket            string            `json:"review_ticket,omitempty"`
	ReviewTaskID            string            `json:"review_task_id,omitempty"`
	RawPayload              []byte            `json:"raw_payload,omitempty"`
	ProcessedAt             time.Time         `json:"processed_at"`
}

// Field returns the named field, if present.
func (r *ExtractionRecord) Field(name string) (ExtractedField, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ExtractedField{}, false
}

// FieldConfidences maps present field names to their confidence.
func (r *ExtractionRecord) FieldConfidences() map[string]float64 {
	out := make(map[string]float64, len(r.Fields))
	for _, f := range r.Fields {
		out[f.Name] = f.Confidence
	}
	return out
}

// Values maps field names to string values, filling absent fields from Defaults.
func (r *ExtractionRecord) Values() map[string]string {
	out := make(map[string]string, len(r.Fields)+len(r.Defaults))
	for name, value := range r.Defaults {
		out[name] = value
	}
	for _, f := range r.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// ReviewTask is what a human reviewer receives for a NEEDS_REVIEW record.
type ReviewTask struct {
	ID               string             `json:"id"`
	RecordID         string             `json:"record_id"`
	JobID            string             `json:"job_id"`
	WorkflowID       string             `json:"workflow_id"`
	Record           *ExtractionRecord  `json:"record"`
	FieldConfidences map[string]float64 `json:"field_confidences"`
	FlaggedFields    []string           `json:"flagged_fields"`
	Reason           string             `json:"reason"`
	CreatedAt        time.Time          `json:"created_at"`
}
