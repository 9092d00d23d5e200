package replay

import (
	"strings"
	"testing"

	"github.com/poiesic/docroute/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	input := strings.Join([]string{
		`# recorded 2026-01-05`,
		`{"job_id":"job-1","status":"SUCCESS","source_document":{"bucket":"in","key":"a.pdf"}}`,
		``,
		`{"version":"0","detail-type":"Bedrock Data Automation Job Succeeded","time":"2026-01-05T14:42:14Z","detail":{"job_id":"job-2","job_status":"SUCCESS","input_s3_object":{"s3_bucket":"in","name":"b.pdf"},"output_s3_location":{"s3_bucket":"out","name":"output/b//job-2/0"}}}`,
		`{"job_id":"job-3","status":"FAILURE","output":{"bucket":"out","name":"output/c/job-3/0"}}`,
	}, "\n")

	events, err := ReadEvents(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "job-1", events[0].JobID)
	assert.Equal(t, core.ObjectRef{Bucket: "in", Key: "a.pdf"}, events[0].SourceDocument)
	assert.Nil(t, events[0].Output)

	assert.Equal(t, "job-2", events[1].JobID)
	require.NotNil(t, events[1].Output)
	assert.Equal(t, "output/b//job-2/0", events[1].Output.Name)

	assert.Equal(t, core.JobStatusFailure, events[2].Status)
	require.NotNil(t, events[2].Output)
	assert.Equal(t, "out", events[2].Output.Bucket)
}

func TestReadEvents_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", "{\"job_id\":\"job-1\"\n{oops"},
		{"empty object", "{}"},
		{"envelope without detail body", `{"detail":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadEvents(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestReadEvents_LineNumberInError(t *testing.T) {
	input := "{\"job_id\":\"a\",\"status\":\"SUCCESS\"}\n\n{bad"
	_, err := ReadEvents(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}
