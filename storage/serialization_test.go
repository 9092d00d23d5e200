package storage

import (
	"testing"
	"time"

	"github.com/poiesic/docroute/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSerialization_PreservesOptionalPageIndex(t *testing.T) {
	page := 0
	record := &core.ExtractionRecord{
		ID:    "INV-1",
		JobID: "job-1",
		Fields: []core.ExtractedField{
			{Name: "total", Value: "10.00", Confidence: 0.5, PageIndex: &page},
			{Name: "vendor", Value: "ACME", Confidence: 0.9},
		},
		Decision:    core.DecisionNeedsReview,
		RawPayload:  []byte(`{"truncated":`),
		ProcessedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	data, err := MarshalRecord(record)
	require.NoError(t, err)

	decoded, err := UnmarshalRecord(data)
	require.NoError(t, err)

	require.NotNil(t, decoded.Fields[0].PageIndex, "page 0 must survive as a present value")
	assert.Equal(t, 0, *decoded.Fields[0].PageIndex)
	assert.Nil(t, decoded.Fields[1].PageIndex)
	assert.Equal(t, record.RawPayload, decoded.RawPayload)
	assert.True(t, record.ProcessedAt.Equal(decoded.ProcessedAt))
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]byte) error
	}{
		{"job", func(b []byte) error { _, err := UnmarshalJob(b); return err }},
		{"record", func(b []byte) error { _, err := UnmarshalRecord(b); return err }},
		{"review", func(b []byte) error { _, err := UnmarshalReview(b); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn([]byte("{not json"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}
