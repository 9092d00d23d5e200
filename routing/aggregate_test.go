package routing

import (
	"testing"

	"github.com/poiesic/docroute/core"
	"github.com/stretchr/testify/assert"
)

func fields(confidences ...float64) []core.ExtractedField {
	out := make([]core.ExtractedField, len(confidences))
	for i, c := range confidences {
		out[i] = core.ExtractedField{Name: string(rune('a' + i)), Value: "v", Confidence: c}
	}
	return out
}

func TestAggregate(t *testing.T) {
	t.Run("mean of present fields", func(t *testing.T) {
		c, ok := Aggregate(fields(0.88, 0.91, 0.875, 0.92))
		assert.True(t, ok)
		assert.InDelta(t, 0.89625, c, 1e-12)
	})
	t.Run("single field", func(t *testing.T) {
		c, ok := Aggregate(fields(0.42))
		assert.True(t, ok)
		assert.Equal(t, 0.42, c)
	})
	t.Run("no fields is undefined", func(t *testing.T) {
		_, ok := Aggregate(nil)
		assert.False(t, ok)
	})
	t.Run("zero confidence counts", func(t *testing.T) {
		c, ok := Aggregate(fields(0, 1))
		assert.True(t, ok)
		assert.Equal(t, 0.5, c)
	})
}

func TestDecide_ThresholdBoundary(t *testing.T) {
	const threshold = 0.70

	tests := []struct {
		confidence float64
		want       core.Decision
	}{
		{0, core.DecisionNeedsReview},
		{0.5, core.DecisionNeedsReview},
		{0.6999999, core.DecisionNeedsReview},
		{0.70, core.DecisionAutoAccept},
		{0.7000001, core.DecisionAutoAccept},
		{0.89625, core.DecisionAutoAccept},
		{1, core.DecisionAutoAccept},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decide(tt.confidence, true, threshold), "confidence %v", tt.confidence)
	}

	// Sweep the whole range in small steps
	for i := 0; i <= 1000; i++ {
		c := float64(i) / 1000
		want := core.DecisionNeedsReview
		if c >= threshold {
			want = core.DecisionAutoAccept
		}
		assert.Equal(t, want, Decide(c, true, threshold), "confidence %v", c)
	}
}

func TestDecide_UndefinedNeedsReview(t *testing.T) {
	assert.Equal(t, core.DecisionNeedsReview, Decide(1, false, 0.5))
	assert.Equal(t, core.DecisionNeedsReview, Decide(0, false, 0.01))
}

func TestDecide_ExactThresholdFromAggregate(t *testing.T) {
	c, ok := Aggregate(fields(0.7))
	assert.Equal(t, core.DecisionAutoAccept, Decide(c, ok, 0.7))
}

func TestFlagLowConfidence(t *testing.T) {
	f := []core.ExtractedField{
		{Name: "invoice_number", Confidence: 0.88},
		{Name: "vendor_name", Confidence: 0.91},
		{Name: "total", Confidence: 0.10},
		{Name: "due_date", Confidence: 0.70},
	}
	assert.Equal(t, []string{"total"}, FlagLowConfidence(f, 0.70))
	assert.Nil(t, FlagLowConfidence(f, 0.05))
}

func TestReviewReason(t *testing.T) {
	assert.Equal(t, "Low confidence: 63.00%", ReviewReason(0.63, true))
	assert.Equal(t, "No scored fields", ReviewReason(0, false))
}
