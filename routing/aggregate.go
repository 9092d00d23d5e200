// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package routing

import (
	"fmt"

	"github.com/poiesic/docroute/core"
)

// Aggregate returns the arithmetic mean of the fields' confidences.
// Only present fields take part; ok is false when there are none, in which
// case the aggregate is undefined.
func Aggregate(fields []core.ExtractedField) (confidence float64, ok bool) {
	if len(fields) == 0 {
		return 0, false
	}
	var sum float64
	for _, f := range fields {
		sum += f.Confidence
	}
	return sum / float64(len(fields)), true
}

// Decide maps an aggregate confidence to a decision.
// The threshold is inclusive on AUTO_ACCEPT; an undefined aggregate always
// needs review.
func Decide(confidence float64, ok bool, threshold float64) core.Decision {
	if ok && confidence >= threshold {
		return core.DecisionAutoAccept
	}
	return core.DecisionNeedsReview
}

// FlagLowConfidence names the fields scoring below threshold, in field order.
func FlagLowConfidence(fields []core.ExtractedField, threshold float64) []string {
	var flagged []string
	for _, f := range fields {
		if f.Confidence < threshold {
			flagged = append(flagged, f.Name)
		}
	}
	return flagged
}

// ReviewReason explains why a record was routed to review.
func ReviewReason(confidence float64, ok bool) string {
	if !ok {
		return "No scored fields"
	}
	return fmt.Sprintf("Low confidence: %.2f%%", confidence*100)
}
