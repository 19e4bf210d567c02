// Package aggregate reduces a bucket's feedback entries to one canonical
// stroke body plus a confidence score.
package aggregate

import (
	"sort"

	"sketchrule/api/internal/feedback"
	"sketchrule/api/internal/stroke"
)

// MaxConfidence caps the score: feedback volume alone never claims full
// certainty.
const MaxConfidence = 0.95

// Result is the canonical stroke body for a bucket. The promotion job wraps
// it with identity and timestamps.
type Result struct {
	Points     []stroke.Point
	Width      float64
	Confidence float64
}

// Aggregate selects the median-length entry's points verbatim as the
// canonical sequence and averages widths across all entries. Point-wise
// averaging is deliberately avoided: entries have differing point counts and
// orderings, and resampling-then-averaging quietly produces strokes nobody
// drew.
//
// Entries without stored image linkage sort after entries that have it
// (image-linked entries are easier to audit); no entry is ever dropped.
// sampleCount is the bucket's total submission count, which may exceed
// len(entries). Callers must not invoke with zero entries; one entry passes
// through as-is.
func Aggregate(entries []feedback.Entry, sampleCount int) Result {
	ordered := make([]feedback.Entry, len(entries))
	copy(ordered, entries)

	lengths := make(map[string]float64, len(ordered))
	for _, e := range ordered {
		lengths[e.ID] = stroke.ArcLength(e.Stroke.Points)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].HasImage() != ordered[j].HasImage() {
			return ordered[i].HasImage()
		}
		return lengths[ordered[i].ID] < lengths[ordered[j].ID]
	})

	median := ordered[len(ordered)/2]

	var widthSum float64
	for _, e := range ordered {
		widthSum += e.Stroke.Width
	}

	return Result{
		Points:     median.Stroke.Points,
		Width:      widthSum / float64(len(ordered)),
		Confidence: Confidence(sampleCount),
	}
}

// Confidence maps a sample count to a score in [0, MaxConfidence],
// monotonically non-decreasing and saturating at MaxConfidence.
func Confidence(sampleCount int) float64 {
	confidence := 0.5 + float64(sampleCount)/100
	if confidence > MaxConfidence {
		return MaxConfidence
	}
	return confidence
}
