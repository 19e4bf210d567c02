// Package feedback persists stroke feedback entries, per-bucket indexes, the
// discovery manifest, and promoted production strokes on the external
// key-value store.
package feedback

import (
	"time"

	"sketchrule/api/internal/stroke"
)

// MaxIndexIDs caps how many feedback ids a bucket index retains; older ids
// fall off first. The entries themselves are never deleted.
const MaxIndexIDs = 1000

// Entry is one user submission. Written once, never mutated; the bucket
// index references it by id.
type Entry struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"projectId,omitempty"`
	ImageLabel      string          `json:"imageLabel"`
	Viewpoint       string          `json:"viewpoint"`
	MeasurementCode string          `json:"measurementCode"`
	Stroke          stroke.Stroke   `json:"stroke"`
	Labels          []string        `json:"labels,omitempty"`
	Metadata        stroke.Metadata `json:"metadata"`
	ImageHash       string          `json:"imageHash,omitempty"`
	ImageStorageKey string          `json:"imageStorageKey,omitempty"`
	SubmittedAt     time.Time       `json:"submittedAt"`
	Source          string          `json:"source"`
}

// HasImage reports whether the entry carries stored image linkage, which
// makes it easier to audit and preferred during aggregation ordering.
func (e Entry) HasImage() bool {
	return e.ImageStorageKey != "" || e.ImageHash != ""
}

// BucketIndex counts submissions into one (measurementCode, viewpoint)
// bucket and lists the most recent feedback ids. Updated by read-modify-write
// on every ingestion; see Store.UpsertIndex for the admitted race.
type BucketIndex struct {
	Count       int        `json:"count"`
	LastUpdated *time.Time `json:"lastUpdated"`
	FeedbackIDs []string   `json:"feedbackIds"`
}

// Manifest registers every bucket index key ever seen. It exists because the
// store has no prefix scan; it grows monotonically and entries are never
// removed, even if a bucket later empties.
type Manifest struct {
	IndexKeys   []string   `json:"indexKeys"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// ProductionStroke is the canonical suggestion for a bucket. Written only by
// the promotion job, read-only to the suggestion path. Confidence stays in
// [0, 0.95].
type ProductionStroke struct {
	ID              string         `json:"id"`
	MeasurementCode string         `json:"measurementCode"`
	Viewpoint       string         `json:"viewpoint"`
	Points          []stroke.Point `json:"points"`
	Width           float64        `json:"width"`
	Confidence      float64        `json:"confidence"`
	SampleCount     int            `json:"sampleCount"`
	LastUpdated     time.Time      `json:"lastUpdated"`
	PromotedAt      time.Time      `json:"promotedAt"`
}
