// Package promote runs the bucket promotion job: discover buckets through
// the manifest, aggregate each bucket's recent feedback, and overwrite the
// bucket's production stroke.
package promote

import (
	"context"
	"fmt"
	"log"
	"time"

	"sketchrule/api/internal/aggregate"
	"sketchrule/api/internal/feedback"
	"sketchrule/api/internal/util"
)

// MinSamples is the submission count a bucket needs before promotion.
const MinSamples = 3

// maxDetail bounds the skipped/error detail lists in a run summary; promoted
// buckets are always reported in full.
const maxDetail = 10

// Store is the slice of the feedback repository the job needs.
type Store interface {
	LoadManifest(ctx context.Context) (feedback.Manifest, error)
	LoadIndex(ctx context.Context, key string) (*feedback.BucketIndex, error)
	LoadFeedbackBatch(ctx context.Context, measurementCode, viewpoint string, ids []string, limit int) ([]feedback.Entry, error)
	GetProductionStroke(ctx context.Context, measurementCode, viewpoint string) (*feedback.ProductionStroke, error)
	PutProductionStroke(ctx context.Context, ps feedback.ProductionStroke) error
}

type Promoted struct {
	MeasurementCode string  `json:"measurementCode"`
	Viewpoint       string  `json:"viewpoint"`
	SampleCount     int     `json:"sampleCount"`
	Confidence      float64 `json:"confidence"`
}

type Skipped struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

type Failure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type Summary struct {
	Promoted int       `json:"promoted"`
	Skipped  int       `json:"skipped"`
	Errors   int       `json:"errors"`
	Details  Details   `json:"details"`
	RanAt    time.Time `json:"ranAt"`
}

type Details struct {
	Promoted []Promoted `json:"promoted"`
	Skipped  []Skipped  `json:"skipped,omitempty"`
	Errors   []Failure  `json:"errors,omitempty"`
}

// Run promotes every eligible bucket in the manifest. Buckets are processed
// independently: one bucket's failure never aborts the loop, and each write
// is complete on its own, so a partial run leaves only valid state behind.
// Re-running converges on the latest data snapshot regardless of how many
// runs came before.
func Run(ctx context.Context, store Store) (Summary, error) {
	summary := Summary{RanAt: time.Now().UTC()}

	manifest, err := store.LoadManifest(ctx)
	if err != nil {
		return summary, fmt.Errorf("load manifest: %w", err)
	}
	if len(manifest.IndexKeys) == 0 {
		return summary, nil
	}

	for _, key := range manifest.IndexKeys {
		if err := promoteBucket(ctx, store, key, &summary); err != nil {
			summary.Errors++
			if len(summary.Details.Errors) < maxDetail {
				summary.Details.Errors = append(summary.Details.Errors, Failure{Key: key, Error: err.Error()})
			}
			log.Printf("promote: bucket %s failed: %v", key, err)
		}
	}

	return summary, nil
}

func skip(summary *Summary, key, reason string) {
	summary.Skipped++
	if len(summary.Details.Skipped) < maxDetail {
		summary.Details.Skipped = append(summary.Details.Skipped, Skipped{Key: key, Reason: reason})
	}
}

func promoteBucket(ctx context.Context, store Store, key string, summary *Summary) error {
	index, err := store.LoadIndex(ctx, key)
	if err != nil {
		return err
	}
	if index == nil || len(index.FeedbackIDs) == 0 {
		skip(summary, key, "no feedback entries")
		return nil
	}

	measurementCode, viewpoint, ok := feedback.ParseIndexKey(key)
	if !ok {
		skip(summary, key, "invalid key format")
		return nil
	}

	if index.Count < MinSamples {
		skip(summary, key, "insufficient samples")
		return nil
	}

	entries, err := store.LoadFeedbackBatch(ctx, measurementCode, viewpoint, index.FeedbackIDs, feedback.DefaultBatchLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		skip(summary, key, "no valid feedback entries")
		return nil
	}

	result := aggregate.Aggregate(entries, index.Count)

	// Keep a stable stroke id across re-promotions of the same bucket.
	existing, err := store.GetProductionStroke(ctx, measurementCode, viewpoint)
	if err != nil {
		return err
	}
	strokeID := util.NewID("ps")
	if existing != nil {
		strokeID = existing.ID
	}

	now := time.Now().UTC()
	ps := feedback.ProductionStroke{
		ID:              strokeID,
		MeasurementCode: measurementCode,
		Viewpoint:       viewpoint,
		Points:          result.Points,
		Width:           result.Width,
		Confidence:      result.Confidence,
		SampleCount:     index.Count,
		LastUpdated:     now,
		PromotedAt:      now,
	}
	if err := store.PutProductionStroke(ctx, ps); err != nil {
		return err
	}

	summary.Promoted++
	summary.Details.Promoted = append(summary.Details.Promoted, Promoted{
		MeasurementCode: measurementCode,
		Viewpoint:       viewpoint,
		SampleCount:     index.Count,
		Confidence:      result.Confidence,
	})
	return nil
}
