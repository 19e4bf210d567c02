package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sketchrule/api/internal/kv"
)

// DefaultBatchLimit caps how many entries a single aggregation load fetches.
const DefaultBatchLimit = 50

const defaultOpTimeout = 3 * time.Second

// Store implements the feedback repository on a get/put key-value store.
// Every operation runs under a bounded timeout so a stalled store call
// surfaces as a distinguishable failure instead of hanging the request.
type Store struct {
	kv        kv.KV
	opTimeout time.Duration
}

func NewStore(store kv.KV, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Store{kv: store, opTimeout: opTimeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) getJSON(ctx context.Context, key string, target any) error {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.kv.Get(opCtx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(value, target); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *Store) putJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.kv.Put(opCtx, key, data)
}

// PutFeedback durably stores one entry. This is the one failure-sensitive
// write in the ingestion path: callers must not report success without it.
func (s *Store) PutFeedback(ctx context.Context, entry Entry) error {
	key := EntryKey(entry.MeasurementCode, entry.Viewpoint, entry.ID)
	if err := s.putJSON(ctx, key, entry); err != nil {
		return fmt.Errorf("put feedback %s: %w", key, err)
	}
	return nil
}

// UpsertIndex increments the bucket counter and appends the feedback id,
// keeping only the most recent MaxIndexIDs ids.
//
// This is a non-atomic read-modify-write against a store with no
// compare-and-swap: two concurrent ingestions into the same bucket can lose
// an increment or an id to each other. Accepted trade-off: the raw entry
// write is independent and never lost, and periodic promotion self-heals.
func (s *Store) UpsertIndex(ctx context.Context, measurementCode, viewpoint, feedbackID string) error {
	key := IndexKey(measurementCode, viewpoint)

	var index BucketIndex
	if err := s.getJSON(ctx, key, &index); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("load index %s: %w", key, err)
	}

	now := time.Now().UTC()
	index.Count++
	index.LastUpdated = &now
	index.FeedbackIDs = append(index.FeedbackIDs, feedbackID)
	if len(index.FeedbackIDs) > MaxIndexIDs {
		index.FeedbackIDs = index.FeedbackIDs[len(index.FeedbackIDs)-MaxIndexIDs:]
	}

	if err := s.putJSON(ctx, key, index); err != nil {
		return fmt.Errorf("put index %s: %w", key, err)
	}
	return nil
}

// RegisterManifestKey records a bucket index key in the manifest exactly
// once. Idempotent at the business level; subject to the same
// read-modify-write race as UpsertIndex.
func (s *Store) RegisterManifestKey(ctx context.Context, indexKey string) error {
	var manifest Manifest
	if err := s.getJSON(ctx, ManifestKey, &manifest); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("load manifest: %w", err)
	}

	for _, existing := range manifest.IndexKeys {
		if existing == indexKey {
			return nil
		}
	}

	now := time.Now().UTC()
	manifest.IndexKeys = append(manifest.IndexKeys, indexKey)
	manifest.LastUpdated = &now

	if err := s.putJSON(ctx, ManifestKey, manifest); err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}
	return nil
}

// LoadManifest returns the manifest; a missing manifest is a valid initial
// state and comes back empty.
func (s *Store) LoadManifest(ctx context.Context) (Manifest, error) {
	var manifest Manifest
	err := s.getJSON(ctx, ManifestKey, &manifest)
	if errors.Is(err, kv.ErrNotFound) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	return manifest, nil
}

// LoadIndex returns the bucket index at key, or nil if none exists.
func (s *Store) LoadIndex(ctx context.Context, key string) (*BucketIndex, error) {
	var index BucketIndex
	err := s.getJSON(ctx, key, &index)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", key, err)
	}
	return &index, nil
}

// LoadFeedbackBatch fetches up to limit entries from the tail (most recent)
// of the id list. Individual fetch failures are logged and skipped; the
// batch never aborts on one bad record.
func (s *Store) LoadFeedbackBatch(ctx context.Context, measurementCode, viewpoint string, ids []string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	if len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}

	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		var entry Entry
		key := EntryKey(measurementCode, viewpoint, id)
		if err := s.getJSON(ctx, key, &entry); err != nil {
			log.Printf("feedback: skipping unreadable entry %s: %v", key, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PutProductionStroke overwrites the canonical stroke for its bucket.
func (s *Store) PutProductionStroke(ctx context.Context, ps ProductionStroke) error {
	key := StrokeKey(ps.MeasurementCode, ps.Viewpoint)
	if err := s.putJSON(ctx, key, ps); err != nil {
		return fmt.Errorf("put production stroke %s: %w", key, err)
	}
	return nil
}

// GetProductionStroke returns the canonical stroke for a bucket, or nil when
// none has been promoted yet.
func (s *Store) GetProductionStroke(ctx context.Context, measurementCode, viewpoint string) (*ProductionStroke, error) {
	var ps ProductionStroke
	err := s.getJSON(ctx, StrokeKey(measurementCode, viewpoint), &ps)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get production stroke %s:%s: %w", measurementCode, viewpoint, err)
	}
	return &ps, nil
}

// Ping reports store reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}
