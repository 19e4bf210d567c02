package app

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"sketchrule/api/internal/config"
	"sketchrule/api/internal/feedback"
	"sketchrule/api/internal/promote"
	"sketchrule/api/internal/stroke"
	"sketchrule/api/internal/util"
)

// wellKnownCodes is the fixed measurement-code set the batch predictor walks.
// It is not derived from stored data; codes outside this list are still
// served by the single-suggestion path.
var wellKnownCodes = []string{"A1", "A2", "A3", "B1", "B2", "C1", "C2"}

// DefaultViewpoint buckets submissions whose viewpoint tag is absent.
const DefaultViewpoint = "unknown"

type dataStore interface {
	promote.Store
	PutFeedback(ctx context.Context, entry feedback.Entry) error
	UpsertIndex(ctx context.Context, measurementCode, viewpoint, feedbackID string) error
	RegisterManifestKey(ctx context.Context, indexKey string) error
	Ping(ctx context.Context) error
}

type imageStore interface {
	PutImage(ctx context.Context, hash string, data []byte) (string, error)
}

// Service holds the ingestion, suggestion and promotion entry points. It is
// stateless: every invocation coordinates only through the external store,
// so any number may run concurrently.
type Service struct {
	cfg    config.Config
	store  dataStore
	images imageStore
}

func New(cfg config.Config, store dataStore) *Service {
	return &Service{cfg: cfg, store: store}
}

func NewWithImageStore(cfg config.Config, store dataStore, images imageStore) *Service {
	return &Service{cfg: cfg, store: store, images: images}
}

type SubmitMeta struct {
	Canvas *stroke.Dims `json:"canvas,omitempty"`
}

type SubmitInput struct {
	ProjectID       string        `json:"projectId,omitempty"`
	ImageLabel      string        `json:"imageLabel"`
	Viewpoint       string        `json:"viewpoint,omitempty"`
	MeasurementCode string        `json:"measurementCode"`
	Stroke          stroke.Stroke `json:"stroke"`
	Labels          []string      `json:"labels,omitempty"`
	Meta            *SubmitMeta   `json:"meta,omitempty"`
	ImageHash       string        `json:"imageHash,omitempty"`
	ImageBase64     string        `json:"imageBase64,omitempty"`
}

type SubmitResult struct {
	FeedbackID string
	Indexed    bool
	Registered bool
}

// Submit validates and persists one feedback submission. Only the entry
// write itself is failure-sensitive; the index, manifest and image writes
// are best-effort, logged on failure, and never fail the submission. A stray
// entry with no index reference is harmless; promotion simply never sees it.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	var missing []string
	if input.ImageLabel == "" {
		missing = append(missing, "imageLabel")
	}
	if input.MeasurementCode == "" {
		missing = append(missing, "measurementCode")
	}
	if len(input.Stroke.Points) < 2 {
		missing = append(missing, "stroke.points")
	}
	if len(missing) > 0 {
		return SubmitResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "missing required field", missing)
	}

	var canvas stroke.Dims
	if input.Meta != nil && input.Meta.Canvas != nil {
		canvas = *input.Meta.Canvas
	}
	normalized, ok := stroke.Normalize(input.Stroke, canvas)
	if !ok {
		return SubmitResult{}, domainError(http.StatusBadRequest, "VALIDATION_ERROR", "invalid stroke data", nil)
	}

	viewpoint := input.Viewpoint
	if viewpoint == "" {
		viewpoint = DefaultViewpoint
	}

	imageHash := input.ImageHash
	var imageBytes []byte
	if input.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(input.ImageBase64)
		if err != nil {
			log.Printf("feedback: discarding undecodable image payload: %v", err)
		} else {
			imageBytes = decoded
			if imageHash == "" {
				sum := sha256.Sum256(decoded)
				imageHash = hex.EncodeToString(sum[:])
			}
		}
	}

	entry := feedback.Entry{
		ID:              util.NewID("fb"),
		ProjectID:       input.ProjectID,
		ImageLabel:      input.ImageLabel,
		Viewpoint:       viewpoint,
		MeasurementCode: input.MeasurementCode,
		Stroke:          normalized,
		Labels:          input.Labels,
		Metadata:        stroke.ComputeMetadata(normalized),
		ImageHash:       imageHash,
		SubmittedAt:     time.Now().UTC(),
		Source:          normalized.Source,
	}
	if s.images != nil && len(imageBytes) > 0 {
		entry.ImageStorageKey = "images/" + imageHash
	}

	if err := s.store.PutFeedback(ctx, entry); err != nil {
		return SubmitResult{}, domainError(http.StatusInternalServerError, "STORE_WRITE_FAILED", "feedback entry was not stored", err.Error())
	}

	result := SubmitResult{FeedbackID: entry.ID, Indexed: true, Registered: true}

	// Index staleness is tolerable; losing the raw entry is not. From here
	// on every failure is logged and the caller still sees success.
	if err := s.store.UpsertIndex(ctx, entry.MeasurementCode, entry.Viewpoint, entry.ID); err != nil {
		log.Printf("feedback: index update failed for %s: %v", entry.ID, err)
		result.Indexed = false
	}
	if err := s.store.RegisterManifestKey(ctx, feedback.IndexKey(entry.MeasurementCode, entry.Viewpoint)); err != nil {
		log.Printf("feedback: manifest registration failed for %s: %v", entry.ID, err)
		result.Registered = false
	}

	if s.images != nil && len(imageBytes) > 0 {
		if _, err := s.images.PutImage(ctx, imageHash, imageBytes); err != nil {
			log.Printf("feedback: image upload failed for %s: %v", entry.ID, err)
		}
	}

	return result, nil
}

type Suggestion struct {
	StrokeID        string         `json:"strokeId"`
	MeasurementCode string         `json:"measurementCode"`
	Viewpoint       string         `json:"viewpoint"`
	Confidence      float64        `json:"confidence"`
	Points          []stroke.Point `json:"points"`
	Width           float64        `json:"width"`
}

// Suggest returns the promoted stroke for a bucket, denormalized into the
// caller's viewport. Having no promoted stroke yet is a normal outcome and
// maps to 404, never to an empty stroke.
func (s *Service) Suggest(ctx context.Context, measurementCode, viewpoint string, viewport stroke.Dims) (Suggestion, error) {
	if viewpoint == "" {
		viewpoint = DefaultViewpoint
	}

	ps, err := s.store.GetProductionStroke(ctx, measurementCode, viewpoint)
	if err != nil {
		return Suggestion{}, err
	}
	if ps == nil {
		return Suggestion{}, domainError(http.StatusNotFound, "NOT_FOUND", "no suggestion for this measurement yet", nil)
	}

	points, width := stroke.Denormalize(stroke.Stroke{Points: ps.Points, Width: ps.Width}, viewport)
	return Suggestion{
		StrokeID:        ps.ID,
		MeasurementCode: ps.MeasurementCode,
		Viewpoint:       ps.Viewpoint,
		Confidence:      ps.Confidence,
		Points:          points,
		Width:           width,
	}, nil
}

type PredictedStroke struct {
	Points []stroke.Point `json:"points"`
	Width  float64        `json:"width"`
}

type Prediction struct {
	Code       string          `json:"code"`
	Stroke     PredictedStroke `json:"stroke"`
	Confidence float64         `json:"confidence"`
}

// Predict walks the well-known measurement codes for a viewpoint and returns
// every available suggestion, highest confidence first. Codes without a
// promoted stroke are omitted; read failures on one code never abort the
// batch.
func (s *Service) Predict(ctx context.Context, viewpoint string, viewport stroke.Dims) ([]Prediction, error) {
	predictions := make([]Prediction, 0, len(wellKnownCodes))
	for _, code := range wellKnownCodes {
		suggestion, err := s.Suggest(ctx, code, viewpoint, viewport)
		if err != nil {
			var domainErr *DomainError
			if !errors.As(err, &domainErr) || domainErr.Status != http.StatusNotFound {
				log.Printf("predict: lookup failed for %s/%s: %v", code, viewpoint, err)
			}
			continue
		}
		predictions = append(predictions, Prediction{
			Code:       code,
			Stroke:     PredictedStroke{Points: suggestion.Points, Width: suggestion.Width},
			Confidence: suggestion.Confidence,
		})
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	return predictions, nil
}

// Promote runs the promotion job once. The external scheduler and the HTTP
// trigger both land here.
func (s *Service) Promote(ctx context.Context) (promote.Summary, error) {
	return promote.Run(ctx, s.store)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
