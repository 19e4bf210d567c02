package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"sketchrule/api/internal/config"
	"sketchrule/api/internal/feedback"
	"sketchrule/api/internal/promote"
	"sketchrule/api/internal/stroke"
)

type fakeStore struct {
	putFeedbackFn         func(context.Context, feedback.Entry) error
	upsertIndexFn         func(context.Context, string, string, string) error
	registerManifestKeyFn func(context.Context, string) error
	loadManifestFn        func(context.Context) (feedback.Manifest, error)
	loadIndexFn           func(context.Context, string) (*feedback.BucketIndex, error)
	loadFeedbackBatchFn   func(context.Context, string, string, []string, int) ([]feedback.Entry, error)
	getProductionStrokeFn func(context.Context, string, string) (*feedback.ProductionStroke, error)
	putProductionStrokeFn func(context.Context, feedback.ProductionStroke) error
	pingFn                func(context.Context) error
}

func (f *fakeStore) PutFeedback(ctx context.Context, entry feedback.Entry) error {
	if f.putFeedbackFn != nil {
		return f.putFeedbackFn(ctx, entry)
	}
	return nil
}

func (f *fakeStore) UpsertIndex(ctx context.Context, code, viewpoint, id string) error {
	if f.upsertIndexFn != nil {
		return f.upsertIndexFn(ctx, code, viewpoint, id)
	}
	return nil
}

func (f *fakeStore) RegisterManifestKey(ctx context.Context, key string) error {
	if f.registerManifestKeyFn != nil {
		return f.registerManifestKeyFn(ctx, key)
	}
	return nil
}

func (f *fakeStore) LoadManifest(ctx context.Context) (feedback.Manifest, error) {
	if f.loadManifestFn != nil {
		return f.loadManifestFn(ctx)
	}
	return feedback.Manifest{}, nil
}

func (f *fakeStore) LoadIndex(ctx context.Context, key string) (*feedback.BucketIndex, error) {
	if f.loadIndexFn != nil {
		return f.loadIndexFn(ctx, key)
	}
	return nil, nil
}

func (f *fakeStore) LoadFeedbackBatch(ctx context.Context, code, viewpoint string, ids []string, limit int) ([]feedback.Entry, error) {
	if f.loadFeedbackBatchFn != nil {
		return f.loadFeedbackBatchFn(ctx, code, viewpoint, ids, limit)
	}
	return nil, nil
}

func (f *fakeStore) GetProductionStroke(ctx context.Context, code, viewpoint string) (*feedback.ProductionStroke, error) {
	if f.getProductionStrokeFn != nil {
		return f.getProductionStrokeFn(ctx, code, viewpoint)
	}
	return nil, nil
}

func (f *fakeStore) PutProductionStroke(ctx context.Context, ps feedback.ProductionStroke) error {
	if f.putProductionStrokeFn != nil {
		return f.putProductionStrokeFn(ctx, ps)
	}
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeImages struct {
	putImageFn func(context.Context, string, []byte) (string, error)
}

func (f *fakeImages) PutImage(ctx context.Context, hash string, data []byte) (string, error) {
	if f.putImageFn != nil {
		return f.putImageFn(ctx, hash, data)
	}
	return "images/" + hash, nil
}

var _ promote.Store = (*fakeStore)(nil)

func validSubmitInput() SubmitInput {
	return SubmitInput{
		ImageLabel:      "sofa-01",
		Viewpoint:       "front-center",
		MeasurementCode: "A1",
		Stroke: stroke.Stroke{
			Points: []stroke.Point{{X: 100, Y: 200}, {X: 400, Y: 200}},
			Width:  10,
		},
		Meta: &SubmitMeta{Canvas: &stroke.Dims{Width: 800, Height: 600}},
	}
}

func domainStatus(t *testing.T, err error) int {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	return domainErr.Status
}

func TestSubmitRejectsMissingFields(t *testing.T) {
	svc := New(config.Config{}, &fakeStore{})

	cases := []struct {
		name   string
		mutate func(*SubmitInput)
	}{
		{"missing imageLabel", func(in *SubmitInput) { in.ImageLabel = "" }},
		{"missing measurementCode", func(in *SubmitInput) { in.MeasurementCode = "" }},
		{"too few points", func(in *SubmitInput) { in.Stroke.Points = in.Stroke.Points[:1] }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validSubmitInput()
			tc.mutate(&input)
			_, err := svc.Submit(context.Background(), input)
			if status := domainStatus(t, err); status != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", status)
			}
		})
	}
}

func TestSubmitPersistsNormalizedEntry(t *testing.T) {
	var saved *feedback.Entry
	fs := &fakeStore{
		putFeedbackFn: func(_ context.Context, entry feedback.Entry) error {
			saved = &entry
			return nil
		},
	}
	svc := New(config.Config{}, fs)

	result, err := svc.Submit(context.Background(), validSubmitInput())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.FeedbackID == "" {
		t.Error("expected a feedback id")
	}
	if !result.Indexed || !result.Registered {
		t.Errorf("expected index and manifest success, got %+v", result)
	}

	if saved == nil {
		t.Fatal("expected entry persisted")
	}
	if saved.Stroke.Points[0].X != 0.125 || saved.Stroke.Points[0].Y != 200.0/600.0 {
		t.Errorf("expected normalized points, got %+v", saved.Stroke.Points[0])
	}
	if saved.Metadata.PointCount != 2 {
		t.Errorf("expected metadata computed, got %+v", saved.Metadata)
	}
	if saved.Source != stroke.SourceManual {
		t.Errorf("expected default source manual, got %q", saved.Source)
	}
}

func TestSubmitDefaultsViewpoint(t *testing.T) {
	var saved *feedback.Entry
	fs := &fakeStore{
		putFeedbackFn: func(_ context.Context, entry feedback.Entry) error {
			saved = &entry
			return nil
		},
	}
	svc := New(config.Config{}, fs)

	input := validSubmitInput()
	input.Viewpoint = ""
	if _, err := svc.Submit(context.Background(), input); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if saved.Viewpoint != DefaultViewpoint {
		t.Errorf("expected viewpoint %q, got %q", DefaultViewpoint, saved.Viewpoint)
	}
}

func TestSubmitPrimaryWriteFailureIsFatal(t *testing.T) {
	indexCalled := false
	fs := &fakeStore{
		putFeedbackFn: func(context.Context, feedback.Entry) error {
			return errors.New("store down")
		},
		upsertIndexFn: func(context.Context, string, string, string) error {
			indexCalled = true
			return nil
		},
	}
	svc := New(config.Config{}, fs)

	_, err := svc.Submit(context.Background(), validSubmitInput())
	if status := domainStatus(t, err); status != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", status)
	}
	if indexCalled {
		t.Error("index must not be updated when the entry write fails")
	}
}

func TestSubmitIndexFailureStillSucceeds(t *testing.T) {
	fs := &fakeStore{
		upsertIndexFn: func(context.Context, string, string, string) error {
			return errors.New("contended write lost")
		},
	}
	svc := New(config.Config{}, fs)

	result, err := svc.Submit(context.Background(), validSubmitInput())
	if err != nil {
		t.Fatalf("expected success despite index failure, got %v", err)
	}
	if result.Indexed {
		t.Error("expected indexed=false after index failure")
	}
	if !result.Registered {
		t.Error("manifest registration should still be attempted")
	}
}

func TestSubmitImageUploadFailureIsIgnored(t *testing.T) {
	var saved *feedback.Entry
	fs := &fakeStore{
		putFeedbackFn: func(_ context.Context, entry feedback.Entry) error {
			saved = &entry
			return nil
		},
	}
	images := &fakeImages{
		putImageFn: func(context.Context, string, []byte) (string, error) {
			return "", errors.New("bucket unavailable")
		},
	}
	svc := NewWithImageStore(config.Config{}, fs, images)

	input := validSubmitInput()
	input.ImageBase64 = "aGVsbG8=" // "hello"
	result, err := svc.Submit(context.Background(), input)
	if err != nil {
		t.Fatalf("expected success despite image failure, got %v", err)
	}
	if result.FeedbackID == "" {
		t.Error("expected a feedback id")
	}
	if saved.ImageHash == "" || saved.ImageStorageKey == "" {
		t.Errorf("expected image linkage recorded on the entry, got %+v", saved)
	}
}

func TestSuggestNotFound(t *testing.T) {
	svc := New(config.Config{}, &fakeStore{})

	_, err := svc.Suggest(context.Background(), "A1", "front-center", stroke.Dims{})
	if status := domainStatus(t, err); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestSuggestDenormalizesIntoViewport(t *testing.T) {
	fs := &fakeStore{
		getProductionStrokeFn: func(context.Context, string, string) (*feedback.ProductionStroke, error) {
			return &feedback.ProductionStroke{
				ID:              "ps_1",
				MeasurementCode: "A1",
				Viewpoint:       "front-center",
				Points:          []stroke.Point{{X: 0.5, Y: 0.5}, {X: 1, Y: 1}},
				Width:           0.01667,
				Confidence:      0.53,
			}, nil
		},
	}
	svc := New(config.Config{}, fs)

	suggestion, err := svc.Suggest(context.Background(), "A1", "front-center", stroke.Dims{Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if suggestion.Points[0].X != 200 || suggestion.Points[0].Y != 150 {
		t.Errorf("expected (200,150), got %+v", suggestion.Points[0])
	}
	if suggestion.Confidence != 0.53 || suggestion.StrokeID != "ps_1" {
		t.Errorf("expected stored confidence and id, got %+v", suggestion)
	}
}

func TestPredictOrdersByConfidence(t *testing.T) {
	strokes := map[string]*feedback.ProductionStroke{
		"A1": {ID: "ps_a1", MeasurementCode: "A1", Confidence: 0.55, Points: []stroke.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, Width: 0.01},
		"B2": {ID: "ps_b2", MeasurementCode: "B2", Confidence: 0.80, Points: []stroke.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, Width: 0.01},
	}
	fs := &fakeStore{
		getProductionStrokeFn: func(_ context.Context, code, _ string) (*feedback.ProductionStroke, error) {
			return strokes[code], nil
		},
	}
	svc := New(config.Config{}, fs)

	predictions, err := svc.Predict(context.Background(), "front-center", stroke.Dims{})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if len(predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(predictions))
	}
	if predictions[0].Code != "B2" || predictions[1].Code != "A1" {
		t.Errorf("expected descending confidence order, got %s %s", predictions[0].Code, predictions[1].Code)
	}
}

func TestPromoteDelegatesToJob(t *testing.T) {
	fs := &fakeStore{
		loadManifestFn: func(context.Context) (feedback.Manifest, error) {
			return feedback.Manifest{}, nil
		},
	}
	svc := New(config.Config{}, fs)

	summary, err := svc.Promote(context.Background())
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if summary.Promoted != 0 || summary.Skipped != 0 || summary.Errors != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}
