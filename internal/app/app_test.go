package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitwell/internal/cache"
	"github.com/ayusman/sitwell/internal/detector"
	"github.com/ayusman/sitwell/internal/log"
	"github.com/ayusman/sitwell/internal/pose"
	"github.com/ayusman/sitwell/internal/posture"
	"github.com/ayusman/sitwell/internal/render"
	"github.com/ayusman/sitwell/internal/store"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestApp(t *testing.T, config Config) *App {
	t.Helper()

	if config.Posture == (posture.Config{}) {
		config.Posture = posture.DefaultConfig()
	}
	a, err := New(config, log.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func testImagePayload(t *testing.T) string {
	t.Helper()

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	payload, err := render.EncodeBase64PNG(img)
	if err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return payload
}

func TestNew_InvalidPostureConfig(t *testing.T) {
	cfg := posture.DefaultConfig()
	cfg.Weights = posture.Weights{}

	if _, err := New(Config{Posture: cfg}, log.Discard()); !errors.Is(err, posture.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApp_AnalyzeKeypoints(t *testing.T) {
	s := newTestStore(t)
	a := newTestApp(t, Config{Store: s})

	t.Run("good posture is stored", func(t *testing.T) {
		points := detector.UprightPerson().Set(pose.DefaultMinConfidence).Named()

		res, err := a.AnalyzeKeypoints(context.Background(), points)
		if err != nil {
			t.Fatalf("AnalyzeKeypoints() error = %v", err)
		}
		if !res.Assessment.Analysis.IsGoodPosture {
			t.Errorf("expected good posture, got %+v", res.Assessment.Analysis)
		}
		if res.Assessment.Source != store.SourceKeypoints {
			t.Errorf("expected keypoints source, got %s", res.Assessment.Source)
		}

		stored, err := s.Assessments().GetByID(res.Assessment.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if stored.Analysis.OverallScore != res.Assessment.Analysis.OverallScore {
			t.Errorf("stored score %f != returned %f", stored.Analysis.OverallScore, res.Assessment.Analysis.OverallScore)
		}
	})

	t.Run("low confidence points are dropped", func(t *testing.T) {
		res, err := a.AnalyzeKeypoints(context.Background(), map[string]pose.Keypoint{
			"left_shoulder":  {X: 100, Y: 100, Confidence: 0.2},
			"right_shoulder": {X: 200, Y: 100, Confidence: 0.2},
		})
		if err != nil {
			t.Fatalf("AnalyzeKeypoints() error = %v", err)
		}
		if len(res.Assessment.Keypoints) != 0 {
			t.Errorf("expected no keypoints to survive, got %v", res.Assessment.Keypoints)
		}
		if res.Assessment.Analysis.ShoulderBalance != 0.5 {
			t.Errorf("expected neutral shoulder score, got %f", res.Assessment.Analysis.ShoulderBalance)
		}
	})

	t.Run("unknown label", func(t *testing.T) {
		_, err := a.AnalyzeKeypoints(context.Background(), map[string]pose.Keypoint{
			"left_tail": {X: 1, Y: 1, Confidence: 1},
		})
		if err == nil {
			t.Error("expected error for unknown label")
		}
	})
}

func TestApp_AnalyzeKeypoints_WithoutStore(t *testing.T) {
	a := newTestApp(t, Config{})

	res, err := a.AnalyzeKeypoints(context.Background(), detector.SlouchedPerson().Set(0.5).Named())
	if err != nil {
		t.Fatalf("AnalyzeKeypoints() error = %v", err)
	}
	if res.Assessment.ID != "" {
		t.Errorf("expected unsaved assessment, got id %s", res.Assessment.ID)
	}
	if res.Assessment.Analysis.IsGoodPosture {
		t.Error("expected bad posture")
	}
}

func TestApp_AnalyzeImage(t *testing.T) {
	payload := testImagePayload(t)

	t.Run("no detector", func(t *testing.T) {
		a := newTestApp(t, Config{})
		if _, err := a.AnalyzeImage(context.Background(), payload, false); !errors.Is(err, ErrDetectorUnavailable) {
			t.Errorf("expected ErrDetectorUnavailable, got %v", err)
		}
	})

	t.Run("invalid image", func(t *testing.T) {
		a := newTestApp(t, Config{})
		a.SetDetector(detector.NewMockDetector())
		if _, err := a.AnalyzeImage(context.Background(), "not an image", false); !errors.Is(err, render.ErrInvalidImage) {
			t.Errorf("expected ErrInvalidImage, got %v", err)
		}
	})

	t.Run("nobody in frame", func(t *testing.T) {
		a := newTestApp(t, Config{})
		a.SetDetector(detector.NewMockDetector())
		if _, err := a.AnalyzeImage(context.Background(), payload, false); !errors.Is(err, ErrNoPersonDetected) {
			t.Errorf("expected ErrNoPersonDetected, got %v", err)
		}
	})

	t.Run("detector error", func(t *testing.T) {
		a := newTestApp(t, Config{})
		mock := detector.NewMockDetector()
		mock.SetError(errors.New("service crashed"))
		a.SetDetector(mock)

		_, err := a.AnalyzeImage(context.Background(), payload, false)
		if err == nil || errors.Is(err, ErrNoPersonDetected) {
			t.Errorf("expected detector error, got %v", err)
		}
	})

	t.Run("primary person is scored and annotated", func(t *testing.T) {
		s := newTestStore(t)
		a := newTestApp(t, Config{Store: s})
		mock := detector.NewMockDetector()
		slouched := detector.SlouchedPerson()
		slouched.Score = 0.4
		mock.SetPeople([]detector.Person{slouched, detector.UprightPerson()})
		a.SetDetector(mock)

		res, err := a.AnalyzeImage(context.Background(), payload, true)
		if err != nil {
			t.Fatalf("AnalyzeImage() error = %v", err)
		}
		if !res.Assessment.Analysis.IsGoodPosture {
			t.Error("expected the higher scoring upright person to be assessed")
		}
		if !bytes.HasPrefix(res.Annotated, pngMagic) {
			t.Error("expected PNG overlay")
		}
		if res.Assessment.Source != store.SourceImage {
			t.Errorf("expected image source, got %s", res.Assessment.Source)
		}
		if n, _ := s.Assessments().Count(); n != 1 {
			t.Errorf("expected 1 stored assessment, got %d", n)
		}
	})

	t.Run("without annotation", func(t *testing.T) {
		a := newTestApp(t, Config{})
		mock := detector.NewMockDetector()
		mock.SetPeople([]detector.Person{detector.UprightPerson()})
		a.SetDetector(mock)

		res, err := a.AnalyzeImage(context.Background(), payload, false)
		if err != nil {
			t.Fatalf("AnalyzeImage() error = %v", err)
		}
		if res.Annotated != nil {
			t.Error("expected no overlay")
		}
	})
}

func TestApp_AnalyzeImage_Cache(t *testing.T) {
	payload := testImagePayload(t)
	mem := cache.NewMemory(16)

	a := newTestApp(t, Config{Cache: mem, CacheTTL: time.Minute})
	mock := detector.NewMockDetector()
	mock.SetPeople([]detector.Person{detector.UprightPerson()})
	a.SetDetector(mock)

	first, err := a.AnalyzeImage(context.Background(), payload, true)
	if err != nil {
		t.Fatalf("first AnalyzeImage() error = %v", err)
	}
	if first.Cached {
		t.Error("first result should not be cached")
	}

	second, err := a.AnalyzeImage(context.Background(), payload, true)
	if err != nil {
		t.Fatalf("second AnalyzeImage() error = %v", err)
	}
	if !second.Cached {
		t.Error("expected second result to come from the cache")
	}
	if mock.Calls() != 1 {
		t.Errorf("expected detector to run once, ran %d times", mock.Calls())
	}
	if second.Assessment.Analysis.OverallScore != first.Assessment.Analysis.OverallScore {
		t.Error("cached analysis differs from the original")
	}
	if !bytes.Equal(second.Annotated, first.Annotated) {
		t.Error("cached overlay differs from the original")
	}

	// the annotated and plain variants are cached separately
	if _, err := a.AnalyzeImage(context.Background(), payload, false); err != nil {
		t.Fatalf("plain AnalyzeImage() error = %v", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("expected a fresh detection for the plain variant, got %d calls", mock.Calls())
	}
}

func TestApp_AnalyzeImage_CacheDisabled(t *testing.T) {
	payload := testImagePayload(t)

	// a zero TTL disables caching even when a cache is supplied
	a := newTestApp(t, Config{Cache: cache.NewMemory(16)})
	mock := detector.NewMockDetector()
	mock.SetPeople([]detector.Person{detector.UprightPerson()})
	a.SetDetector(mock)

	for i := 0; i < 2; i++ {
		if _, err := a.AnalyzeImage(context.Background(), payload, false); err != nil {
			t.Fatalf("AnalyzeImage() error = %v", err)
		}
	}
	if mock.Calls() != 2 {
		t.Errorf("expected 2 detections, got %d", mock.Calls())
	}
}
