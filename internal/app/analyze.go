package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitwell/internal/cache"
	"github.com/ayusman/sitwell/internal/detector"
	"github.com/ayusman/sitwell/internal/pose"
	"github.com/ayusman/sitwell/internal/render"
	"github.com/ayusman/sitwell/internal/store"
)

// Result is the outcome of analyzing one input.
type Result struct {
	Assessment *store.Assessment `json:"assessment"`
	// Annotated is the input image with the skeleton drawn on it, when requested.
	// PNG for uploaded images, JPEG for monitor frames.
	Annotated []byte `json:"annotated,omitempty"`
	Cached    bool   `json:"-"`
}

// AnalyzeKeypoints scores a client-supplied keypoint map.
func (a *App) AnalyzeKeypoints(ctx context.Context, points map[string]pose.Keypoint) (*Result, error) {
	set, err := pose.ParseNamed(points, a.config.Posture.MinConfidence)
	if err != nil {
		return nil, err
	}

	assessment, err := a.record(store.SourceKeypoints, set)
	if err != nil {
		return nil, err
	}
	return &Result{Assessment: assessment}, nil
}

// AnalyzeImage decodes a base64 image (optionally a data URL), detects the primary
// person and scores them. With annotate set the result carries a PNG overlay.
// Identical payloads within the cache TTL return the earlier result.
func (a *App) AnalyzeImage(ctx context.Context, payload string, annotate bool) (*Result, error) {
	key := imageCacheKey(payload, annotate)

	var cached Result
	err := cache.GetJSON(ctx, a.config.Cache, key, &cached)
	switch {
	case err == nil && cached.Assessment != nil:
		cached.Cached = true
		return &cached, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		a.log.WithError(err).Warn("cache lookup failed")
	}

	img, err := render.DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	var encode func(gocv.Mat) ([]byte, error)
	if annotate {
		encode = render.EncodePNG
	}

	result, err := a.analyzeFrame(&img, store.SourceImage, encode)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, a.config.Cache, key, result, a.config.CacheTTL); err != nil {
		a.log.WithError(err).Warn("cache store failed")
	}
	return result, nil
}

func imageCacheKey(payload string, annotate bool) string {
	namespace := "image"
	if annotate {
		namespace = "image-annotated"
	}
	return cache.Key(namespace, []byte(payload))
}

// analyzeFrame runs detection and scoring on a decoded frame. A non-nil encode
// renders the skeleton over a copy of the frame and stores the encoded bytes.
func (a *App) analyzeFrame(frame *gocv.Mat, source store.Source, encode func(gocv.Mat) ([]byte, error)) (*Result, error) {
	d := a.Detector()
	if d == nil {
		return nil, ErrDetectorUnavailable
	}

	people, err := d.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect pose: %w", err)
	}

	person, err := detector.Primary(people)
	if errors.Is(err, detector.ErrNoPerson) {
		return nil, ErrNoPersonDetected
	}
	if err != nil {
		return nil, err
	}

	set := person.Set(a.config.Posture.MinConfidence)
	assessment, err := a.record(source, set)
	if err != nil {
		return nil, err
	}

	result := &Result{Assessment: assessment}
	if encode != nil {
		overlay := frame.Clone()
		defer overlay.Close()

		good := assessment.Analysis.IsGoodPosture
		render.DrawPose(&overlay, set, good, render.DefaultStyle())
		render.DrawScore(&overlay, assessment.Analysis.OverallScore, good)

		result.Annotated, err = encode(overlay)
		if err != nil {
			return nil, fmt.Errorf("encode overlay: %w", err)
		}
	}
	return result, nil
}

// record scores set and persists the assessment when a store is configured.
func (a *App) record(source store.Source, set pose.Set) (*store.Assessment, error) {
	assessment := &store.Assessment{
		Source:    source,
		Analysis:  a.scorer.Analyze(set),
		Keypoints: set.Named(),
		CreatedAt: a.now(),
	}

	if a.config.Store == nil {
		assessment.CreatedAt = assessment.CreatedAt.UTC().Truncate(time.Millisecond)
		return assessment, nil
	}

	if err := a.config.Store.Assessments().Create(assessment); err != nil {
		return nil, fmt.Errorf("store assessment: %w", err)
	}
	return assessment, nil
}
