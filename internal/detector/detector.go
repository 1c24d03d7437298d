// Package detector provides the pose-estimation boundary: a Detector interface,
// a YOLO pose subprocess implementation and a mock for tests.
package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoPerson is returned by Primary when a frame contains no people.
var ErrNoPerson = errors.New("no person detected")

// Detector defines the interface for pose detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns every person found in it.
	// Returns an empty slice if nobody is detected.
	Detect(frame *gocv.Mat) ([]Person, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for pose detection.
type Config struct {
	// ModelPath is the YOLO pose model file or a standard model name the
	// Python side can download (default: yolov8n-pose.pt).
	ModelPath string

	// Confidence is the minimum person detection confidence (0.0-1.0).
	Confidence float64

	// ScriptPath overrides the location of pose_service.py.
	ScriptPath string

	// IdleTimeout stops the subprocess after this long without a frame.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "yolov8n-pose.pt",
		Confidence:  0.5,
		IdleTimeout: 30 * time.Second,
	}
}
