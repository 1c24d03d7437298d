// Package app wires the posture scorer to its collaborators: detection, persistence,
// caching, notifier plugins and the live camera monitor.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/sitwell/internal/cache"
	"github.com/ayusman/sitwell/internal/capture"
	"github.com/ayusman/sitwell/internal/detector"
	"github.com/ayusman/sitwell/internal/plugin"
	"github.com/ayusman/sitwell/internal/posture"
	"github.com/ayusman/sitwell/internal/store"
)

// Monitor timing defaults.
const (
	DefaultMonitorInterval = 2 * time.Second
	DefaultAlertCooldown   = 5 * time.Minute
)

var (
	// ErrNoPersonDetected is returned when a frame contains nobody to score.
	ErrNoPersonDetected = errors.New("no person detected")
	// ErrDetectorUnavailable is returned when image analysis is requested without a detector.
	ErrDetectorUnavailable = errors.New("pose detector unavailable")
	// ErrCameraUnavailable is returned when the monitor is started without a camera.
	ErrCameraUnavailable = errors.New("camera unavailable")
)

// Notifier delivers posture events to plugins.
type Notifier interface {
	Notify(ctx context.Context, req plugin.Request) []plugin.Result
}

// Config holds configuration options for the application.
type Config struct {
	Posture         posture.Config
	Store           *store.Store
	Cache           cache.Cache
	CacheTTL        time.Duration
	Notifier        Notifier
	MonitorInterval time.Duration
	AlertCooldown   time.Duration
}

// App is the main application that orchestrates posture analysis.
type App struct {
	config   Config
	scorer   posture.Scorer
	log      logrus.FieldLogger
	now      func() time.Time
	detector detector.Detector
	camera   capture.Camera
	mu       sync.RWMutex

	// live monitor
	stopCh      chan struct{}
	doneCh      chan struct{}
	subscribers map[int]chan *Result
	nextSubID   int
	latest      *Result
	latestFrame []byte
	lastAlert   time.Time
	alerting    bool
}

// New creates a new App. The posture configuration is validated here so a bad
// configuration fails at startup rather than on the first frame.
func New(config Config, log logrus.FieldLogger) (*App, error) {
	scorer, err := posture.New(config.Posture)
	if err != nil {
		return nil, err
	}

	if config.Cache == nil || config.CacheTTL <= 0 {
		config.Cache = cache.Noop{}
	}
	if config.MonitorInterval <= 0 {
		config.MonitorInterval = DefaultMonitorInterval
	}
	if config.AlertCooldown < 0 {
		config.AlertCooldown = DefaultAlertCooldown
	}

	return &App{
		config:      config,
		scorer:      scorer,
		log:         log.WithField("component", "app"),
		now:         time.Now,
		subscribers: make(map[int]chan *Result),
	}, nil
}

// SetDetector sets the pose detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// Detector returns the pose detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// SetCamera sets the camera used by the live monitor.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// PostureConfig returns the scoring configuration in effect.
func (a *App) PostureConfig() posture.Config {
	return a.config.Posture
}

// Store returns the assessment store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Close stops the monitor and releases the detector. Unlike Stop it leaves the
// persisted monitor state alone so the next run can resume monitoring.
func (a *App) Close() error {
	a.halt()

	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.log.WithError(err).Warn("error closing detector")
			return err
		}
	}
	return nil
}
