package app

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/sitwell/internal/plugin"
	"github.com/ayusman/sitwell/internal/render"
	"github.com/ayusman/sitwell/internal/store"
)

// subscriberBuffer is how many undelivered results a slow subscriber may hold
// before newer results are dropped for it.
const subscriberBuffer = 8

// Start opens the camera and begins scoring a frame every monitor interval.
// Starting a running monitor is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if a.camera == nil {
		return ErrCameraUnavailable
	}
	if a.detector == nil {
		return ErrDetectorUnavailable
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runMonitor(a.stopCh, a.doneCh)

	a.persistMonitorState(true)
	a.log.WithField("interval", a.config.MonitorInterval).Info("live monitor started")
	return nil
}

// Stop halts the monitor and closes the camera. Stopping an idle monitor is a no-op.
func (a *App) Stop() {
	if a.halt() {
		a.persistMonitorState(false)
	}
}

// halt stops the monitor goroutine and reports whether it was running.
func (a *App) halt() bool {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return false
	}
	close(a.stopCh)
	done := a.doneCh
	a.stopCh, a.doneCh = nil, nil
	camera := a.camera
	a.mu.Unlock()

	<-done

	if err := camera.Close(); err != nil {
		a.log.WithError(err).Warn("error closing camera")
	}

	a.log.Info("live monitor stopped")
	return true
}

// Running reports whether the live monitor is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Subscribe returns a channel receiving every monitor result and a function that
// cancels the subscription. A nil Assessment means the frame had nobody in it.
func (a *App) Subscribe() (<-chan *Result, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSubID
	a.nextSubID++
	ch := make(chan *Result, subscriberBuffer)
	a.subscribers[id] = ch

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if c, ok := a.subscribers[id]; ok {
			delete(a.subscribers, id)
			close(c)
		}
	}
}

// Latest returns the most recent monitor result, or nil before the first frame.
func (a *App) Latest() *Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// LatestFrame returns the most recent monitor frame as JPEG with the skeleton drawn on it.
func (a *App) LatestFrame() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latestFrame
}

func (a *App) runMonitor(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.monitorTick()
		}
	}
}

// monitorTick reads, scores and publishes one camera frame.
func (a *App) monitorTick() {
	camera := a.Camera()
	frame, err := camera.ReadFrame()
	if err != nil {
		a.log.WithError(err).Debug("error reading frame")
		return
	}
	defer frame.Close()

	result, err := a.analyzeFrame(frame, store.SourceMonitor, render.EncodeJPEG)
	switch {
	case errors.Is(err, ErrNoPersonDetected):
		result = &Result{}
		if raw, err := render.EncodeJPEG(*frame); err == nil {
			result.Annotated = raw
		}
	case err != nil:
		a.log.WithError(err).Warn("monitor analysis failed")
		return
	}

	a.publish(result)

	if result.Assessment != nil {
		a.checkAlert(result.Assessment)
	}
}

func (a *App) publish(result *Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latest = result
	if result.Annotated != nil {
		a.latestFrame = result.Annotated
	}

	for _, ch := range a.subscribers {
		select {
		case ch <- result:
		default:
		}
	}
}

// checkAlert fires poor_posture at most once per cooldown while posture stays bad,
// and posture_recovered on the first good reading after an alert.
func (a *App) checkAlert(assessment *store.Assessment) {
	if a.config.Notifier == nil {
		return
	}

	now := a.now()
	var event plugin.Event

	a.mu.Lock()
	switch {
	case !assessment.Analysis.IsGoodPosture:
		if a.lastAlert.IsZero() || now.Sub(a.lastAlert) >= a.config.AlertCooldown {
			event = plugin.EventPoorPosture
			a.lastAlert = now
			a.alerting = true
		}
	case a.alerting:
		event = plugin.EventPostureRecovered
		a.alerting = false
		a.lastAlert = now
	}
	a.mu.Unlock()

	if event == "" {
		return
	}

	an := assessment.Analysis
	results := a.config.Notifier.Notify(context.Background(), plugin.Request{
		Event:        event,
		AssessmentID: assessment.ID,
		Score:        an.OverallScore,
		Quality:      string(an.Quality),
		Issues:       an.Issues,
		Feedback:     an.Feedback,
		Timestamp:    assessment.CreatedAt.UnixMilli(),
	})

	a.log.WithFields(logrus.Fields{"event": event, "plugins": len(results)}).Info("posture alert sent")

	if a.config.Store == nil || assessment.ID == "" {
		return
	}
	for _, r := range results {
		alert := &store.Alert{
			AssessmentID: assessment.ID,
			Event:        string(event),
			PluginName:   r.Plugin,
			Success:      r.Success,
			Message:      r.Message,
		}
		if err := a.config.Store.Alerts().Create(alert); err != nil {
			a.log.WithError(err).Warn("failed to record alert")
		}
	}
}

func (a *App) persistMonitorState(enabled bool) {
	if a.config.Store == nil {
		return
	}
	if err := a.config.Store.Settings().SetBool(store.SettingMonitorEnabled, enabled); err != nil {
		a.log.WithError(err).Warn("failed to persist monitor state")
	}
}

// RestoreMonitor starts the monitor if it was running when the process last exited,
// falling back to def when nothing was recorded.
func (a *App) RestoreMonitor(def bool) error {
	enabled := def
	if a.config.Store != nil {
		enabled = a.config.Store.Settings().GetBool(store.SettingMonitorEnabled, def)
	}
	if !enabled {
		return nil
	}
	return a.Start()
}
