package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/sitwell/internal/app"
	"github.com/ayusman/sitwell/internal/log"
)

// MonitorHandler starts and stops the live camera monitor.
type MonitorHandler struct {
	app *app.App
	log logrus.FieldLogger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(a *app.App, logger logrus.FieldLogger) *MonitorHandler {
	return &MonitorHandler{app: a, log: logger}
}

type monitorResponse struct {
	Running bool             `json:"running"`
	Latest  *PostureResponse `json:"latest,omitempty"`
}

// ServeHTTP handles GET /api/monitor, POST /api/monitor/start and POST /api/monitor/stop.
func (h *MonitorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/monitor")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
	case "start":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if err := h.app.Start(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, app.ErrCameraUnavailable) || errors.Is(err, app.ErrDetectorUnavailable) {
				status = http.StatusServiceUnavailable
			}
			log.FromContext(r.Context(), h.log).WithError(err).Warn("failed to start monitor")
			writeError(w, status, "Failed to start monitor: "+err.Error())
			return
		}
	case "stop":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.app.Stop()
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	resp := monitorResponse{Running: h.app.Running()}
	if latest := h.app.Latest(); latest != nil && latest.Assessment != nil {
		p := NewPostureResponse(&app.Result{Assessment: latest.Assessment})
		resp.Latest = &p
	}
	writeJSON(w, http.StatusOK, resp)
}
