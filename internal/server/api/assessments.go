package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/sitwell/internal/log"
	"github.com/ayusman/sitwell/internal/store"
)

// defaultPageSize applies when a list request has no limit.
const defaultPageSize = 50

// AssessmentHandler handles HTTP requests for stored assessments.
type AssessmentHandler struct {
	store *store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewAssessmentHandler creates a new AssessmentHandler with the given store.
func NewAssessmentHandler(s *store.Store, logger logrus.FieldLogger) *AssessmentHandler {
	return &AssessmentHandler{store: s, log: logger, now: time.Now}
}

type listAssessmentsResponse struct {
	Assessments []*store.Assessment `json:"assessments"`
	Total       int                 `json:"total"`
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
}

type assessmentResponse struct {
	*store.Assessment
	Alerts []store.Alert `json:"alerts"`
}

// ServeHTTP routes /api/assessments, /api/assessments/summary and /api/assessments/{id}.
func (h *AssessmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/assessments")
	path = strings.Trim(path, "/")

	switch {
	case path == "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.list(w, r)
	case path == "summary":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.summary(w, r)
	case strings.Contains(path, "/"):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, path)
		case http.MethodDelete:
			h.delete(w, r, path)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// list handles GET /api/assessments?limit=&offset=.
func (h *AssessmentHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultPageSize)
	if !ok || limit < 0 {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		writeError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	assessments, err := h.store.Assessments().List(limit, offset)
	if err != nil {
		h.internal(w, r, err, "Failed to list assessments")
		return
	}
	total, err := h.store.Assessments().Count()
	if err != nil {
		h.internal(w, r, err, "Failed to count assessments")
		return
	}

	writeJSON(w, http.StatusOK, listAssessmentsResponse{
		Assessments: assessments,
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	})
}

// summary handles GET /api/assessments/summary?since=. The window accepts an
// RFC 3339 timestamp or a duration such as "24h" counted back from now.
func (h *AssessmentHandler) summary(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			since = h.now().Add(-d)
		} else if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		} else {
			writeError(w, http.StatusBadRequest, "Invalid since")
			return
		}
	}

	summary, err := h.store.Assessments().Summary(since)
	if err != nil {
		h.internal(w, r, err, "Failed to summarize assessments")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// get handles GET /api/assessments/{id}.
func (h *AssessmentHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	assessment, err := h.store.Assessments().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Assessment not found")
			return
		}
		h.internal(w, r, err, "Failed to get assessment")
		return
	}

	alerts, err := h.store.Alerts().ListByAssessment(id)
	if err != nil {
		h.internal(w, r, err, "Failed to get assessment alerts")
		return
	}

	writeJSON(w, http.StatusOK, assessmentResponse{Assessment: assessment, Alerts: alerts})
}

// delete handles DELETE /api/assessments/{id}.
func (h *AssessmentHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Assessments().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Assessment not found")
			return
		}
		h.internal(w, r, err, "Failed to delete assessment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AssessmentHandler) internal(w http.ResponseWriter, r *http.Request, err error, message string) {
	log.FromContext(r.Context(), h.log).WithError(err).Error(message)
	writeError(w, http.StatusInternalServerError, message)
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
