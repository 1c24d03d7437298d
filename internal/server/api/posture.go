package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/sitwell/internal/app"
	"github.com/ayusman/sitwell/internal/log"
	"github.com/ayusman/sitwell/internal/pose"
	"github.com/ayusman/sitwell/internal/posture"
	"github.com/ayusman/sitwell/internal/render"
)

// StatusNoDetection marks a response for a frame with nobody in it.
const StatusNoDetection = "no_detection"

// PostureHandler handles posture analysis requests.
type PostureHandler struct {
	app *app.App
	log logrus.FieldLogger
}

// NewPostureHandler creates a new PostureHandler.
func NewPostureHandler(a *app.App, logger logrus.FieldLogger) *PostureHandler {
	return &PostureHandler{app: a, log: logger}
}

type analyzeKeypointsRequest struct {
	Keypoints map[string]pose.Keypoint `json:"keypoints" validate:"required,dive"`
}

type analyzeImageRequest struct {
	Image string `json:"image" validate:"required"`
	// Annotate defaults to true.
	Annotate *bool `json:"annotate,omitempty"`
}

// PostureResponse is the body returned for every successful analysis.
type PostureResponse struct {
	ID            string                   `json:"id,omitempty"`
	Status        string                   `json:"status"`
	IsGoodPosture bool                     `json:"isGoodPosture"`
	Confidence    int                      `json:"confidence"`
	Feedback      []string                 `json:"feedback"`
	Analysis      posture.Analysis         `json:"analysis"`
	Keypoints     map[string]pose.Keypoint `json:"keypoints"`
	ImgWithPose   string                   `json:"img_with_pose,omitempty"`
	Cached        bool                     `json:"cached,omitempty"`
	CreatedAt     time.Time                `json:"createdAt"`
}

// NoDetectionResponse is returned when the frame had nobody to score.
type NoDetectionResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NoDetection builds the response for a frame without a person.
func NoDetection() NoDetectionResponse {
	return NoDetectionResponse{Status: StatusNoDetection, Message: "No person detected in the image"}
}

// NewPostureResponse converts an analysis result to its wire form.
// Confidence is the overall score as a truncated percentage.
func NewPostureResponse(res *app.Result) PostureResponse {
	a := res.Assessment
	resp := PostureResponse{
		ID:            a.ID,
		Status:        "ok",
		IsGoodPosture: a.Analysis.IsGoodPosture,
		Confidence:    int(a.Analysis.OverallScore * 100),
		Feedback:      a.Analysis.Feedback,
		Analysis:      a.Analysis,
		Keypoints:     a.Keypoints,
		Cached:        res.Cached,
		CreatedAt:     a.CreatedAt,
	}
	if len(res.Annotated) > 0 {
		resp.ImgWithPose = imageDataURL(res.Annotated)
	}
	return resp
}

func imageDataURL(data []byte) string {
	mime := "image/png"
	if len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8 {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ServeHTTP routes /api/posture/analyze and /api/posture/image.
func (h *PostureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/posture")
	path = strings.Trim(path, "/")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	switch path {
	case "analyze":
		h.analyzeKeypoints(w, r)
	case "image":
		h.analyzeImage(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// analyzeKeypoints handles POST /api/posture/analyze.
func (h *PostureHandler) analyzeKeypoints(w http.ResponseWriter, r *http.Request) {
	var req analyzeKeypointsRequest
	if msg, ok := decodeRequest(w, r, &req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.app.AnalyzeKeypoints(r.Context(), req.Keypoints)
	if err != nil {
		if errors.Is(err, pose.ErrUnknownLabel) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.FromContext(r.Context(), h.log).WithError(err).Error("keypoint analysis failed")
		writeError(w, http.StatusInternalServerError, "Failed to analyze keypoints")
		return
	}

	writeJSON(w, http.StatusOK, NewPostureResponse(res))
}

// analyzeImage handles POST /api/posture/image.
func (h *PostureHandler) analyzeImage(w http.ResponseWriter, r *http.Request) {
	var req analyzeImageRequest
	if msg, ok := decodeRequest(w, r, &req); !ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	annotate := req.Annotate == nil || *req.Annotate

	res, err := h.app.AnalyzeImage(r.Context(), req.Image, annotate)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, NewPostureResponse(res))
	case errors.Is(err, app.ErrNoPersonDetected):
		writeJSON(w, http.StatusOK, NoDetection())
	case errors.Is(err, render.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "Invalid image data")
	case errors.Is(err, app.ErrDetectorUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Pose detector unavailable")
	default:
		log.FromContext(r.Context(), h.log).WithError(err).Error("image analysis failed")
		writeError(w, http.StatusInternalServerError, "Failed to analyze image")
	}
}
