package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/sitwell/internal/app"
	"github.com/ayusman/sitwell/internal/render"
	"github.com/ayusman/sitwell/internal/server/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxMessageBytes = 16 << 20
	writeWait       = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

func writeMessage(conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// AnalyzeSocket scores frames sent by the client over a websocket.
// Binary messages are raw JPEG or PNG bytes; text messages are
// {"image": base64, "annotate": bool}.
type AnalyzeSocket struct {
	app *app.App
	log logrus.FieldLogger
}

// NewAnalyzeSocket creates a new AnalyzeSocket.
func NewAnalyzeSocket(a *app.App, log logrus.FieldLogger) *AnalyzeSocket {
	return &AnalyzeSocket{app: a, log: log}
}

type socketFrame struct {
	Image    string `json:"image"`
	Annotate bool   `json:"annotate"`
}

type socketError struct {
	Error string `json:"error"`
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *AnalyzeSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame socketFrame
		switch kind {
		case websocket.BinaryMessage:
			frame.Image = base64.StdEncoding.EncodeToString(data)
		case websocket.TextMessage:
			if err := json.Unmarshal(data, &frame); err != nil || frame.Image == "" {
				if writeMessage(conn, socketError{Error: "expected {\"image\": base64}"}) != nil {
					return
				}
				continue
			}
		default:
			continue
		}

		if err := writeMessage(conn, h.analyze(r, frame)); err != nil {
			return
		}
	}
}

func (h *AnalyzeSocket) analyze(r *http.Request, frame socketFrame) interface{} {
	res, err := h.app.AnalyzeImage(r.Context(), frame.Image, frame.Annotate)
	switch {
	case err == nil:
		return api.NewPostureResponse(res)
	case errors.Is(err, app.ErrNoPersonDetected):
		return api.NoDetection()
	case errors.Is(err, render.ErrInvalidImage):
		return socketError{Error: "Invalid image data"}
	case errors.Is(err, app.ErrDetectorUnavailable):
		return socketError{Error: "Pose detector unavailable"}
	default:
		h.log.WithError(err).Error("websocket analysis failed")
		return socketError{Error: "Failed to analyze image"}
	}
}

// LiveHandler pushes every live monitor result to connected websocket clients.
type LiveHandler struct {
	app *app.App
	log logrus.FieldLogger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(a *app.App, log logrus.FieldLogger) *LiveHandler {
	return &LiveHandler{app: a, log: log}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}
	defer conn.Close()

	updates, cancel := h.app.Subscribe()
	defer cancel()

	// Keep reading so close frames are processed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case res, ok := <-updates:
			if !ok {
				return
			}
			var msg interface{} = api.NoDetection()
			if res.Assessment != nil {
				// the frame itself is served by /api/stream
				msg = api.NewPostureResponse(&app.Result{Assessment: res.Assessment})
			}
			if err := writeMessage(conn, msg); err != nil {
				return
			}
		}
	}
}
