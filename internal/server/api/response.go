// Package api provides the HTTP API handlers for sitwell.
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = validator.New()

// maxBodyBytes caps request bodies; base64 frames from a 1080p camera fit comfortably.
const maxBodyBytes = 16 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// WriteJSON is writeJSON for handlers outside this package.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

// WriteError is writeError for handlers outside this package.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

// decodeRequest reads a JSON body into dst and runs its validation tags.
// The returned message is safe to show to clients.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) (string, bool) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return "Request body too large", false
		case errors.Is(err, io.EOF):
			return "Request body is empty", false
		}
		return "Invalid JSON", false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return verrs[0].Field() + " is " + describeTag(verrs[0].Tag()), false
		}
		return "Invalid request", false
	}
	return "", true
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "dive", "keys":
		return "malformed"
	}
	return "invalid"
}
