// Package plugin runs external notifier executables when posture events occur.
package plugin

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event names a posture event that plugins can subscribe to.
type Event string

const (
	// EventPoorPosture fires when the live monitor sees bad posture.
	EventPoorPosture Event = "poor_posture"
	// EventPostureRecovered fires on the first good reading after a poor_posture alert.
	EventPostureRecovered Event = "posture_recovered"
)

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Description string              `json:"description"`
	Executable  string              `json:"executable"`
	Events      []Event             `json:"events"`
	Config      jsoniter.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the plugin subscribed to event.
func (m Manifest) Handles(event Event) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Request is written to a plugin's stdin as a single JSON document.
type Request struct {
	Event        Event               `json:"event"`
	AssessmentID string              `json:"assessmentId,omitempty"`
	Score        float64             `json:"score"`
	Quality      string              `json:"quality"`
	Issues       []string            `json:"issues"`
	Feedback     []string            `json:"feedback"`
	Timestamp    int64               `json:"timestamp"`
	Config       jsoniter.RawMessage `json:"config,omitempty"`
}

// Response is the JSON document a plugin writes to stdout.
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
	Data    jsoniter.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
