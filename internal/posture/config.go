// Package posture scores sitting posture from a set of body keypoints.
package posture

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/ayusman/sitwell/internal/pose"
)

// Profile selects which scoring scheme a Scorer applies.
type Profile string

const (
	// ProfileWeighted is the three-region weighted scorer.
	ProfileWeighted Profile = "weighted"
	// ProfileAngle is the legacy angle-based scorer that only flags issues.
	ProfileAngle Profile = "angle"
)

// Facing is the direction the subject faces along the image x axis.
// It decides whether a horizontal offset reads as leaning forward or backward.
type Facing string

const (
	// FacingRight means the subject faces toward increasing x.
	FacingRight Facing = "right"
	// FacingLeft means the subject faces toward decreasing x.
	FacingLeft Facing = "left"
)

// Side names one side of the body.
type Side int

const (
	Left Side = iota
	Right
)

// Weights sets how much each region contributes to the overall score.
type Weights struct {
	Shoulder float64 `json:"shoulder" validate:"gte=0"`
	Neck     float64 `json:"neck" validate:"gte=0"`
	Back     float64 `json:"back" validate:"gte=0"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Shoulder + w.Neck + w.Back
}

// Config holds the scoring parameters. It is loaded once at startup and never mutated.
type Config struct {
	Weights                  Weights `json:"weights"`
	ShoulderBalanceThreshold float64 `json:"shoulderBalanceThreshold" validate:"gt=0"`
	NeckTiltThreshold        float64 `json:"neckTiltThreshold" validate:"gt=0"`
	BackAngleThreshold       float64 `json:"backAngleThreshold" validate:"gt=0"` // degrees
	MinConfidence            float64 `json:"minConfidence" validate:"gte=0,lte=1"`
	GoodPostureCutoff        float64 `json:"goodPostureCutoff" validate:"gte=0,lte=1"`
	Facing                   Facing  `json:"facing" validate:"oneof=right left"`
	Profile                  Profile `json:"profile" validate:"oneof=weighted angle"`
	PreferredSide            Side    `json:"-"`
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Shoulder: 0.3,
			Neck:     0.4,
			Back:     0.3,
		},
		ShoulderBalanceThreshold: 0.05,
		NeckTiltThreshold:        0.15,
		BackAngleThreshold:       15.0,
		MinConfidence:            pose.DefaultMinConfidence,
		GoodPostureCutoff:        0.7,
		Facing:                   FacingRight,
		Profile:                  ProfileWeighted,
		PreferredSide:            Left,
	}
}

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid posture config")

var validate = validator.New()

// Validate reports whether the configuration can be used for scoring.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for name, v := range c.numbers() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidConfig, name)
		}
	}
	if c.Weights.Sum() <= 0 {
		return fmt.Errorf("%w: weights must not all be zero", ErrInvalidConfig)
	}
	if c.PreferredSide != Left && c.PreferredSide != Right {
		return fmt.Errorf("%w: unknown preferred side %d", ErrInvalidConfig, c.PreferredSide)
	}
	return nil
}

func (c Config) numbers() map[string]float64 {
	return map[string]float64{
		"shoulder weight":            c.Weights.Shoulder,
		"neck weight":                c.Weights.Neck,
		"back weight":                c.Weights.Back,
		"shoulder balance threshold": c.ShoulderBalanceThreshold,
		"neck tilt threshold":        c.NeckTiltThreshold,
		"back angle threshold":       c.BackAngleThreshold,
		"min confidence":             c.MinConfidence,
		"good posture cutoff":        c.GoodPostureCutoff,
	}
}

// ParseProfile converts a profile name into a Profile.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(s); p {
	case ProfileWeighted, ProfileAngle:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, s)
}

// ParseFacing converts a facing name into a Facing.
func ParseFacing(s string) (Facing, error) {
	switch f := Facing(s); f {
	case FacingRight, FacingLeft:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown facing %q", ErrInvalidConfig, s)
}
