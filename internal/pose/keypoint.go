// Package pose provides the keypoint data model and geometry helpers used for posture scoring.
package pose

import (
	"errors"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
	"gonum.org/v1/gonum/spatial/r2"
)

// Label identifies an anatomical keypoint. Values follow the COCO 17-keypoint order
// produced by YOLO pose models, so a Label doubles as an index into dense model output.
type Label int

const (
	Nose Label = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	NumLabels
)

// DefaultMinConfidence is the confidence a keypoint needs to be trusted.
const DefaultMinConfidence = 0.5

// ErrUnknownLabel is returned when a keypoint name is not one of the COCO labels.
var ErrUnknownLabel = errors.New("unknown keypoint label")

var labelNames = [NumLabels]string{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}

// String returns the snake_case name of the label, e.g. "left_shoulder".
func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("label(%d)", int(l))
	}
	return labelNames[l]
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	return l >= 0 && l < NumLabels
}

// Opposite returns the label on the other side of the body.
// Midline labels (nose) are returned unchanged.
func (l Label) Opposite() Label {
	switch {
	case l == Nose || !l.Valid():
		return l
	case l%2 == 1:
		return l + 1
	default:
		return l - 1
	}
}

// ParseLabel converts a snake_case name into a Label.
func ParseLabel(name string) (Label, bool) {
	for i, n := range labelNames {
		if n == name {
			return Label(i), true
		}
	}
	return 0, false
}

// Keypoint is a single detected landmark in image pixel space (y grows downward).
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Point returns the keypoint position as a 2D vector.
func (k Keypoint) Point() r2.Vec {
	return r2.Vec{X: k.X, Y: k.Y}
}

func (k Keypoint) finite() bool {
	for _, v := range [...]float64{k.X, k.Y, k.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Set is the sparse, confidence-filtered collection of keypoints detected for one person.
// A Set is immutable once built; the zero value is an empty set.
type Set struct {
	points map[Label]Keypoint
}

// NewSet builds a Set from a labelled map, keeping only keypoints whose confidence is at
// least minConfidence and whose values are finite. Unknown labels are dropped.
func NewSet(points map[Label]Keypoint, minConfidence float64) Set {
	filtered := make(map[Label]Keypoint, len(points))
	for label, kp := range points {
		if !label.Valid() || !kp.finite() {
			continue
		}
		if kp.Confidence < minConfidence {
			continue
		}
		filtered[label] = kp
	}
	return Set{points: filtered}
}

// FromDense adapts dense model output, indexed in COCO order, into a Set.
// Entries beyond NumLabels are ignored.
func FromDense(points []Keypoint, minConfidence float64) Set {
	labelled := make(map[Label]Keypoint, len(points))
	for i := 0; i < len(points) && i < int(NumLabels); i++ {
		labelled[Label(i)] = points[i]
	}
	return NewSet(labelled, minConfidence)
}

// ParseNamed converts a name-keyed map, as received over the wire, into a Set.
// It fails on names that are not known labels.
func ParseNamed(points map[string]Keypoint, minConfidence float64) (Set, error) {
	labelled := make(map[Label]Keypoint, len(points))
	for name, kp := range points {
		label, ok := ParseLabel(name)
		if !ok {
			return Set{}, fmt.Errorf("%w %q", ErrUnknownLabel, name)
		}
		labelled[label] = kp
	}
	return NewSet(labelled, minConfidence), nil
}

// Get returns the keypoint for label and whether it is present.
func (s Set) Get(label Label) (Keypoint, bool) {
	kp, ok := s.points[label]
	return kp, ok
}

// Has reports whether label is present.
func (s Set) Has(label Label) bool {
	_, ok := s.points[label]
	return ok
}

// Len returns the number of keypoints in the set.
func (s Set) Len() int {
	return len(s.points)
}

// Labels returns the present labels in COCO order.
func (s Set) Labels() []Label {
	labels := make([]Label, 0, len(s.points))
	for l := Label(0); l < NumLabels; l++ {
		if _, ok := s.points[l]; ok {
			labels = append(labels, l)
		}
	}
	return labels
}

// Mirror returns a copy of the set with every left/right pair of labels swapped.
// Coordinates are left untouched.
func (s Set) Mirror() Set {
	mirrored := make(map[Label]Keypoint, len(s.points))
	for label, kp := range s.points {
		mirrored[label.Opposite()] = kp
	}
	return Set{points: mirrored}
}

// Named returns the set keyed by label name.
func (s Set) Named() map[string]Keypoint {
	named := make(map[string]Keypoint, len(s.points))
	for label, kp := range s.points {
		named[label.String()] = kp
	}
	return named
}

// MarshalJSON encodes the set as an object keyed by label name.
func (s Set) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(s.Named())
}
