package posture

import (
	"math"
	"strings"

	"github.com/ayusman/sitwell/internal/pose"
)

// Score bands shared by all region analyzers.
const (
	scoreGood    = 1.0
	scoreFair    = 0.7
	scorePoor    = 0.3
	scoreUnknown = 0.5
)

// RegionScore is the result of analyzing one body region.
// An empty Feedback means the analyzer has nothing to say.
type RegionScore struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
}

// Assessed reports whether the region had enough keypoints to be scored.
func (r RegionScore) Assessed() bool {
	return !strings.HasPrefix(r.Feedback, unassessablePrefix)
}

const unassessablePrefix = "Unable to assess "

func unassessable(region string) RegionScore {
	return RegionScore{Score: scoreUnknown, Feedback: unassessablePrefix + region}
}

// preferSide returns the keypoint on the preferred side, falling back to the other side
// when the preferred one is missing.
func preferSide(set pose.Set, left, right pose.Label, preferred Side) (pose.Keypoint, bool) {
	first, second := left, right
	if preferred == Right {
		first, second = right, left
	}
	if kp, ok := set.Get(first); ok {
		return kp, true
	}
	return set.Get(second)
}

// forward reports whether a positive x offset along the subject's facing direction
// means leaning forward.
func (c Config) forward(dx float64) bool {
	if c.Facing == FacingLeft {
		return dx < 0
	}
	return dx > 0
}

// ShoulderBalance scores how level the two shoulders are. Both shoulders are required.
func ShoulderBalance(set pose.Set, cfg Config) RegionScore {
	left, okL := set.Get(pose.LeftShoulder)
	right, okR := set.Get(pose.RightShoulder)
	if !okL || !okR {
		return unassessable("shoulder balance")
	}

	diff := math.Abs(left.Y - right.Y)
	mean := (left.Y + right.Y) / 2

	var ratio float64
	switch {
	case math.Abs(mean) > 1e-9:
		ratio = diff / math.Abs(mean)
	case diff == 0:
		ratio = 0
	default:
		ratio = math.Inf(1)
	}

	t := cfg.ShoulderBalanceThreshold
	switch {
	case ratio < t:
		return RegionScore{Score: scoreGood, Feedback: "Shoulders are well-balanced"}
	case ratio < 2*t:
		return RegionScore{Score: scoreFair, Feedback: "Shoulders are slightly uneven"}
	default:
		return RegionScore{Score: scorePoor, Feedback: "Shoulders are significantly uneven - try to level them"}
	}
}

// NeckPosition scores how well the head sits over the shoulders.
// It needs one ear and one shoulder, picked independently by side preference.
func NeckPosition(set pose.Set, cfg Config) RegionScore {
	ear, okE := preferSide(set, pose.LeftEar, pose.RightEar, cfg.PreferredSide)
	shoulder, okS := preferSide(set, pose.LeftShoulder, pose.RightShoulder, cfg.PreferredSide)
	if !okE || !okS {
		return unassessable("neck position")
	}

	tilt := ear.X - shoulder.X
	vertical := shoulder.Y - ear.Y

	if vertical <= 0 {
		return RegionScore{Score: scorePoor, Feedback: "Head position is too low - raise your head"}
	}

	ratio := math.Abs(tilt) / vertical
	direction := "backward"
	if cfg.forward(tilt) {
		direction = "forward"
	}

	t := cfg.NeckTiltThreshold
	switch {
	case ratio < t:
		return RegionScore{Score: scoreGood, Feedback: "Neck position is good"}
	case ratio < 2*t:
		return RegionScore{Score: scoreFair, Feedback: "Neck is slightly " + direction + " - try to align ears with shoulders"}
	default:
		return RegionScore{Score: scorePoor, Feedback: "Neck is significantly " + direction + " - align your head over your shoulders"}
	}
}

// BackPosition scores the lean of the torso from vertical using one shoulder and one hip.
func BackPosition(set pose.Set, cfg Config) RegionScore {
	shoulder, okS := preferSide(set, pose.LeftShoulder, pose.RightShoulder, cfg.PreferredSide)
	hip, okH := preferSide(set, pose.LeftHip, pose.RightHip, cfg.PreferredSide)
	if !okS || !okH {
		return unassessable("back position")
	}

	dx := shoulder.X - hip.X
	angle := pose.SignedAngleFromVertical(dx, shoulder.Y-hip.Y)
	magnitude := math.Abs(angle)
	forward := cfg.forward(dx)

	t := cfg.BackAngleThreshold
	switch {
	case magnitude < t:
		return RegionScore{Score: scoreGood, Feedback: "Back is upright - good posture"}
	case magnitude < 1.5*t:
		if forward {
			return RegionScore{Score: scoreFair, Feedback: "Back is leaning slightly forward - try to sit more upright"}
		}
		return RegionScore{Score: scoreFair, Feedback: "Back is leaning slightly backward - try to sit more upright"}
	default:
		if forward {
			return RegionScore{Score: scorePoor, Feedback: "Back is significantly hunched forward - sit up straighter"}
		}
		return RegionScore{Score: scorePoor, Feedback: "Back is leaning too far back - adjust your chair"}
	}
}
