package posture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/sitwell/internal/pose"
)

// Tilt limits used by the angle profile, in degrees from upright.
const (
	maxNeckTilt      = 45.0
	maxShoulderTilt  = 15.0
	maxBackTilt      = 20.0
	shoulderRefAbove = 100.0
)

var angleRequired = [...]pose.Label{
	pose.Nose,
	pose.LeftShoulder,
	pose.RightShoulder,
	pose.LeftHip,
	pose.RightHip,
}

// AngleScorer is the legacy profile. It flags forward head posture, uneven shoulders
// and slouching from joint angles and grades the frame by how many issues it found.
// Region scores are 1 when the region has no issue and 0 otherwise.
type AngleScorer struct {
	cfg Config
}

// NewAngleScorer creates an AngleScorer. The config must already be valid.
func NewAngleScorer(cfg Config) *AngleScorer {
	return &AngleScorer{cfg: cfg}
}

// Analyze implements Scorer.
func (s *AngleScorer) Analyze(set pose.Set) Analysis {
	for _, label := range angleRequired {
		if !set.Has(label) {
			return Analysis{
				ShoulderBalance: scoreUnknown,
				NeckPosition:    scoreUnknown,
				BackPosition:    scoreUnknown,
				OverallScore:    scoreUnknown,
				IsGoodPosture:   false,
				Feedback:        []string{"Not enough visible keypoints for analysis"},
				Profile:         ProfileAngle,
				Quality:         QualityUnknown,
				Issues:          []string{"Not enough visible keypoints for analysis"},
				Recommendations: []string{"Position yourself so your upper body is clearly visible"},
			}
		}
	}

	point := func(l pose.Label) r2.Vec {
		kp, _ := set.Get(l)
		return kp.Point()
	}

	nose := point(pose.Nose)
	ls, rs := point(pose.LeftShoulder), point(pose.RightShoulder)
	lh, rh := point(pose.LeftHip), point(pose.RightHip)
	midShoulder := pose.Midpoint(ls, rs)
	midHip := pose.Midpoint(lh, rh)

	neckTilt := tiltFromUpright(nose, midShoulder)
	backTilt := tiltFromUpright(midShoulder, midHip)

	var shoulderTilt float64
	above := r2.Vec{X: ls.X, Y: ls.Y - shoulderRefAbove}
	if a, ok := pose.AngleBetween(above, ls, rs); ok {
		shoulderTilt = math.Abs(90 - a)
	}

	a := Analysis{
		ShoulderBalance: scoreGood,
		NeckPosition:    scoreGood,
		BackPosition:    scoreGood,
		Profile:         ProfileAngle,
		Issues:          []string{},
		Recommendations: []string{},
	}

	if neckTilt > maxNeckTilt {
		a.NeckPosition = 0
		a.Issues = append(a.Issues, "Forward head posture")
		a.Recommendations = append(a.Recommendations, "Bring your head back to align with your spine")
	}
	if shoulderTilt > maxShoulderTilt {
		a.ShoulderBalance = 0
		a.Issues = append(a.Issues, "Uneven shoulders")
		a.Recommendations = append(a.Recommendations, "Level your shoulders and relax them down")
	}
	if backTilt > maxBackTilt {
		a.BackPosition = 0
		a.Issues = append(a.Issues, "Slouching")
		a.Recommendations = append(a.Recommendations, "Sit up straight with your back against the chair")
	}

	a.OverallScore = (a.ShoulderBalance + a.NeckPosition + a.BackPosition) / 3
	a.IsGoodPosture = len(a.Issues) == 0

	switch len(a.Issues) {
	case 0:
		a.Quality = QualityGood
	case 1:
		a.Quality = QualityFair
	default:
		a.Quality = QualityPoor
	}

	a.Feedback = append(append([]string{}, a.Recommendations...), summarize(a.OverallScore))
	return a
}

// tiltFromUpright is how far p leans away from straight above origin, in degrees.
// Coincident points count as upright.
func tiltFromUpright(p, origin r2.Vec) float64 {
	angle, ok := pose.AngleFromVertical(p, origin)
	if !ok {
		return 0
	}
	return 180 - angle
}
