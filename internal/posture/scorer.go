package posture

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/sitwell/internal/pose"
)

// Quality is the qualitative verdict for a frame.
type Quality string

const (
	QualityGood    Quality = "good"
	QualityFair    Quality = "fair"
	QualityPoor    Quality = "poor"
	QualityUnknown Quality = "unknown"
)

// Summary thresholds on the overall score. Both are exclusive lower bounds.
const (
	excellentAbove = 0.8
	goodAbove      = 0.6
)

// Analysis is the full posture assessment of one frame.
type Analysis struct {
	ShoulderBalance float64  `json:"shoulderBalance"`
	NeckPosition    float64  `json:"neckPosition"`
	BackPosition    float64  `json:"backPosition"`
	OverallScore    float64  `json:"overallScore"`
	IsGoodPosture   bool     `json:"isGoodPosture"`
	Feedback        []string `json:"feedback"`

	Profile         Profile  `json:"profile"`
	Quality         Quality  `json:"quality"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Scorer turns a keypoint set into a posture analysis.
// Implementations are safe for concurrent use.
type Scorer interface {
	Analyze(set pose.Set) Analysis
}

// New validates cfg and returns the Scorer for its profile.
func New(cfg Config) (Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Profile == ProfileAngle {
		return &AngleScorer{cfg: cfg}, nil
	}
	return &WeightedScorer{cfg: cfg}, nil
}

// WeightedScorer scores shoulder balance, neck position and back position independently
// and combines them with the configured weights.
type WeightedScorer struct {
	cfg Config
}

// NewWeightedScorer creates a WeightedScorer. The config must already be valid.
func NewWeightedScorer(cfg Config) *WeightedScorer {
	return &WeightedScorer{cfg: cfg}
}

// Config returns the scorer's configuration.
func (s *WeightedScorer) Config() Config {
	return s.cfg
}

// Analyze implements Scorer.
func (s *WeightedScorer) Analyze(set pose.Set) Analysis {
	regions := [...]RegionScore{
		ShoulderBalance(set, s.cfg),
		NeckPosition(set, s.cfg),
		BackPosition(set, s.cfg),
	}

	scores := make([]float64, len(regions))
	feedback := make([]string, 0, len(regions)+1)
	issues := make([]string, 0, len(regions))
	assessed := false
	for i, r := range regions {
		scores[i] = r.Score
		if r.Feedback != "" {
			feedback = append(feedback, r.Feedback)
		}
		if r.Assessed() {
			assessed = true
			if r.Score < scoreGood {
				issues = append(issues, r.Feedback)
			}
		}
	}

	w := s.cfg.Weights
	weights := []float64{w.Shoulder, w.Neck, w.Back}
	overall := clamp01(floats.Dot(scores, weights) / floats.Sum(weights))

	feedback = append(feedback, summarize(overall))

	a := Analysis{
		ShoulderBalance: regions[0].Score,
		NeckPosition:    regions[1].Score,
		BackPosition:    regions[2].Score,
		OverallScore:    overall,
		IsGoodPosture:   overall >= s.cfg.GoodPostureCutoff,
		Feedback:        feedback,
		Profile:         ProfileWeighted,
		Issues:          issues,
		Recommendations: []string{},
	}

	switch {
	case !assessed:
		a.Quality = QualityUnknown
	case a.IsGoodPosture:
		a.Quality = QualityGood
	case overall > goodAbove:
		a.Quality = QualityFair
	default:
		a.Quality = QualityPoor
	}

	return a
}

func summarize(overall float64) string {
	switch {
	case overall > excellentAbove:
		return "Overall posture is excellent"
	case overall > goodAbove:
		return "Overall posture is good, with minor adjustments needed"
	default:
		return "Significant posture corrections needed"
	}
}

// clamp01 guards against rounding drift in the weighted mean. NaN maps to the neutral score.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return scoreUnknown
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
