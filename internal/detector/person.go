package detector

import (
	"github.com/ayusman/sitwell/internal/pose"
)

// Person is one detected body with all 17 keypoints in COCO order.
// Keypoints the model could not place carry a low confidence.
type Person struct {
	Keypoints [pose.NumLabels]pose.Keypoint `json:"keypoints"`
	Score     float64                       `json:"score"`
}

// Set converts the dense keypoints into a confidence-filtered pose.Set.
func (p Person) Set(minConfidence float64) pose.Set {
	return pose.FromDense(p.Keypoints[:], minConfidence)
}

// Primary returns the person with the highest detection score.
// Ties keep the earlier person. An empty slice yields ErrNoPerson.
func Primary(people []Person) (Person, error) {
	if len(people) == 0 {
		return Person{}, ErrNoPerson
	}

	best := 0
	for i := 1; i < len(people); i++ {
		if people[i].Score > people[best].Score {
			best = i
		}
	}
	return people[best], nil
}
