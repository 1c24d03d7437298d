package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitwell/internal/pose"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	people []Person
	err    error
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetPeople sets the people that will be returned by Detect.
func (m *MockDetector) SetPeople(people []Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people = people
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured people or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.people, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// UprightPerson returns a preset Person sitting side-on with ears over shoulders
// over hips, facing +x. It scores well under the default posture config.
func UprightPerson() Person {
	p := Person{Score: 0.92}

	// Face
	p.Keypoints[pose.Nose] = pose.Keypoint{X: 330, Y: 110, Confidence: 0.95}
	p.Keypoints[pose.LeftEye] = pose.Keypoint{X: 322, Y: 98, Confidence: 0.9}
	p.Keypoints[pose.RightEye] = pose.Keypoint{X: 334, Y: 98, Confidence: 0.4}
	p.Keypoints[pose.LeftEar] = pose.Keypoint{X: 302, Y: 106, Confidence: 0.88}
	p.Keypoints[pose.RightEar] = pose.Keypoint{X: 318, Y: 106, Confidence: 0.3}

	// Shoulders level, directly below the ear
	p.Keypoints[pose.LeftShoulder] = pose.Keypoint{X: 300, Y: 200, Confidence: 0.93}
	p.Keypoints[pose.RightShoulder] = pose.Keypoint{X: 320, Y: 202, Confidence: 0.6}

	// Arms resting forward
	p.Keypoints[pose.LeftElbow] = pose.Keypoint{X: 310, Y: 290, Confidence: 0.85}
	p.Keypoints[pose.RightElbow] = pose.Keypoint{X: 330, Y: 290, Confidence: 0.4}
	p.Keypoints[pose.LeftWrist] = pose.Keypoint{X: 380, Y: 300, Confidence: 0.8}
	p.Keypoints[pose.RightWrist] = pose.Keypoint{X: 395, Y: 300, Confidence: 0.35}

	// Hips straight below shoulders
	p.Keypoints[pose.LeftHip] = pose.Keypoint{X: 302, Y: 380, Confidence: 0.9}
	p.Keypoints[pose.RightHip] = pose.Keypoint{X: 318, Y: 382, Confidence: 0.55}

	// Thighs horizontal on the seat
	p.Keypoints[pose.LeftKnee] = pose.Keypoint{X: 420, Y: 385, Confidence: 0.8}
	p.Keypoints[pose.RightKnee] = pose.Keypoint{X: 430, Y: 385, Confidence: 0.4}
	p.Keypoints[pose.LeftAnkle] = pose.Keypoint{X: 425, Y: 500, Confidence: 0.7}
	p.Keypoints[pose.RightAnkle] = pose.Keypoint{X: 435, Y: 500, Confidence: 0.3}

	return p
}

// SlouchedPerson returns a preset Person with the head pushed forward, one shoulder
// dropped and the torso hunched toward +x. It scores poorly under the default config.
func SlouchedPerson() Person {
	p := UprightPerson()
	p.Score = 0.88

	p.Keypoints[pose.Nose] = pose.Keypoint{X: 420, Y: 170, Confidence: 0.93}
	p.Keypoints[pose.LeftEye] = pose.Keypoint{X: 410, Y: 160, Confidence: 0.9}
	p.Keypoints[pose.LeftEar] = pose.Keypoint{X: 390, Y: 170, Confidence: 0.87}

	p.Keypoints[pose.LeftShoulder] = pose.Keypoint{X: 360, Y: 230, Confidence: 0.92}
	p.Keypoints[pose.RightShoulder] = pose.Keypoint{X: 380, Y: 260, Confidence: 0.6}

	return p
}

// EmptyPerson returns a Person whose keypoints are all below any useful confidence.
func EmptyPerson() Person {
	return Person{Score: 0.3}
}
