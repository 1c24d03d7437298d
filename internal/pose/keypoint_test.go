package pose

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestLabel_String(t *testing.T) {
	tests := []struct {
		label Label
		want  string
	}{
		{Nose, "nose"},
		{LeftEar, "left_ear"},
		{RightShoulder, "right_shoulder"},
		{LeftHip, "left_hip"},
		{RightAnkle, "right_ankle"},
		{Label(42), "label(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.label.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLabel(t *testing.T) {
	for l := Label(0); l < NumLabels; l++ {
		got, ok := ParseLabel(l.String())
		if !ok {
			t.Errorf("ParseLabel(%q) not found", l.String())
			continue
		}
		if got != l {
			t.Errorf("ParseLabel(%q) = %v, want %v", l.String(), got, l)
		}
	}

	if _, ok := ParseLabel("left_tail"); ok {
		t.Error("expected unknown label to be rejected")
	}
}

func TestLabel_Opposite(t *testing.T) {
	pairs := [][2]Label{
		{LeftEye, RightEye},
		{LeftEar, RightEar},
		{LeftShoulder, RightShoulder},
		{LeftElbow, RightElbow},
		{LeftWrist, RightWrist},
		{LeftHip, RightHip},
		{LeftKnee, RightKnee},
		{LeftAnkle, RightAnkle},
	}

	for _, p := range pairs {
		if got := p[0].Opposite(); got != p[1] {
			t.Errorf("%v.Opposite() = %v, want %v", p[0], got, p[1])
		}
		if got := p[1].Opposite(); got != p[0] {
			t.Errorf("%v.Opposite() = %v, want %v", p[1], got, p[0])
		}
	}

	if Nose.Opposite() != Nose {
		t.Error("nose should be its own opposite")
	}
}

func TestNewSet(t *testing.T) {
	t.Run("filters by minimum confidence", func(t *testing.T) {
		set := NewSet(map[Label]Keypoint{
			LeftShoulder:  {X: 100, Y: 50, Confidence: 0.9},
			RightShoulder: {X: 200, Y: 50, Confidence: 0.49},
			LeftHip:       {X: 100, Y: 200, Confidence: 0.5},
		}, DefaultMinConfidence)

		if !set.Has(LeftShoulder) {
			t.Error("expected left shoulder to be kept")
		}
		if set.Has(RightShoulder) {
			t.Error("expected low confidence right shoulder to be dropped")
		}
		if !set.Has(LeftHip) {
			t.Error("expected keypoint exactly at the threshold to be kept")
		}
		if set.Len() != 2 {
			t.Errorf("expected 2 keypoints, got %d", set.Len())
		}
	})

	t.Run("drops non-finite values", func(t *testing.T) {
		set := NewSet(map[Label]Keypoint{
			Nose:    {X: math.NaN(), Y: 10, Confidence: 0.9},
			LeftEar: {X: 10, Y: math.Inf(1), Confidence: 0.9},
			LeftHip: {X: 10, Y: 10, Confidence: math.NaN()},
		}, DefaultMinConfidence)

		if set.Len() != 0 {
			t.Errorf("expected empty set, got %d keypoints", set.Len())
		}
	})

	t.Run("does not alias the input map", func(t *testing.T) {
		input := map[Label]Keypoint{Nose: {X: 1, Y: 2, Confidence: 0.9}}
		set := NewSet(input, DefaultMinConfidence)

		input[Nose] = Keypoint{X: 99, Y: 99, Confidence: 0.9}

		kp, _ := set.Get(Nose)
		if kp.X != 1 {
			t.Errorf("expected set to keep original value, got X=%f", kp.X)
		}
	})

	t.Run("zero value is empty", func(t *testing.T) {
		var set Set
		if set.Len() != 0 || set.Has(Nose) {
			t.Error("expected zero Set to be empty")
		}
	})
}

func TestFromDense(t *testing.T) {
	dense := make([]Keypoint, NumLabels+2)
	for i := range dense {
		dense[i] = Keypoint{X: float64(i), Y: float64(i * 10), Confidence: 0.8}
	}
	dense[Nose].Confidence = 0.1

	set := FromDense(dense, DefaultMinConfidence)

	if set.Has(Nose) {
		t.Error("expected low confidence nose to be filtered")
	}
	if set.Len() != int(NumLabels)-1 {
		t.Errorf("expected %d keypoints, got %d", NumLabels-1, set.Len())
	}

	kp, ok := set.Get(RightHip)
	if !ok {
		t.Fatal("expected right hip to be present")
	}
	if kp.X != float64(RightHip) || kp.Y != float64(RightHip)*10 {
		t.Errorf("right hip mapped to wrong index: %+v", kp)
	}
}

func TestParseNamed(t *testing.T) {
	set, err := ParseNamed(map[string]Keypoint{
		"left_shoulder":  {X: 100, Y: 50, Confidence: 0.9},
		"right_shoulder": {X: 200, Y: 50, Confidence: 0.3},
	}, DefaultMinConfidence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set.Has(LeftShoulder) || set.Has(RightShoulder) {
		t.Errorf("unexpected labels %v", set.Labels())
	}

	if _, err := ParseNamed(map[string]Keypoint{"tail": {}}, DefaultMinConfidence); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestSet_Labels(t *testing.T) {
	set := NewSet(map[Label]Keypoint{
		RightHip: {Confidence: 1},
		Nose:     {Confidence: 1},
		LeftEar:  {Confidence: 1},
	}, DefaultMinConfidence)

	labels := set.Labels()
	want := []Label{Nose, LeftEar, RightHip}

	if len(labels) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(labels))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %v, want %v", i, labels[i], want[i])
		}
	}
}

func TestSet_Mirror(t *testing.T) {
	set := NewSet(map[Label]Keypoint{
		Nose:         {X: 1, Y: 1, Confidence: 1},
		LeftShoulder: {X: 100, Y: 40, Confidence: 0.9},
		RightHip:     {X: 200, Y: 60, Confidence: 0.8},
	}, DefaultMinConfidence)

	mirrored := set.Mirror()

	if kp, ok := mirrored.Get(RightShoulder); !ok || kp.X != 100 {
		t.Errorf("expected left shoulder to move to right shoulder, got %+v (present=%v)", kp, ok)
	}
	if kp, ok := mirrored.Get(LeftHip); !ok || kp.X != 200 {
		t.Errorf("expected right hip to move to left hip, got %+v (present=%v)", kp, ok)
	}
	if !mirrored.Has(Nose) {
		t.Error("expected nose to stay in place")
	}
	if mirrored.Has(LeftShoulder) || mirrored.Has(RightHip) {
		t.Error("expected original labels to be vacated")
	}
}

func TestSet_MarshalJSON(t *testing.T) {
	set := NewSet(map[Label]Keypoint{
		LeftShoulder: {X: 100, Y: 50, Confidence: 0.9},
	}, DefaultMinConfidence)

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]Keypoint
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	kp, ok := decoded["left_shoulder"]
	if !ok {
		t.Fatalf("expected left_shoulder key in %s", data)
	}
	if kp.X != 100 || kp.Y != 50 || kp.Confidence != 0.9 {
		t.Errorf("unexpected keypoint %+v", kp)
	}
}
