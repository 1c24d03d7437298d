package pose

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

const epsilon = 1e-9

func TestAngleBetween(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c r2.Vec
		want    float64
		wantOK  bool
	}{
		{
			name:   "right angle",
			a:      r2.Vec{X: 1, Y: 0},
			b:      r2.Vec{X: 0, Y: 0},
			c:      r2.Vec{X: 0, Y: 1},
			want:   90,
			wantOK: true,
		},
		{
			name:   "straight line",
			a:      r2.Vec{X: -5, Y: 0},
			b:      r2.Vec{X: 0, Y: 0},
			c:      r2.Vec{X: 7, Y: 0},
			want:   180,
			wantOK: true,
		},
		{
			name:   "same direction",
			a:      r2.Vec{X: 2, Y: 2},
			b:      r2.Vec{X: 0, Y: 0},
			c:      r2.Vec{X: 5, Y: 5},
			want:   0,
			wantOK: true,
		},
		{
			name:   "forty five degrees",
			a:      r2.Vec{X: 10, Y: 0},
			b:      r2.Vec{X: 0, Y: 0},
			c:      r2.Vec{X: 3, Y: 3},
			want:   45,
			wantOK: true,
		},
		{
			name:   "a coincides with vertex",
			a:      r2.Vec{X: 1, Y: 1},
			b:      r2.Vec{X: 1, Y: 1},
			c:      r2.Vec{X: 3, Y: 3},
			want:   0,
			wantOK: false,
		},
		{
			name:   "c coincides with vertex",
			a:      r2.Vec{X: 0, Y: 5},
			b:      r2.Vec{X: 1, Y: 1},
			c:      r2.Vec{X: 1, Y: 1},
			want:   0,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AngleBetween(tt.a, tt.b, tt.c)

			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if math.IsNaN(got) {
				t.Fatal("angle must never be NaN")
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("angle = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestAngleBetween_ClipsRoundingError(t *testing.T) {
	// nearly parallel vectors push the cosine past 1 without clipping
	a := r2.Vec{X: 1e8, Y: 1e8 + 1}
	b := r2.Vec{}
	c := r2.Vec{X: 3e8, Y: 3e8 + 3}

	got, ok := AngleBetween(a, b, c)
	if !ok {
		t.Fatal("expected a defined angle")
	}
	if math.IsNaN(got) || got < 0 || got > 180 {
		t.Errorf("angle out of range: %f", got)
	}
}

func TestAngleFromVertical(t *testing.T) {
	origin := r2.Vec{X: 100, Y: 100}

	t.Run("point straight above is 180", func(t *testing.T) {
		got, ok := AngleFromVertical(r2.Vec{X: 100, Y: 20}, origin)
		if !ok || math.Abs(got-180) > epsilon {
			t.Errorf("got %f (ok=%v), want 180", got, ok)
		}
	})

	t.Run("point straight below is 0", func(t *testing.T) {
		got, ok := AngleFromVertical(r2.Vec{X: 100, Y: 300}, origin)
		if !ok || math.Abs(got) > epsilon {
			t.Errorf("got %f (ok=%v), want 0", got, ok)
		}
	})

	t.Run("point to the side is 90", func(t *testing.T) {
		got, ok := AngleFromVertical(r2.Vec{X: 250, Y: 100}, origin)
		if !ok || math.Abs(got-90) > epsilon {
			t.Errorf("got %f (ok=%v), want 90", got, ok)
		}
	})

	t.Run("point at origin is degenerate", func(t *testing.T) {
		if _, ok := AngleFromVertical(origin, origin); ok {
			t.Error("expected degenerate result")
		}
	})
}

func TestSignedAngleFromVertical(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
		want   float64
	}{
		{"straight up", 0, -100, 0},
		{"leaning toward +x", 50, -100, math.Atan2(50, 100) * 180 / math.Pi},
		{"leaning toward -x", -50, -100, -math.Atan2(50, 100) * 180 / math.Pi},
		{"horizontal +x", 10, 0, 90},
		{"horizontal -x", -10, 0, -90},
		{"straight down", 0, 100, 180},
		{"zero vector", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SignedAngleFromVertical(tt.dx, tt.dy)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SignedAngleFromVertical(%v, %v) = %f, want %f", tt.dx, tt.dy, got, tt.want)
			}
			if got <= -180 || got > 180 {
				t.Errorf("angle %f outside (-180, 180]", got)
			}
		})
	}

	t.Run("scenario shoulder ahead of hip", func(t *testing.T) {
		got := SignedAngleFromVertical(150-100, 100-200)
		if math.Abs(got-26.565051177) > 1e-6 {
			t.Errorf("got %f, want ~26.57", got)
		}
	})
}

func TestMidpoint(t *testing.T) {
	got := Midpoint(r2.Vec{X: 0, Y: 10}, r2.Vec{X: 20, Y: 30})
	if got.X != 10 || got.Y != 20 {
		t.Errorf("Midpoint = %+v, want {10 20}", got)
	}
}
