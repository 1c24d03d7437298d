package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// VerticalReferenceOffset is how far below the origin, in pixels, the synthetic
// reference point used by AngleFromVertical is placed.
const VerticalReferenceOffset = 100.0

// degenerateLength is the vector length below which an angle is considered undefined.
const degenerateLength = 1e-9

// AngleBetween returns the angle at vertex b formed by points a and c, in degrees within [0, 180].
// When a or c coincides with b the angle is undefined; AngleBetween then returns 0 and false.
func AngleBetween(a, b, c r2.Vec) (float64, bool) {
	ba := r2.Sub(a, b)
	bc := r2.Sub(c, b)

	nba := r2.Norm(ba)
	nbc := r2.Norm(bc)
	if nba < degenerateLength || nbc < degenerateLength {
		return 0, false
	}

	cosine := r2.Dot(ba, bc) / (nba * nbc)
	cosine = math.Max(-1, math.Min(1, cosine))

	return degrees(math.Acos(cosine)), true
}

// AngleFromVertical measures the angle at origin between p and a reference point
// placed directly below origin. A point straight above origin yields 180.
func AngleFromVertical(p, origin r2.Vec) (float64, bool) {
	ref := r2.Vec{X: origin.X, Y: origin.Y + VerticalReferenceOffset}
	return AngleBetween(p, origin, ref)
}

// SignedAngleFromVertical returns the angle of the vector (dx, dy) measured from the
// upward vertical in image space, in degrees within (-180, 180]. Positive angles point
// toward increasing x. The zero vector yields 0.
func SignedAngleFromVertical(dx, dy float64) float64 {
	if dx == 0 && dy == 0 {
		return 0
	}

	// image y grows downward, so "up" is -dy
	angle := degrees(math.Atan2(dx, -dy))
	if angle <= -180 {
		angle += 360
	}
	return angle
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r2.Vec) r2.Vec {
	return r2.Scale(0.5, r2.Add(a, b))
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
