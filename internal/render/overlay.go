package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitwell/internal/pose"
)

// bone is a pair of keypoints joined by a line in the skeleton overlay.
type bone struct {
	from, to pose.Label
}

// skeleton follows the COCO pose limb layout.
var skeleton = []bone{
	{pose.RightAnkle, pose.RightKnee},
	{pose.RightKnee, pose.RightHip},
	{pose.LeftAnkle, pose.LeftKnee},
	{pose.LeftKnee, pose.LeftHip},
	{pose.RightHip, pose.LeftHip},
	{pose.RightShoulder, pose.RightHip},
	{pose.LeftShoulder, pose.LeftHip},
	{pose.RightShoulder, pose.LeftShoulder},
	{pose.RightShoulder, pose.RightElbow},
	{pose.LeftShoulder, pose.LeftElbow},
	{pose.RightElbow, pose.RightWrist},
	{pose.LeftElbow, pose.LeftWrist},
	{pose.LeftEye, pose.RightEye},
	{pose.Nose, pose.LeftEye},
	{pose.Nose, pose.RightEye},
	{pose.LeftEye, pose.LeftEar},
	{pose.RightEye, pose.RightEar},
	{pose.LeftEar, pose.LeftShoulder},
	{pose.RightEar, pose.RightShoulder},
}

var (
	goodColor  = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	badColor   = color.RGBA{R: 0, G: 0, B: 230, A: 255} // gocv draws in BGR
	jointColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Style controls overlay appearance.
type Style struct {
	LineThickness int
	JointRadius   int
}

// DefaultStyle returns the overlay style used for annotated images.
func DefaultStyle() Style {
	return Style{LineThickness: 2, JointRadius: 4}
}

// DrawPose draws the skeleton of set onto img. Bones are green when good is true
// and red otherwise. Bones with a missing end are skipped.
func DrawPose(img *gocv.Mat, set pose.Set, good bool, style Style) {
	limb := badColor
	if good {
		limb = goodColor
	}

	for _, b := range skeleton {
		from, ok := set.Get(b.from)
		if !ok {
			continue
		}
		to, ok := set.Get(b.to)
		if !ok {
			continue
		}
		gocv.Line(img, pt(from), pt(to), limb, style.LineThickness)
	}

	for _, label := range set.Labels() {
		kp, _ := set.Get(label)
		gocv.Circle(img, pt(kp), style.JointRadius, jointColor, -1)
	}
}

// DrawScore writes the overall score in the top-left corner of img.
func DrawScore(img *gocv.Mat, score float64, good bool) {
	c := badColor
	if good {
		c = goodColor
	}
	text := fmt.Sprintf("posture %d%%", int(score*100))
	gocv.PutText(img, text, image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, c, 2)
}

func pt(kp pose.Keypoint) image.Point {
	return image.Pt(int(kp.X), int(kp.Y))
}
