package render

import (
	"encoding/base64"
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/sitwell/internal/pose"
)

func testImage(t *testing.T) gocv.Mat {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 40, 40, 0), 120, 160, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := testImage(t)

	encoded, err := EncodeBase64PNG(img)
	if err != nil {
		t.Fatalf("EncodeBase64PNG() error = %v", err)
	}

	for name, payload := range map[string]string{
		"plain":    encoded,
		"data url": "data:image/png;base64," + encoded,
	} {
		t.Run(name, func(t *testing.T) {
			decoded, err := DecodeBase64(payload)
			if err != nil {
				t.Fatalf("DecodeBase64() error = %v", err)
			}
			defer decoded.Close()

			if decoded.Rows() != 120 || decoded.Cols() != 160 {
				t.Errorf("decoded size = %dx%d, want 160x120", decoded.Cols(), decoded.Rows())
			}
		})
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(testImage(t))
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	if len(data) < 3 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("expected JPEG magic bytes")
	}

	img, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	img.Close()
}

func TestDecodeBase64_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"data url without body", "data:image/png;base64,"},
		{"not base64", "%%%not-base64%%%"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello world"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeBase64(tt.payload)
			defer img.Close()

			if !errors.Is(err, ErrInvalidImage) {
				t.Errorf("expected ErrInvalidImage, got %v", err)
			}
		})
	}
}

func TestEncode_EmptyImage(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := EncodePNG(empty); err == nil {
		t.Error("expected error encoding an empty image")
	}
}

func TestDrawPose(t *testing.T) {
	img := testImage(t)
	before := img.Clone()
	defer before.Close()

	set := pose.NewSet(map[pose.Label]pose.Keypoint{
		pose.LeftShoulder: {X: 40, Y: 30, Confidence: 0.9},
		pose.LeftHip:      {X: 40, Y: 100, Confidence: 0.9},
		pose.LeftEar:      {X: 45, Y: 10, Confidence: 0.9},
	}, pose.DefaultMinConfidence)

	DrawPose(&img, set, true, DefaultStyle())

	// a point on the shoulder-hip bone must now be green
	px := img.GetVecbAt(65, 40)
	if px[1] < 150 || px[0] > 60 || px[2] > 60 {
		t.Errorf("expected green bone pixel, got BGR %v", px)
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(img, before, &diff)
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Error("expected overlay to change the image")
	}
}

func TestDrawPose_EmptySet(t *testing.T) {
	img := testImage(t)
	before := img.Clone()
	defer before.Close()

	DrawPose(&img, pose.Set{}, false, DefaultStyle())
	DrawScore(&img, 0.42, false)

	if img.Rows() != before.Rows() || img.Cols() != before.Cols() {
		t.Error("drawing must not resize the image")
	}
}
