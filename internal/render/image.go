// Package render decodes and encodes images and draws pose overlays on them.
package render

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned when image bytes cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

const dataURLMarker = "base64,"

// DecodeBase64 decodes a base64 image, optionally wrapped in a data URL
// ("data:image/jpeg;base64,..."), into a BGR Mat. The caller must Close the Mat.
func DecodeBase64(s string) (gocv.Mat, error) {
	if i := strings.Index(s, dataURLMarker); i >= 0 {
		s = s[i+len(dataURLMarker):]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return gocv.NewMat(), fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// some clients strip the padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return gocv.NewMat(), fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}

	return DecodeBytes(data)
}

// DecodeBytes decodes encoded image bytes (JPEG, PNG, ...) into a BGR Mat.
// The caller must Close the Mat.
func DecodeBytes(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), fmt.Errorf("%w: unsupported format", ErrInvalidImage)
	}
	return img, nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img gocv.Mat) ([]byte, error) {
	return encode(gocv.PNGFileExt, img)
}

// EncodeJPEG encodes img as JPEG bytes.
func EncodeJPEG(img gocv.Mat) ([]byte, error) {
	return encode(gocv.JPEGFileExt, img)
}

// EncodeBase64PNG encodes img as a base64 PNG string without a data URL prefix.
func EncodeBase64PNG(img gocv.Mat) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func encode(ext gocv.FileExt, img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("encode %s: empty image", ext)
	}

	buf, err := gocv.IMEncode(ext, img)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ext, err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that is freed by Close
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
