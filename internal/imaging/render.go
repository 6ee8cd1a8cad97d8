package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PreviewResult contains a rendered preview encoded as base64 PNG.
type PreviewResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Dim blends the image toward white by the given opacity (0 = unchanged, 1 = white).
//
// It produces the washed-out backdrop that region overlays are painted onto, so
// the traced field stands out against the surrounding imagery.
func Dim(img image.Image, opacity float64) *image.NRGBA {
	bounds := img.Bounds()
	white := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(img, white, image.Pt(0, 0), clampUnit(opacity))
}

// Overlay paints layer on top of a dimmed copy of base.
//
// Transparent pixels of layer leave the backdrop visible; both images must have the
// same dimensions. The result is a new image; neither input is modified.
func Overlay(base, layer image.Image, dim, opacity float64) (*image.NRGBA, error) {
	if base.Bounds().Size() != layer.Bounds().Size() {
		return nil, fmt.Errorf("overlay size %v does not match image size %v",
			layer.Bounds().Size(), base.Bounds().Size())
	}
	backdrop := Dim(base, dim)
	return imaging.Overlay(backdrop, layer, image.Pt(0, 0), clampUnit(opacity)), nil
}

// CropAround extracts rect grown by pad pixels on every side, clipped to the image,
// and optionally rescales it.
func CropAround(img image.Image, rect image.Rectangle, pad int, scale float64) (*image.NRGBA, error) {
	bounds := img.Bounds()
	r := image.Rect(rect.Min.X-pad, rect.Min.Y-pad, rect.Max.X+pad, rect.Max.Y+pad).Intersect(bounds)
	if r.Empty() {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", rect, bounds)
	}

	cropped := imaging.Crop(img, r)
	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(cropped.Bounds().Dx()) * scale)
		newHeight := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.NearestNeighbor)
	}
	return cropped, nil
}

// EncodePreview encodes img as a base64 PNG preview.
func EncodePreview(img image.Image) (*PreviewResult, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &PreviewResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
