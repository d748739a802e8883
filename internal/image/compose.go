package imagepkg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrEmptyLabel is returned when the captured label has no pixels.
var ErrEmptyLabel = errors.New("label image is empty")

// MaxJPEGQuality matches a canvas export at quality 1.0.
const MaxJPEGQuality = 100

var pageBackground = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// ComposePage draws label onto a fresh white page at the placement for req.
// The label is stretched to fill the destination exactly; aspect ratio is
// not preserved.
func ComposePage(label image.Image, layout Layout, req PlacementRequest) (*image.NRGBA, Placement, error) {
	if label == nil || label.Bounds().Empty() {
		return nil, Placement{}, ErrEmptyLabel
	}
	p, err := layout.Place(req)
	if err != nil {
		return nil, Placement{}, err
	}

	w, h := layout.PageSize()
	page := imaging.New(w, h, pageBackground)

	dst := p.Bounds()
	scaled := imaging.Resize(label, dst.Dx(), dst.Dy(), imaging.Lanczos)
	page = imaging.Paste(page, scaled, dst.Min)
	return page, p, nil
}

// EncodeJPEG encodes img as JPEG. Quality outside 1..100 falls back to max.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, ErrEmptyLabel
	}
	if quality < 1 || quality > MaxJPEGQuality {
		quality = MaxJPEGQuality
	}
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
