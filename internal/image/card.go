package imagepkg

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Card is the content of one printed vehicle label.
type Card struct {
	Title    string
	Stock    string
	Miles    string
	Dealer   string
	ScanText string
	SubText  string
	QR       image.Image
	Logo     image.Image
}

const (
	MaxTitleLength = 36

	placeholderTitle  = "Vehicle Title"
	placeholderDealer = "Company Name"
	placeholderMiles  = "0"
	saleText          = "I'M FOR SALE"

	// card geometry in CSS pixels, multiplied by CardRenderer.Scale; 3:4
	// like a Small quadrant so placement does not distort it
	CardWidth     = 375
	CardHeight    = 500
	cardPadding   = 24
	titleSize     = 16
	detailSize    = 12
	headlineSize  = 42
	subTextSize   = 14
	dealerSize    = 24
	minFontSize   = 6
	sectionGap    = 6
	logoMaxHeight = 96
	DefaultScale  = 4
	defaultQRSide = DefaultQRSize
)

// TruncateTitle caps a title at MaxTitleLength runes.
func TruncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	return string([]rune(title)[:MaxTitleLength])
}

// WithPlaceholders fills the fields a printed card never leaves blank.
func (c Card) WithPlaceholders() Card {
	c.Title = TruncateTitle(c.Title)
	if c.Title == "" {
		c.Title = placeholderTitle
	}
	if c.Miles == "" {
		c.Miles = placeholderMiles
	}
	if c.Dealer == "" {
		c.Dealer = placeholderDealer
	}
	return c
}

var (
	fontsOnce   sync.Once
	boldFont    *opentype.Font
	regularFont *opentype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if boldFont, fontsErr = opentype.Parse(gobold.TTF); fontsErr != nil {
			return
		}
		regularFont, fontsErr = opentype.Parse(goregular.TTF)
	})
	return fontsErr
}

// CardRenderer rasterizes a Card without a browser.
type CardRenderer struct {
	Scale float64
}

// Capture satisfies the export capturer contract.
func (r CardRenderer) Capture(_ context.Context, c Card) (image.Image, error) {
	img, err := r.Render(c)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Render draws the card at Scale times its CSS size.
func (r CardRenderer) Render(c Card) (*image.NRGBA, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	scale := r.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	c = c.WithPlaceholders()

	px := func(v float64) int { return int(v * scale) }
	w, h := px(CardWidth), px(CardHeight)
	pad := px(cardPadding)
	inner := w - 2*pad

	dst := imaging.New(w, h, color.White)
	y := pad

	var err error
	text := func(f *opentype.Font, size float64, s string) {
		if err != nil || s == "" {
			return
		}
		var face font.Face
		face, err = fitFace(f, size*scale, minFontSize*scale, s, inner)
		if err != nil {
			return
		}
		defer face.Close()
		m := face.Metrics()
		y += m.Ascent.Ceil()
		drawCentered(dst, face, s, y, w)
		y += m.Descent.Ceil() + px(sectionGap)
	}

	text(boldFont, titleSize, c.Title)
	text(regularFont, detailSize, "STOCK #: "+c.Stock+"    MILES: "+c.Miles)
	text(regularFont, headlineSize, saleText)
	text(regularFont, headlineSize, c.ScanText)
	if err != nil {
		return nil, err
	}

	if c.QR != nil {
		side := px(defaultQRSide)
		qr := imaging.Resize(c.QR, side, side, imaging.NearestNeighbor)
		dst = imaging.Overlay(dst, qr, image.Pt((w-side)/2, y), 1.0)
		y += side + px(sectionGap)
	}

	text(boldFont, subTextSize, c.SubText)
	if err != nil {
		return nil, err
	}

	// the logo or dealer name sits on the bottom edge, leaving the
	// slack between it and the sub text
	remaining := h - pad - y
	if c.Logo != nil && remaining > 0 {
		logo := imaging.Fit(c.Logo, inner, min(remaining, px(logoMaxHeight)), imaging.Lanczos)
		b := logo.Bounds()
		dst = imaging.Overlay(dst, logo, image.Pt((w-b.Dx())/2, h-pad-b.Dy()), 1.0)
		return dst, nil
	}
	face, err := fitFace(boldFont, dealerSize*scale, minFontSize*scale, c.Dealer, inner)
	if err != nil {
		return nil, err
	}
	defer face.Close()
	drawCentered(dst, face, c.Dealer, h-pad-face.Metrics().Descent.Ceil(), w)
	return dst, nil
}

// fitFace returns the largest face no bigger than size that fits s in maxWidth.
func fitFace(f *opentype.Font, size, minSize float64, s string, maxWidth int) (font.Face, error) {
	for {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("new face: %w", err)
		}
		if font.MeasureString(face, s).Ceil() <= maxWidth || size-1 < minSize {
			return face, nil
		}
		face.Close()
		size--
	}
}

func drawCentered(dst *image.NRGBA, face font.Face, s string, baseline, width int) {
	d := &font.Drawer{Dst: dst, Src: image.Black, Face: face}
	adv := d.MeasureString(s)
	d.Dot = fixed.Point26_6{X: (fixed.I(width) - adv) / 2, Y: fixed.I(baseline)}
	d.DrawString(s)
}
