// Package export turns one label card into a print-ready letter page JPEG.
package export

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
)

// UserMessage is the only failure text shown to end users.
const UserMessage = "Error generating JPEG. Please try again."

const ContentTypeJPEG = "image/jpeg"

// Kind classifies an export failure for logs and metrics.
type Kind string

const (
	KindCaptureUnavailable Kind = "capture_unavailable"
	KindCanvasUnavailable  Kind = "canvas_unavailable"
	KindEncodeFailed       Kind = "encode_failed"
)

// Error is returned for every failed export.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return "export " + string(e.Kind)
	}
	return fmt.Sprintf("export %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Capturer rasterizes a card.
type Capturer interface {
	Capture(ctx context.Context, card imagepkg.Card) (image.Image, error)
}

// CaptureFunc adapts a function to Capturer.
type CaptureFunc func(ctx context.Context, card imagepkg.Card) (image.Image, error)

func (f CaptureFunc) Capture(ctx context.Context, card imagepkg.Card) (image.Image, error) {
	return f(ctx, card)
}

// Result is a finished page.
type Result struct {
	Filename    string
	Data        []byte
	Placement   imagepkg.Placement
	ContentType string
}

// Service runs exports. It holds no per-export state and is safe for
// concurrent use.
type Service struct {
	layout   imagepkg.Layout
	capturer Capturer
	quality  int
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithQuality sets the JPEG quality (1..100).
func WithQuality(q int) Option {
	return func(s *Service) { s.quality = q }
}

// WithLogger sets a custom logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(layout imagepkg.Layout, capturer Capturer, opts ...Option) *Service {
	s := &Service{
		layout:   layout,
		capturer: capturer,
		quality:  imagepkg.MaxJPEGQuality,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Layout returns the page geometry exports are composed on.
func (s *Service) Layout() imagepkg.Layout { return s.layout }

// Export captures card, places it on a fresh page and encodes the page.
// No partial result is returned on failure.
func (s *Service) Export(ctx context.Context, card imagepkg.Card, req imagepkg.PlacementRequest) (*Result, error) {
	placement, err := s.layout.Place(req)
	if err != nil {
		return nil, s.fail(KindCanvasUnavailable, err, req)
	}

	if s.capturer == nil {
		return nil, s.fail(KindCaptureUnavailable, fmt.Errorf("no capturer configured"), req)
	}
	label, err := s.capturer.Capture(ctx, card)
	if err != nil {
		return nil, s.fail(KindCaptureUnavailable, err, req)
	}
	if label == nil || label.Bounds().Empty() {
		return nil, s.fail(KindCaptureUnavailable, imagepkg.ErrEmptyLabel, req)
	}

	page, _, err := imagepkg.ComposePage(label, s.layout, req)
	if err != nil {
		return nil, s.fail(KindCanvasUnavailable, err, req)
	}

	data, err := imagepkg.EncodeJPEG(page, s.quality)
	if err != nil {
		return nil, s.fail(KindEncodeFailed, err, req)
	}

	res := &Result{
		Filename:    imagepkg.Filename(card.Title, card.Stock),
		Data:        data,
		Placement:   placement,
		ContentType: ContentTypeJPEG,
	}
	s.logger.Info("label exported",
		zap.String("filename", res.Filename),
		zap.String("preset", string(req.Preset)),
		zap.Int("quadrant", req.Quadrant),
		zap.Int("bytes", len(data)))
	return res, nil
}

func (s *Service) fail(kind Kind, cause error, req imagepkg.PlacementRequest) *Error {
	s.logger.Error("label export failed",
		zap.String("kind", string(kind)),
		zap.String("preset", string(req.Preset)),
		zap.Int("quadrant", req.Quadrant),
		zap.Error(cause))
	return &Error{Kind: kind, Cause: cause}
}
