package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
)

var labelColor = color.NRGBA{R: 0x20, G: 0x40, B: 0xc0, A: 0xff}

func fixedCapture(w, h int) CaptureFunc {
	return func(context.Context, imagepkg.Card) (image.Image, error) {
		return imaging.New(w, h, labelColor), nil
	}
}

func newObserved(capturer Capturer) (*Service, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewService(imagepkg.DefaultLayout(), capturer, WithLogger(zap.New(core))), logs
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestExport_Small(t *testing.T) {
	svc, _ := newObserved(fixedCapture(1500, 1876))
	card := imagepkg.Card{Title: "2020 Porsche Cayenne!!", Stock: "A007"}

	res, err := svc.Export(context.Background(), card, imagepkg.PlacementRequest{Preset: imagepkg.PresetSmall, Quadrant: 1})
	require.NoError(t, err)

	assert.Equal(t, "2020-porsche-cayenne--_a007.jpg", res.Filename)
	assert.Equal(t, ContentTypeJPEG, res.ContentType)
	assert.InDelta(t, 81.6, res.Placement.X, 1e-9)
	assert.InDelta(t, 150.0, res.Placement.Y, 1e-9)

	page := decode(t, res.Data)
	assert.Equal(t, image.Rect(0, 0, 2550, 3300), page.Bounds())

	// centre of quadrant 1 carries the label, centre of quadrant 4 stays white
	r, _, b, _ := page.At(82+562, 150+750).RGBA()
	assert.Less(t, r>>8, uint32(0x60))
	assert.Greater(t, b>>8, uint32(0x90))
	r, g, b, _ := page.At(1343+562, 1650+750).RGBA()
	assert.Greater(t, r>>8, uint32(0xf0))
	assert.Greater(t, g>>8, uint32(0xf0))
	assert.Greater(t, b>>8, uint32(0xf0))
}

func TestExport_LargeIgnoresQuadrant(t *testing.T) {
	svc, _ := newObserved(fixedCapture(375, 469))

	res, err := svc.Export(context.Background(), imagepkg.Card{}, imagepkg.PlacementRequest{Preset: imagepkg.PresetLarge, Quadrant: 9})
	require.NoError(t, err)
	assert.Equal(t, "qr_code.jpg", res.Filename)
	assert.InDelta(t, 60.0, res.Placement.X, 1e-9)
	assert.InDelta(t, 60.0, res.Placement.Y, 1e-9)
	assert.InDelta(t, 2430.0, res.Placement.Width, 1e-9)
	assert.InDelta(t, 3180.0, res.Placement.Height, 1e-9)
}

func TestExport_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		capturer Capturer
		req      imagepkg.PlacementRequest
		kind     Kind
		cause    error
	}{
		{
			name:     "capture error",
			capturer: CaptureFunc(func(context.Context, imagepkg.Card) (image.Image, error) { return nil, boom }),
			req:      imagepkg.PlacementRequest{Preset: imagepkg.PresetLarge},
			kind:     KindCaptureUnavailable,
			cause:    boom,
		},
		{
			name:     "nil bitmap",
			capturer: CaptureFunc(func(context.Context, imagepkg.Card) (image.Image, error) { return nil, nil }),
			req:      imagepkg.PlacementRequest{Preset: imagepkg.PresetLarge},
			kind:     KindCaptureUnavailable,
			cause:    imagepkg.ErrEmptyLabel,
		},
		{
			name:     "empty bitmap",
			capturer: fixedCapture(0, 0),
			req:      imagepkg.PlacementRequest{Preset: imagepkg.PresetLarge},
			kind:     KindCaptureUnavailable,
			cause:    imagepkg.ErrEmptyLabel,
		},
		{
			name:     "bad quadrant",
			capturer: fixedCapture(10, 10),
			req:      imagepkg.PlacementRequest{Preset: imagepkg.PresetSmall, Quadrant: 5},
			kind:     KindCanvasUnavailable,
			cause:    imagepkg.ErrInvalidQuadrant,
		},
		{
			name:     "bad preset",
			capturer: fixedCapture(10, 10),
			req:      imagepkg.PlacementRequest{Preset: "Medium"},
			kind:     KindCanvasUnavailable,
			cause:    imagepkg.ErrInvalidPreset,
		},
		{
			name:     "no capturer",
			capturer: nil,
			req:      imagepkg.PlacementRequest{Preset: imagepkg.PresetLarge},
			kind:     KindCaptureUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, logs := newObserved(tt.capturer)

			res, err := svc.Export(context.Background(), imagepkg.Card{Title: "x"}, tt.req)
			assert.Nil(t, res)

			var exportErr *Error
			require.ErrorAs(t, err, &exportErr)
			assert.Equal(t, tt.kind, exportErr.Kind)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}

			failures := logs.FilterMessage("label export failed")
			require.Equal(t, 1, failures.Len())
			assert.Equal(t, string(tt.kind), failures.All()[0].ContextMap()["kind"])
			assert.Equal(t, 0, logs.FilterMessage("label exported").Len())
		})
	}
}

func TestExport_OutOfBoundsLayout(t *testing.T) {
	layout := imagepkg.DefaultLayout()
	layout.ColumnNudgeIn = 1.0

	svc := NewService(layout, fixedCapture(10, 10))
	_, err := svc.Export(context.Background(), imagepkg.Card{}, imagepkg.PlacementRequest{Preset: imagepkg.PresetSmall, Quadrant: 2})

	var exportErr *Error
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, KindCanvasUnavailable, exportErr.Kind)
	assert.ErrorIs(t, err, imagepkg.ErrOutOfBounds)
}

func TestExport_PassesCardToCapturer(t *testing.T) {
	var got imagepkg.Card
	svc := NewService(imagepkg.DefaultLayout(), CaptureFunc(func(_ context.Context, c imagepkg.Card) (image.Image, error) {
		got = c
		return imaging.New(4, 4, labelColor), nil
	}))

	card := imagepkg.Card{Title: "T", Stock: "S", Miles: "1", Dealer: "D", ScanText: "SCAN", SubText: "SUB"}
	_, err := svc.Export(context.Background(), card, imagepkg.PlacementRequest{Preset: imagepkg.PresetLarge})
	require.NoError(t, err)
	assert.Equal(t, card, got)
}

func TestExport_Concurrent(t *testing.T) {
	svc := NewService(imagepkg.DefaultLayout(), fixedCapture(40, 50), WithQuality(80))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for q := 1; q <= 4; q++ {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			res, err := svc.Export(context.Background(), imagepkg.Card{Title: "T"}, imagepkg.PlacementRequest{Preset: imagepkg.PresetSmall, Quadrant: q})
			if err == nil && len(res.Data) == 0 {
				err = errors.New("empty result")
			}
			errs <- err
		}(q)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindEncodeFailed, Cause: errors.New("disk full")}
	assert.Equal(t, "export encode_failed: disk full", err.Error())
	assert.Equal(t, "export capture_unavailable", (&Error{Kind: KindCaptureUnavailable}).Error())
	assert.NotContains(t, UserMessage, "encode")
}

func TestCardRendererSatisfiesCapturer(t *testing.T) {
	var _ Capturer = imagepkg.CardRenderer{}
}
