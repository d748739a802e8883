// Package capture rasterizes label cards in headless Chrome.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
)

const (
	defaultTimeout = 30 * time.Second
	viewportHeight = 1200
)

// Config contains configuration for the chromedp capturer
type Config struct {
	// RemoteURL points at a running Chrome's DevTools endpoint. Empty launches a local browser.
	RemoteURL string
	Timeout   time.Duration
	// Scale is the device scale factor; 4 gives a 1500px wide card.
	Scale float64
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	Logger    *zap.Logger
}

// ChromedpCapturer renders a card's HTML and screenshots the label element.
type ChromedpCapturer struct {
	config      Config
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpCapturer sets up the browser allocator. Nothing is launched
// until Capture; each capture gets its own target, which for a local
// allocator means its own browser process.
func NewChromedpCapturer(cfg Config) *ChromedpCapturer {
	cfg = cfg.withDefaults()
	c := &ChromedpCapturer{config: cfg, logger: cfg.Logger}

	if cfg.RemoteURL != "" {
		c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	}
	return c
}

func (cfg Config) withDefaults() Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Scale <= 0 {
		cfg.Scale = imagepkg.DefaultScale
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return cfg
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// Capture returns the card as a bitmap at Scale times its CSS size.
func (c *ChromedpCapturer) Capture(ctx context.Context, card imagepkg.Card) (image.Image, error) {
	html, err := BuildHTML(card)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			c.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer tabCancel()

	// stop the tab when the caller's context ends
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	start := time.Now()
	var (
		shot   []byte
		loaded bool
	)
	err = chromedp.Run(tabCtx,
		chromedp.EmulateViewport(imagepkg.CardWidth, viewportHeight, chromedp.EmulateScale(c.config.Scale)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitVisible("#"+labelID, chromedp.ByQuery),
		chromedp.Poll(`Array.from(document.images).every(i => i.complete)`, &loaded),
		chromedp.Screenshot("#"+labelID, &shot, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("capture timed out after %v: %w", c.config.Timeout, err)
		}
		return nil, fmt.Errorf("chromedp capture: %w", err)
	}
	if len(shot) == 0 {
		return nil, errors.New("chromedp capture: empty screenshot")
	}

	img, err := imaging.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	c.logger.Debug("label captured",
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Duration("duration", time.Since(start)))
	return img, nil
}

// Close releases resources held by the capturer
func (c *ChromedpCapturer) Close() error {
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}
