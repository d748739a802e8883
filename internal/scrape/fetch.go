package scrape

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/util"
)

// Fetcher downloads a page and extracts a Record from it.
type Fetcher struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{Timeout: timeout, Logger: logger}
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Record, error) {
	body, err := util.GetBytes(ctx, pageURL, f.Timeout)
	if err != nil {
		return Record{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	rec := Extract(bytes.NewReader(body), pageURL)
	if f.Logger != nil {
		f.Logger.Debug("page scraped",
			zap.String("url", pageURL),
			zap.String("title", rec.Title),
			zap.String("stock", rec.Stock),
			zap.String("miles", rec.Miles),
			zap.String("dealer", rec.Dealer),
		)
	}
	return rec, nil
}
