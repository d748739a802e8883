// Package redirect turns a printed QR code into its vehicle's current URL.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/vehicle"
)

// DefaultTTL bounds how stale a cached destination can be.
const DefaultTTL = 5 * time.Minute

var ErrNotFound = errors.New("qr code not found")

// Lookup is the slice of the vehicle repository the resolver needs.
type Lookup interface {
	FindByCode(ctx context.Context, code string) (*vehicle.Vehicle, error)
}

// Resolver maps codes to URLs through an optional cache.
type Resolver struct {
	lookup Lookup
	cache  URLCache
	logger *zap.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(lookup Lookup, cache URLCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{lookup: lookup, cache: cache, logger: logger}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve returns the destination URL for code.
func (r *Resolver) Resolve(ctx context.Context, code string) (string, error) {
	code = normalize(code)
	if code == "" {
		return "", ErrNotFound
	}

	if r.cache != nil {
		url, ok, err := r.cache.Get(ctx, code)
		if err != nil {
			r.logger.Warn("redirect cache read failed", zap.String("code", code), zap.Error(err))
		} else if ok {
			return url, nil
		}
	}

	v, err := r.lookup.FindByCode(ctx, code)
	if errors.Is(err, vehicle.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", code, err)
	}
	if strings.TrimSpace(v.URL) == "" {
		return "", ErrNotFound
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, code, v.URL); err != nil {
			r.logger.Warn("redirect cache write failed", zap.String("code", code), zap.Error(err))
		}
	}
	return v.URL, nil
}

// Invalidate drops any cached destination for code.
func (r *Resolver) Invalidate(ctx context.Context, code string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, normalize(code))
}
