package imagepkg

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/dealerqrcode/dealerqr/internal/util"
)

const downloadTimeout = 10 * time.Second

// DownloadImage downloads an image from URL and returns image.Image (decoded).
func DownloadImage(ctx context.Context, url string) (image.Image, error) {
	body, err := util.GetBytes(ctx, url, downloadTimeout)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	return imaging.Decode(bytes.NewReader(body))
}

// DecodeDataURL decodes "data:<mime>;base64,<payload>" into an image.
// A trailing ";filename=<name>" after the payload is tolerated and dropped.
func DecodeDataURL(dataURL string) (image.Image, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, errors.New("not a data URL")
	}
	idx := strings.Index(dataURL, ",")
	if idx == -1 {
		return nil, errors.New("invalid data URL format")
	}
	header, payload := dataURL[:idx], dataURL[idx+1:]
	if !strings.Contains(header, ";base64") {
		return nil, errors.New("data URL is not base64 encoded")
	}
	if cut := strings.Index(payload, ";filename="); cut != -1 {
		payload = payload[:cut]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	return imaging.Decode(bytes.NewReader(raw))
}

// LoadLogo resolves a logo reference: a data URL, an http(s) URL, or empty.
// Empty returns (nil, nil).
func LoadLogo(ctx context.Context, src string) (image.Image, error) {
	switch {
	case src == "":
		return nil, nil
	case strings.HasPrefix(src, "data:"):
		return DecodeDataURL(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return DownloadImage(ctx, src)
	default:
		return nil, fmt.Errorf("unsupported logo source %q", src)
	}
}
