package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/export"
	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
	"github.com/dealerqrcode/dealerqr/internal/logger"
	"github.com/dealerqrcode/dealerqr/internal/redirect"
	"github.com/dealerqrcode/dealerqr/internal/scrape"
	"github.com/dealerqrcode/dealerqr/internal/settings"
	"github.com/dealerqrcode/dealerqr/internal/vehicle"
)

// UserIDHeader names the caller. Authentication happens upstream.
const UserIDHeader = "X-User-ID"

const (
	minQRSize = 64
	maxQRSize = 2048
)

// Scraper fetches vehicle facts from a listing page.
type Scraper interface {
	Fetch(ctx context.Context, url string) (scrape.Record, error)
}

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Vehicles      *vehicle.Service
	Settings      settings.Store
	Exporter      *export.Service
	Scraper       Scraper
	Resolver      *redirect.Resolver
	PublicBaseURL string
}

// Handler holds the wired services for the gin routes.
type Handler struct {
	vehicles *vehicle.Service
	settings settings.Store
	exporter *export.Service
	scraper  Scraper
	resolver *redirect.Resolver
	baseURL  string
}

func NewHandler(d Deps) *Handler {
	st := d.Settings
	if st == nil {
		st = settings.NewMemoryStore()
	}
	return &Handler{
		vehicles: d.Vehicles,
		settings: st,
		exporter: d.Exporter,
		scraper:  d.Scraper,
		resolver: d.Resolver,
		baseURL:  strings.TrimRight(d.PublicBaseURL, "/"),
	}
}

// health
func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// qr endpoint returns a PNG of a QR for "text" query param
func qrHandler(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	size := imagepkg.DefaultQRSize
	if sizeStr := c.Query("size"); sizeStr != "" {
		v, err := strconv.Atoi(sizeStr)
		if err != nil || v < minQRSize || v > maxQRSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be an integer between 64 and 2048"})
			return
		}
		size = v
	}
	b, err := imagepkg.GenerateQRPNG(text, size)
	if err != nil {
		logger.GetGinLogger(c).Error("qr generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

// owner reads the caller id, answering 401 when it is missing.
func owner(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserIDHeader + " header"})
		return "", false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vehicle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vehicle.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, vehicle.ErrMissingOwner):
		status = http.StatusUnauthorized
	}
	if status == http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// parsePlacement reads preset/quadrant; a Small request without a
// quadrant goes top-left.
func (h *Handler) parsePlacement(preset string, quadrant int) (imagepkg.PlacementRequest, error) {
	p, err := imagepkg.ParsePreset(preset)
	if err != nil {
		return imagepkg.PlacementRequest{}, err
	}
	req := imagepkg.PlacementRequest{Preset: p, Quadrant: quadrant}
	if p == imagepkg.PresetSmall && quadrant == 0 {
		req.Quadrant = imagepkg.QuadrantTopLeft
	}
	if _, err := h.exporter.Layout().Place(req); err != nil {
		return imagepkg.PlacementRequest{}, err
	}
	return req, nil
}

// writeLabel sends the export as a JPEG download.
func writeLabel(c *gin.Context, res *export.Result) {
	c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

func exportFailed(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": export.UserMessage})
}
