package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
	"github.com/dealerqrcode/dealerqr/internal/logger"
	"github.com/dealerqrcode/dealerqr/internal/settings"
	"github.com/dealerqrcode/dealerqr/internal/vehicle"
)

// labelFields is the vehicle text printed on a card.
type labelFields struct {
	Title, Stock, Miles, Dealer string
}

// buildCard merges vehicle text with the owner's settings and renders the QR.
// A logo that cannot be loaded is dropped and the dealer name is printed.
func (h *Handler) buildCard(ctx context.Context, log *zap.Logger, userID string, f labelFields, qrText string) (imagepkg.Card, error) {
	st := settings.Defaults()
	if userID != "" {
		var err error
		if st, err = h.settings.Get(ctx, userID); err != nil {
			return imagepkg.Card{}, err
		}
	}

	qr, err := imagepkg.GenerateQRImage(qrText, imagepkg.DefaultQRSize)
	if err != nil {
		return imagepkg.Card{}, err
	}

	card := imagepkg.Card{
		Title:    f.Title,
		Stock:    f.Stock,
		Miles:    f.Miles,
		Dealer:   f.Dealer,
		ScanText: st.ScanText,
		SubText:  st.SubText,
		QR:       qr,
	}
	if card.Dealer == "" {
		card.Dealer = st.Dealer
	}
	if st.LogoURL != "" {
		logo, err := imagepkg.LoadLogo(ctx, st.LogoURL)
		if err != nil {
			log.Warn("logo unavailable, printing dealer name", zap.Error(err))
		} else {
			card.Logo = logo
		}
	}
	return card, nil
}

// vehicleLabel exports the dashboard label for a stored vehicle. The QR
// carries the dynamic URL so the destination can change after printing.
func (h *Handler) vehicleLabel(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	log := logger.GetGinLogger(c)
	ctx := c.Request.Context()

	quadrant := 0
	if q := c.Query("quadrant"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quadrant must be an integer"})
			return
		}
		quadrant = v
	}
	req, err := h.parsePlacement(c.Query("preset"), quadrant)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.vehicles.Get(ctx, userID, c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	card, err := h.buildCard(ctx, log, userID, labelFields{
		Title:  v.Title,
		Stock:  v.Stock,
		Miles:  v.Miles,
		Dealer: v.Dealer,
	}, vehicle.DynamicURL(h.baseURL, v.QRCodeID))
	if err != nil {
		log.Error("label card preparation failed", zap.Error(err))
		exportFailed(c)
		return
	}

	res, err := h.exporter.Export(ctx, card, req)
	if err != nil {
		exportFailed(c)
		return
	}
	writeLabel(c, res)
}

type labelRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Title    string `json:"title"`
	Stock    string `json:"stock"`
	Miles    string `json:"miles"`
	Dealer   string `json:"dealer"`
	Preset   string `json:"preset"`
	Quadrant int    `json:"quadrant"`
	Scrape   bool   `json:"scrape"`
}

// adHocLabel is the browser-extension flow: the QR points straight at the
// listing and blank fields may be filled from the page.
func (h *Handler) adHocLabel(c *gin.Context) {
	var body labelRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := h.parsePlacement(body.Preset, body.Quadrant)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log := logger.GetGinLogger(c)
	ctx := c.Request.Context()
	userID := strings.TrimSpace(c.GetHeader(UserIDHeader))

	fields := labelFields{
		Title:  strings.TrimSpace(body.Title),
		Stock:  strings.TrimSpace(body.Stock),
		Miles:  strings.TrimSpace(body.Miles),
		Dealer: strings.TrimSpace(body.Dealer),
	}
	if body.Scrape && h.scraper != nil {
		fields = h.fillFromPage(ctx, log, userID, body.URL, fields)
	}

	card, err := h.buildCard(ctx, log, userID, fields, body.URL)
	if err != nil {
		log.Error("label card preparation failed", zap.Error(err))
		exportFailed(c)
		return
	}
	res, err := h.exporter.Export(ctx, card, req)
	if err != nil {
		exportFailed(c)
		return
	}
	writeLabel(c, res)
}

// fillFromPage fills blank fields from the listing. Scrape failures are
// logged and the label is printed with what the caller sent.
func (h *Handler) fillFromPage(ctx context.Context, log *zap.Logger, userID, url string, f labelFields) labelFields {
	rec, err := h.scraper.Fetch(ctx, url)
	if err != nil {
		log.Warn("scrape failed", zap.String("url", url), zap.Error(err))
		return f
	}
	if f.Title == "" {
		f.Title = rec.Title
	}
	if f.Stock == "" {
		f.Stock = rec.Stock
	}
	if f.Miles == "" {
		f.Miles = rec.Miles
	}
	if f.Dealer != "" || rec.Dealer == "" {
		return f
	}
	// a signed-in owner's stored dealer wins; the scraped one only seeds it
	if userID == "" {
		f.Dealer = rec.Dealer
		return f
	}
	if _, err := settings.ApplyScrapedDealer(ctx, h.settings, userID, rec.Dealer); err != nil {
		log.Warn("saving scraped dealer failed", zap.Error(err))
		f.Dealer = rec.Dealer
	}
	return f
}
