package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/logger"
	"github.com/dealerqrcode/dealerqr/internal/settings"
	"github.com/dealerqrcode/dealerqr/internal/util"
)

func (h *Handler) getSettings(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	st, err := h.settings.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) putSettings(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	var u settings.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.settings.Set(c.Request.Context(), userID, u)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type scrapeRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// scrapePage returns what the listing yields. With a caller id, a found
// dealer seeds the caller's settings when none is stored yet.
func (h *Handler) scrapePage(c *gin.Context) {
	var body scrapeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.scraper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scraping is disabled"})
		return
	}
	log := logger.GetGinLogger(c)
	ctx := c.Request.Context()

	rec, err := h.scraper.Fetch(ctx, body.URL)
	if err != nil {
		log.Warn("scrape failed", zap.String("url", body.URL), zap.Error(err))
		if errors.Is(err, util.ErrForbiddenAddress) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is not allowed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not read the page"})
		return
	}

	resp := gin.H{"record": rec}
	if userID := c.GetHeader(UserIDHeader); userID != "" {
		st, err := settings.ApplyScrapedDealer(ctx, h.settings, userID, rec.Dealer)
		if err != nil {
			log.Warn("saving scraped dealer failed", zap.Error(err))
		} else {
			resp["settings"] = st
		}
	}
	c.JSON(http.StatusOK, resp)
}
