package redirect

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/logger"
)

const (
	MsgInvalid    = "Invalid QR code"
	MsgProcessing = "Error processing QR code"
	MsgExpired    = "This QR code appears to be invalid or has expired."
)

var fallbackPage = template.Must(template.New("fallback").Parse(`<html><body>` +
	`<div style="display: flex; min-height: 100vh; align-items: center; justify-content: center; background-color: #fafafa;">` +
	`<div style="text-align: center;">` +
	`<p style="color: #dc2626; margin-bottom: 0.5rem;">{{.Headline}}</p>` +
	`<p style="color: #525252;">{{.Detail}}</p>` +
	`</div></div></body></html>`))

func writeFallback(c *gin.Context, status int, headline string) {
	var sb strings.Builder
	_ = fallbackPage.Execute(&sb, struct{ Headline, Detail string }{headline, MsgExpired})
	c.Data(status, "text/html; charset=utf-8", []byte(sb.String()))
}

// Handler serves GET /dynamic/:code.
func (r *Resolver) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetGinLogger(c)
		code := c.Param("code")

		url, err := r.Resolve(c.Request.Context(), code)
		switch {
		case err == nil:
			c.Redirect(http.StatusFound, url)
		case errors.Is(err, ErrNotFound):
			log.Info("unknown qr code", zap.String("code", normalize(code)))
			writeFallback(c, http.StatusNotFound, MsgInvalid)
		default:
			log.Error("qr code resolution failed", zap.String("code", normalize(code)), zap.Error(err))
			writeFallback(c, http.StatusInternalServerError, MsgProcessing)
		}
	}
}

// Register mounts the redirect route.
func (r *Resolver) Register(router gin.IRoutes) {
	router.GET("/dynamic/:code", r.Handler())
}
