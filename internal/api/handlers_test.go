package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/config"
	"github.com/dealerqrcode/dealerqr/internal/database"
	"github.com/dealerqrcode/dealerqr/internal/export"
	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
	"github.com/dealerqrcode/dealerqr/internal/logger"
	"github.com/dealerqrcode/dealerqr/internal/redirect"
	"github.com/dealerqrcode/dealerqr/internal/scrape"
	"github.com/dealerqrcode/dealerqr/internal/settings"
	"github.com/dealerqrcode/dealerqr/internal/util"
	"github.com/dealerqrcode/dealerqr/internal/vehicle"
)

type fakeScraper struct {
	rec scrape.Record
	err error
}

func (f *fakeScraper) Fetch(context.Context, string) (scrape.Record, error) {
	return f.rec, f.err
}

type testEnv struct {
	router  *gin.Engine
	scraper *fakeScraper
	cards   []imagepkg.Card
	failCap bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(&config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	env := &testEnv{scraper: &fakeScraper{}}

	repo := vehicle.NewGormRepository(db)
	resolver := redirect.NewResolver(repo, redirect.NewMemoryCache(time.Minute), nil)
	capturer := export.CaptureFunc(func(_ context.Context, c imagepkg.Card) (image.Image, error) {
		if env.failCap {
			return nil, errors.New("browser crashed")
		}
		env.cards = append(env.cards, c)
		return imaging.New(30, 40, color.Black), nil
	})

	h := NewHandler(Deps{
		Vehicles:      vehicle.NewService(repo, vehicle.WithInvalidator(resolver)),
		Settings:      settings.NewGormStore(db),
		Exporter:      export.NewService(imagepkg.DefaultLayout(), capturer),
		Scraper:       env.scraper,
		Resolver:      resolver,
		PublicBaseURL: "https://qr.example/",
	})

	r := gin.New()
	r.Use(logger.RequestID(), logger.GinMiddleware(zap.NewNop()))
	RegisterRoutes(r, h)
	env.router = r
	return env
}

func (e *testEnv) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (e *testEnv) createVehicle(t *testing.T, user string) map[string]any {
	t.Helper()
	w := e.do(http.MethodPost, "/api/vehicles", user, vehicle.Input{
		Title: "2020 Porsche Cayenne",
		Stock: "A007",
		Miles: "12,000",
		URL:   "https://dealer.example/cayenne",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeJSON(t, w)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

func TestQR(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/qr?text=https://x.example&size=128", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/qr", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/qr?text=a&size=big", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/qr?text=a&size=5", "", nil).Code)
}

func TestVehicleCRUD(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/vehicles", "", nil).Code)

	created := env.createVehicle(t, "u1")
	code := created["qr_code_id"].(string)
	assert.Equal(t, "https://qr.example/dynamic/"+code, created["dynamic_url"])

	w := env.do(http.MethodGet, "/api/vehicles?q=porsche", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeJSON(t, w)["count"])

	w = env.do(http.MethodGet, "/api/vehicles", "u2", nil)
	assert.EqualValues(t, 0, decodeJSON(t, w)["count"])

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/vehicles/"+code, "u2", nil).Code)

	w = env.do(http.MethodPut, "/api/vehicles/"+strings.ToLower(code), "u1", vehicle.Input{
		Title: "2020 Porsche Cayenne S",
		Stock: "A007",
		Miles: "12,500",
		URL:   "https://dealer.example/cayenne-s",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2020 Porsche Cayenne S", decodeJSON(t, w)["title"])

	w = env.do(http.MethodPut, "/api/vehicles/"+code, "u1", vehicle.Input{Title: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/api/vehicles/"+code, "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/vehicles/"+code, "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/vehicles/"+code, "u1", nil).Code)
}

func TestImportVehicles(t *testing.T) {
	env := newTestEnv(t)
	csv := "title,stock,miles,url\n2018 Honda Civic,B100,500,https://d.example/2\n,,5,\n"

	w := env.do(http.MethodPost, "/api/vehicles/import", "u1", csv)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decodeJSON(t, w)
	assert.Len(t, out["created"], 1)
	assert.EqualValues(t, 1, out["skipped"])

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "inventory.csv")
	require.NoError(t, err)
	fw.Write([]byte(csv))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/vehicles/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w = env.do(http.MethodPost, "/api/vehicles/import", "u1", "nope\n1\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVehicleLabel(t *testing.T) {
	env := newTestEnv(t)
	code := env.createVehicle(t, "u1")["qr_code_id"].(string)

	w := env.do(http.MethodGet, "/api/vehicles/"+code+"/label?preset=small&quadrant=2", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="2020-porsche-cayenne_a007.jpg"`, w.Header().Get("Content-Disposition"))

	page, err := imaging.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2550, 3300), page.Bounds().Size())

	require.Len(t, env.cards, 1)
	card := env.cards[0]
	assert.Equal(t, "2020 Porsche Cayenne", card.Title)
	assert.Equal(t, "12,000", card.Miles)
	assert.Equal(t, settings.DefaultScanText, card.ScanText)
	assert.Equal(t, settings.DefaultSubText, card.SubText)
	assert.NotNil(t, card.QR)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/vehicles/"+code+"/label?quadrant=7", "u1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/vehicles/"+code+"/label?preset=medium", "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/vehicles/"+code+"/label", "u2", nil).Code)
}

func TestVehicleLabel_ExportFailure(t *testing.T) {
	env := newTestEnv(t)
	code := env.createVehicle(t, "u1")["qr_code_id"].(string)
	env.failCap = true

	w := env.do(http.MethodGet, "/api/vehicles/"+code+"/label?preset=large", "u1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, export.UserMessage, decodeJSON(t, w)["error"])
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestAdHocLabel_ScrapeFillsBlanks(t *testing.T) {
	env := newTestEnv(t)
	env.scraper.rec = scrape.Record{Title: "2019 HONDA ACCORD", Stock: "B12345", Miles: "45000", Dealer: "SOUTH AUTO"}

	w := env.do(http.MethodPost, "/api/labels", "u1", gin.H{
		"url":    "https://dealer.example/accord",
		"stock":  "MINE1",
		"preset": "Large",
		"scrape": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="2019-honda-accord_mine1.jpg"`, w.Header().Get("Content-Disposition"))

	require.Len(t, env.cards, 1)
	assert.Equal(t, "45000", env.cards[0].Miles)
	assert.Equal(t, "SOUTH AUTO", env.cards[0].Dealer)

	w = env.do(http.MethodGet, "/api/settings", "u1", nil)
	st := decodeJSON(t, w)
	assert.Equal(t, "SOUTH AUTO", st["dealer"])
	assert.Equal(t, false, st["dealer_customized"])
}

func TestAdHocLabel_ScrapeFailureStillExports(t *testing.T) {
	env := newTestEnv(t)
	env.scraper.err = errors.New("timeout")

	w := env.do(http.MethodPost, "/api/labels", "", gin.H{
		"url":      "https://dealer.example/accord",
		"title":    "Mystery Car",
		"quadrant": 4,
		"scrape":   true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="mystery-car_000000.jpg"`, w.Header().Get("Content-Disposition"))

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/labels", "", gin.H{"url": "not a url"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/labels", "", gin.H{"url": "https://x.example", "quadrant": 5}).Code)
}

func TestSettingsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/settings", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SCAN ME", decodeJSON(t, w)["scan_text"])

	w = env.do(http.MethodPut, "/api/settings", "u1", gin.H{"sub_text": "CALL US", "dealer": "North Motors"})
	require.Equal(t, http.StatusOK, w.Code)
	st := decodeJSON(t, w)
	assert.Equal(t, "SCAN ME", st["scan_text"])
	assert.Equal(t, "CALL US", st["sub_text"])
	assert.Equal(t, true, st["dealer_customized"])

	code := env.createVehicle(t, "u1")["qr_code_id"].(string)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/vehicles/"+code+"/label", "u1", nil).Code)
	require.Len(t, env.cards, 1)
	assert.Equal(t, "North Motors", env.cards[0].Dealer)
	assert.Equal(t, "CALL US", env.cards[0].SubText)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPut, "/api/settings", "", gin.H{}).Code)
}

func TestScrapeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.scraper.rec = scrape.Record{Title: "2021 TOYOTA CAMRY", Dealer: "SMITHFORD"}

	w := env.do(http.MethodPost, "/api/scrape", "u1", gin.H{"url": "https://www.smithford.com/v/1"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	assert.Equal(t, "2021 TOYOTA CAMRY", out["record"].(map[string]any)["title"])
	assert.Equal(t, "SMITHFORD", out["settings"].(map[string]any)["dealer"])

	env.scraper.err = errors.New("refused")
	assert.Equal(t, http.StatusBadGateway, env.do(http.MethodPost, "/api/scrape", "", gin.H{"url": "https://x.example"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/scrape", "", gin.H{}).Code)

	env.scraper.err = fmt.Errorf("fetch: %w", util.ErrForbiddenAddress)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/scrape", "", gin.H{"url": "http://10.0.0.1/"}).Code)
}

func TestScrapeEndpoint_InternalHostNotFetched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hit := false
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.Write([]byte(`<html><head><title>Admin | Secret</title></head></html>`))
	}))
	defer internal.Close()
	prev := util.SetAllowPrivateNetworks(false)
	defer util.SetAllowPrivateNetworks(prev)

	r := gin.New()
	RegisterRoutes(r, NewHandler(Deps{Scraper: scrape.NewFetcher(time.Second, nil)}))

	body, err := json.Marshal(gin.H{"url": internal.URL + "/"})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scrape", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "Secret")
	assert.False(t, hit)
}

func TestDynamicRedirectFollowsUpdates(t *testing.T) {
	env := newTestEnv(t)
	code := env.createVehicle(t, "u1")["qr_code_id"].(string)

	w := env.do(http.MethodGet, "/dynamic/"+strings.ToLower(code), "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://dealer.example/cayenne", w.Header().Get("Location"))

	env.do(http.MethodPut, "/api/vehicles/"+code, "u1", vehicle.Input{
		Title: "2020 Porsche Cayenne", Stock: "A007", Miles: "1", URL: "https://dealer.example/sold",
	})
	w = env.do(http.MethodGet, "/dynamic/"+code, "", nil)
	assert.Equal(t, "https://dealer.example/sold", w.Header().Get("Location"))

	env.do(http.MethodDelete, "/api/vehicles/"+code, "u1", nil)
	w = env.do(http.MethodGet, "/dynamic/"+code, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), redirect.MsgInvalid)
}
