package imagepkg

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealerqrcode/dealerqr/internal/util"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, solid(w, h, red)))
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString(pngBytes(t, 12, 7))

	t.Run("plain", func(t *testing.T) {
		img, err := DecodeDataURL("data:image/png;base64," + b64)
		require.NoError(t, err)
		assert.Equal(t, 12, img.Bounds().Dx())
	})

	t.Run("with filename suffix", func(t *testing.T) {
		src := "data:image/png;base64," + b64 + ";filename=logo.png"
		img, err := DecodeDataURL(src)
		require.NoError(t, err)
		assert.Equal(t, 7, img.Bounds().Dy())
	})

	t.Run("rejects non data url", func(t *testing.T) {
		_, err := DecodeDataURL("https://example.com/logo.png")
		assert.Error(t, err)
	})

	t.Run("rejects non base64", func(t *testing.T) {
		_, err := DecodeDataURL("data:text/plain,hello")
		assert.Error(t, err)
	})
}

func TestDownloadImage(t *testing.T) {
	body := pngBytes(t, 20, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	prev := util.SetAllowPrivateNetworks(true)
	defer util.SetAllowPrivateNetworks(prev)

	img, err := DownloadImage(context.Background(), srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())

	_, err = DownloadImage(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)

	util.SetAllowPrivateNetworks(false)
	_, err = LoadLogo(context.Background(), srv.URL+"/logo.png")
	assert.ErrorIs(t, err, util.ErrForbiddenAddress)
}

func TestLoadLogo(t *testing.T) {
	img, err := LoadLogo(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, img)

	_, err = LoadLogo(context.Background(), "ftp://example.com/logo.png")
	assert.Error(t, err)

	img, err = LoadLogo(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes(t, 3, 3)))
	require.NoError(t, err)
	assert.NotNil(t, img)
}
