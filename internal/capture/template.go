package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"

	"github.com/disintegration/imaging"

	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
)

// labelID is the element screenshotted by the capturer.
const labelID = "label"

var cardTemplate = template.Must(template.New("card").Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8">
<style>
  html, body { margin: 0; padding: 0; background: #fff; }
  body { font-family: "Helvetica Neue", Arial, sans-serif; }
  #label { box-sizing: border-box; width: {{.Width}}px; height: {{.Height}}px; overflow: hidden; display: flex; flex-direction: column; justify-content: space-between; padding: 24px; background: #fff; color: #000; }
  .title { font-size: 28px; font-weight: 900; text-align: center; line-height: 1.15; margin: 0 0 4px; }
  .details { font-size: 20px; text-align: center; margin-bottom: 12px; }
  .details b { font-weight: 900; }
  .sale { font-size: 42px; font-weight: 900; text-align: center; margin-bottom: 8px; }
  .qr-wrap { width: 240px; margin: 0 auto 16px; }
  .cta { background: #000; color: #fff; padding: 6px 16px; border-radius: 12px; text-align: center; width: 180px; margin: 0 auto; position: relative; z-index: 1; box-sizing: border-box; }
  .cta .scan { font-size: 18px; font-weight: 700; }
  .cta .sub { font-size: 16px; }
  .qr-frame { border: 6px solid #000; border-radius: 24px; padding: 12px; margin: -22px auto 0; width: 224px; height: 224px; box-sizing: border-box; display: flex; align-items: center; justify-content: center; }
  .qr-frame img { max-width: 100%; max-height: 100%; padding-top: 12px; }
  .logo { text-align: center; }
  .logo img { height: 48px; width: auto; object-fit: contain; filter: grayscale(100%); }
  .dealer { border: 4px solid #000; border-radius: 8px; padding: 6px 16px; text-align: center; margin: 0 auto; width: fit-content; font-size: 16px; font-weight: 900; }
</style></head>
<body>
<div id="label">
  <h2 class="title">{{.Title}}</h2>
  <div class="details"><b>STOCK #:</b> {{.Stock}}&nbsp;&nbsp;&nbsp;<b>MILES:</b> {{.Miles}}</div>
  <div class="sale">I'M FOR SALE</div>
  <div class="qr-wrap">
    <div class="cta"><div class="scan">{{.ScanText}}</div><div class="sub">{{.SubText}}</div></div>
    <div class="qr-frame">{{if .QR}}<img src="{{.QR}}" alt="QR">{{end}}</div>
  </div>
  {{if .Logo}}<div class="logo"><img src="{{.Logo}}" alt="Logo"></div>{{else}}<div class="dealer">{{.Dealer}}</div>{{end}}
</div>
</body></html>`))

type cardView struct {
	Width    int
	Height   int
	Title    string
	Stock    string
	Miles    string
	ScanText string
	SubText  string
	Dealer   string
	QR       template.URL
	Logo     template.URL
}

// BuildHTML renders the card document that the browser rasterizes.
func BuildHTML(c imagepkg.Card) (string, error) {
	c = c.WithPlaceholders()
	view := cardView{
		Width:    imagepkg.CardWidth,
		Height:   imagepkg.CardHeight,
		Title:    c.Title,
		Stock:    c.Stock,
		Miles:    c.Miles,
		ScanText: c.ScanText,
		SubText:  c.SubText,
		Dealer:   c.Dealer,
	}

	var err error
	if view.QR, err = pngDataURL(c.QR); err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	if view.Logo, err = pngDataURL(c.Logo); err != nil {
		return "", fmt.Errorf("encode logo: %w", err)
	}

	var buf bytes.Buffer
	if err := cardTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render card html: %w", err)
	}
	return buf.String(), nil
}

// pngDataURL inlines img; a nil image yields "".
func pngDataURL(img image.Image) (template.URL, error) {
	if img == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}
