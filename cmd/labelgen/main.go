// Command labelgen renders dealership QR labels to JPEG files without a server.
//
// Single label:
//
//	labelgen -url https://dealer.example/vdp/1 -title "2020 Porsche Cayenne" -stock A007 -miles 12000
//
// One label per row of an inventory CSV:
//
//	labelgen -csv inventory.csv -preset large -out labels/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/export"
	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
	"github.com/dealerqrcode/dealerqr/internal/logger"
	"github.com/dealerqrcode/dealerqr/internal/settings"
	"github.com/dealerqrcode/dealerqr/internal/util"
	"github.com/dealerqrcode/dealerqr/internal/vehicle"
)

type options struct {
	url, title, stock, miles, dealer string
	scanText, subText, logo          string
	preset                           string
	quadrant                         int
	csvPath                          string
	out                              string
	scale                            float64
	quality                          int
	verbose                          bool
	allowPrivate                     bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("labelgen", flag.ContinueOnError)
	o := &options{}
	fs.StringVar(&o.url, "url", "", "URL encoded in the QR code")
	fs.StringVar(&o.title, "title", "", "vehicle title")
	fs.StringVar(&o.stock, "stock", "", "stock number")
	fs.StringVar(&o.miles, "miles", "", "mileage")
	fs.StringVar(&o.dealer, "dealer", "", "dealer name printed when no logo is given")
	fs.StringVar(&o.scanText, "scan-text", settings.DefaultScanText, "call to action above the QR")
	fs.StringVar(&o.subText, "sub-text", settings.DefaultSubText, "line under the call to action")
	fs.StringVar(&o.logo, "logo", "", "logo as a file path, http(s) URL or data URL")
	fs.StringVar(&o.preset, "preset", "small", "print preset: small or large")
	fs.IntVar(&o.quadrant, "quadrant", 1, "quadrant 1-4 for the small preset")
	fs.StringVar(&o.csvPath, "csv", "", "inventory CSV; renders one label per row")
	fs.StringVar(&o.out, "out", ".", "output directory")
	fs.Float64Var(&o.scale, "scale", imagepkg.DefaultScale, "card raster scale")
	fs.IntVar(&o.quality, "quality", imagepkg.MaxJPEGQuality, "JPEG quality 1-100")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	fs.BoolVar(&o.allowPrivate, "allow-private", false, "let -logo URLs reach loopback and private hosts")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.csvPath == "" && o.url == "" {
		return nil, fmt.Errorf("-url or -csv is required")
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "labelgen:", err)
		os.Exit(2)
	}
	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, "labelgen:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options) error {
	lc := logger.DefaultConfig()
	lc.Output = "stderr"
	if o.verbose {
		lc.Level = "debug"
	}
	zl, err := logger.New(lc)
	if err != nil {
		return err
	}
	defer zl.Sync()

	util.SetAllowPrivateNetworks(o.allowPrivate)

	preset, err := imagepkg.ParsePreset(o.preset)
	if err != nil {
		return err
	}
	req := imagepkg.PlacementRequest{Preset: preset, Quadrant: o.quadrant}

	logo, err := loadLogo(ctx, o.logo)
	if err != nil {
		return fmt.Errorf("logo: %w", err)
	}

	svc := export.NewService(imagepkg.DefaultLayout(), imagepkg.CardRenderer{Scale: o.scale},
		export.WithQuality(o.quality),
		export.WithLogger(zl))

	rows := []vehicle.Input{{Title: o.title, Stock: o.stock, Miles: o.miles, URL: o.url, Dealer: o.dealer}}
	if o.csvPath != "" {
		var skipped int
		rows, skipped, err = vehicle.LoadCSVFile(o.csvPath)
		if err != nil {
			return err
		}
		if skipped > 0 {
			zl.Warn("incomplete rows skipped", zap.Int("skipped", skipped))
		}
	}

	for _, row := range rows {
		path, err := renderOne(ctx, svc, o, row, logo, req)
		if err != nil {
			return err
		}
		fmt.Println(path)
	}
	return nil
}

func renderOne(ctx context.Context, svc *export.Service, o *options, row vehicle.Input, logo image.Image, req imagepkg.PlacementRequest) (string, error) {
	qr, err := imagepkg.GenerateQRImage(row.URL, imagepkg.DefaultQRSize)
	if err != nil {
		return "", fmt.Errorf("qr for %q: %w", row.Stock, err)
	}
	dealer := row.Dealer
	if dealer == "" {
		dealer = o.dealer
	}
	card := imagepkg.Card{
		Title:    imagepkg.TruncateTitle(row.Title),
		Stock:    row.Stock,
		Miles:    row.Miles,
		Dealer:   dealer,
		ScanText: o.scanText,
		SubText:  o.subText,
		QR:       qr,
		Logo:     logo,
	}
	res, err := svc.Export(ctx, card, req)
	if err != nil {
		return "", err
	}
	path := filepath.Join(o.out, res.Filename)
	if err := util.WriteFile(path, res.Data); err != nil {
		return "", err
	}
	return path, nil
}

// loadLogo accepts anything LoadLogo does plus a local file path.
func loadLogo(ctx context.Context, src string) (image.Image, error) {
	if src == "" || strings.HasPrefix(src, "data:") || strings.Contains(src, "://") {
		return imagepkg.LoadLogo(ctx, src)
	}
	return imaging.Open(src)
}
