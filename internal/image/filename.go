package imagepkg

import "strings"

const (
	fallbackFilename = "qr_code.jpg"
	fallbackStock    = "000000"
)

// Filename builds the download name for a label export.
//
// Both parts are lowercased and every character outside [a-z0-9] becomes
// one hyphen; runs are not collapsed, so "Cayenne!!" yields "cayenne--".
// A blank title falls back to qr_code.jpg.
func Filename(title, stock string) string {
	if strings.TrimSpace(title) == "" {
		return fallbackFilename
	}
	if strings.TrimSpace(stock) == "" {
		stock = fallbackStock
	}
	return slug(title) + "_" + slug(stock) + ".jpg"
}

func slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
