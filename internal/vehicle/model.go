package vehicle

import (
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("vehicle not found")
	ErrInvalidInput = errors.New("invalid vehicle")
	ErrMissingOwner = errors.New("missing owner")
)

// Vehicle is one row of the dealer's inventory with its dynamic QR code.
type Vehicle struct {
	QRCodeID  string    `gorm:"primaryKey;size:16" json:"qr_code_id"`
	UserID    string    `gorm:"index;size:64;not null" json:"user_id"`
	Title     string    `gorm:"size:200" json:"title"`
	Stock     string    `gorm:"size:64" json:"stock"`
	Miles     string    `gorm:"size:32" json:"miles"`
	URL       string    `gorm:"size:2048" json:"url"`
	Dealer    string    `gorm:"size:200" json:"dealer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (Vehicle) TableName() string { return "vehicles" }

// NewQRCodeID returns an 8 character upper-case code (A-Z, 2-7).
func NewQRCodeID() string {
	u := uuid.New()
	return base32.StdEncoding.EncodeToString(u[:5])
}

// NormalizeCode upper-cases and trims a scanned code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// DynamicURL is the QR payload that resolves to the vehicle's current URL.
func DynamicURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/dynamic/" + NormalizeCode(code)
}
