// Package settings persists the per-owner label customization: the two
// call-to-action lines, the dealer name and the logo source.
package settings

import (
	"context"
	"strings"
	"sync"
)

const (
	DefaultScanText = "SCAN ME"
	DefaultSubText  = "FOR INFO + PRICE"
)

// Settings is what a label needs beyond the vehicle itself.
type Settings struct {
	ScanText         string `json:"scan_text"`
	SubText          string `json:"sub_text"`
	Dealer           string `json:"dealer"`
	LogoURL          string `json:"logo_url"`
	DealerCustomized bool   `json:"dealer_customized"`
}

// Defaults returns the settings of an owner who never saved any.
func Defaults() Settings {
	return Settings{ScanText: DefaultScanText, SubText: DefaultSubText}
}

// withDefaults refills blank call-to-action lines.
func (s Settings) withDefaults() Settings {
	if strings.TrimSpace(s.ScanText) == "" {
		s.ScanText = DefaultScanText
	}
	if strings.TrimSpace(s.SubText) == "" {
		s.SubText = DefaultSubText
	}
	return s
}

// Update is a partial change; nil fields are left alone.
type Update struct {
	ScanText *string `json:"scan_text"`
	SubText  *string `json:"sub_text"`
	Dealer   *string `json:"dealer"`
	LogoURL  *string `json:"logo_url"`

	// Scraped marks a dealer that came from a page rather than the owner.
	Scraped bool `json:"-"`
}

// Apply merges u into s. Setting the dealer by hand marks it customized.
func (u Update) Apply(s Settings) Settings {
	if u.ScanText != nil {
		s.ScanText = strings.TrimSpace(*u.ScanText)
	}
	if u.SubText != nil {
		s.SubText = strings.TrimSpace(*u.SubText)
	}
	if u.Dealer != nil {
		s.Dealer = strings.TrimSpace(*u.Dealer)
		s.DealerCustomized = s.Dealer != "" && !u.Scraped
	}
	if u.LogoURL != nil {
		s.LogoURL = strings.TrimSpace(*u.LogoURL)
	}
	return s.withDefaults()
}

// Store reads and writes settings per owner.
type Store interface {
	Get(ctx context.Context, owner string) (Settings, error)
	Set(ctx context.Context, owner string, u Update) (Settings, error)
}

// ApplyScrapedDealer stores a dealer name found on a vehicle page, unless
// the owner already has one. The result is the owner's current settings.
func ApplyScrapedDealer(ctx context.Context, store Store, owner, dealer string) (Settings, error) {
	cur, err := store.Get(ctx, owner)
	if err != nil {
		return cur, err
	}
	dealer = strings.TrimSpace(dealer)
	if dealer == "" || cur.Dealer != "" {
		return cur, nil
	}
	next, err := store.Set(ctx, owner, Update{Dealer: &dealer, Scraped: true})
	if err != nil {
		return cur, err
	}
	return next, nil
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Settings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Settings)}
}

func (m *MemoryStore) Get(_ context.Context, owner string) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[owner]
	if !ok {
		return Defaults(), nil
	}
	return s.withDefaults(), nil
}

func (m *MemoryStore) Set(_ context.Context, owner string, u Update) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[owner]
	if !ok {
		cur = Defaults()
	}
	next := u.Apply(cur)
	m.data[owner] = next
	return next, nil
}
