package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the stored row behind GormStore.
type Record struct {
	Owner            string `gorm:"primaryKey;size:64"`
	ScanText         string `gorm:"size:64"`
	SubText          string `gorm:"size:64"`
	Dealer           string `gorm:"size:200"`
	LogoURL          string `gorm:"type:text"`
	DealerCustomized bool
	UpdatedAt        time.Time
}

func (Record) TableName() string { return "label_settings" }

func (r Record) settings() Settings {
	return Settings{
		ScanText:         r.ScanText,
		SubText:          r.SubText,
		Dealer:           r.Dealer,
		LogoURL:          r.LogoURL,
		DealerCustomized: r.DealerCustomized,
	}.withDefaults()
}

// GormStore keeps settings in the label_settings table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

func (g *GormStore) Get(ctx context.Context, owner string) (Settings, error) {
	var rec Record
	err := g.db.WithContext(ctx).Where("owner = ?", owner).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return rec.settings(), nil
}

func (g *GormStore) Set(ctx context.Context, owner string, u Update) (Settings, error) {
	var next Settings
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec Record
		err := tx.Where("owner = ?", owner).Take(&rec).Error
		cur := Defaults()
		switch {
		case err == nil:
			cur = rec.settings()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		next = u.Apply(cur)
		rec = Record{
			Owner:            owner,
			ScanText:         next.ScanText,
			SubText:          next.SubText,
			Dealer:           next.Dealer,
			LogoURL:          next.LogoURL,
			DealerCustomized: next.DealerCustomized,
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	})
	if err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}
