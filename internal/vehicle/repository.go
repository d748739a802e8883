package vehicle

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository persists vehicles.
type Repository interface {
	Create(ctx context.Context, v *Vehicle) error
	FindByCode(ctx context.Context, code string) (*Vehicle, error)
	ListByUser(ctx context.Context, userID string) ([]Vehicle, error)
	Update(ctx context.Context, v *Vehicle) error
	Delete(ctx context.Context, code, userID string) error
}

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GormRepository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) Create(ctx context.Context, v *Vehicle) error {
	v.QRCodeID = NormalizeCode(v.QRCodeID)
	return r.db.WithContext(ctx).Create(v).Error
}

// FindByCode looks a vehicle up by its QR code, case-insensitively.
func (r *GormRepository) FindByCode(ctx context.Context, code string) (*Vehicle, error) {
	var v Vehicle
	err := r.db.WithContext(ctx).
		Where("qr_code_id = ?", NormalizeCode(code)).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByUser returns the owner's vehicles, oldest first.
func (r *GormRepository) ListByUser(ctx context.Context, userID string) ([]Vehicle, error) {
	var out []Vehicle
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// Update overwrites the editable fields of the owner's vehicle.
func (r *GormRepository) Update(ctx context.Context, v *Vehicle) error {
	v.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&Vehicle{}).
		Where("qr_code_id = ? AND user_id = ?", NormalizeCode(v.QRCodeID), v.UserID).
		Updates(map[string]any{
			"title":      v.Title,
			"stock":      v.Stock,
			"miles":      v.Miles,
			"url":        v.URL,
			"dealer":     v.Dealer,
			"updated_at": v.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, code, userID string) error {
	result := r.db.WithContext(ctx).
		Where("qr_code_id = ? AND user_id = ?", NormalizeCode(code), userID).
		Delete(&Vehicle{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
