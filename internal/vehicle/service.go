package vehicle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Input is the editable part of a vehicle.
type Input struct {
	Title  string `json:"title" validate:"required,max=200"`
	Stock  string `json:"stock" validate:"required,max=64"`
	Miles  string `json:"miles" validate:"required,max=32"`
	URL    string `json:"url" validate:"required,url,max=2048"`
	Dealer string `json:"dealer" validate:"max=200"`
}

func (in Input) trimmed() Input {
	return Input{
		Title:  strings.TrimSpace(in.Title),
		Stock:  strings.TrimSpace(in.Stock),
		Miles:  strings.TrimSpace(in.Miles),
		URL:    strings.TrimSpace(in.URL),
		Dealer: strings.TrimSpace(in.Dealer),
	}
}

// Invalidator is told when a code's destination changes or disappears.
type Invalidator interface {
	Invalidate(ctx context.Context, code string) error
}

// Service is the owner-scoped vehicle API.
type Service struct {
	repo        Repository
	validate    *validator.Validate
	invalidator Invalidator
	logger      *zap.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithInvalidator registers a redirect cache invalidator
func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *Service) { s.invalidator = inv }
}

// WithLogger sets a custom logger
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new Service
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) check(userID string, in Input) (Input, error) {
	if strings.TrimSpace(userID) == "" {
		return in, ErrMissingOwner
	}
	in = in.trimmed()
	if err := s.validate.Struct(in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return in, nil
}

// Create stores a new vehicle with a fresh QR code.
func (s *Service) Create(ctx context.Context, userID string, in Input) (*Vehicle, error) {
	in, err := s.check(userID, in)
	if err != nil {
		return nil, err
	}

	code, err := s.freeCode(ctx)
	if err != nil {
		return nil, err
	}
	v := &Vehicle{
		QRCodeID: code,
		UserID:   userID,
		Title:    in.Title,
		Stock:    in.Stock,
		Miles:    in.Miles,
		URL:      in.URL,
		Dealer:   in.Dealer,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create vehicle: %w", err)
	}
	s.logger.Info("vehicle created", zap.String("qr_code_id", v.QRCodeID), zap.String("user_id", userID))
	return v, nil
}

// freeCode draws codes until one is unused; collisions are rare at 40 bits.
func (s *Service) freeCode(ctx context.Context) (string, error) {
	const attempts = 5
	for i := 0; i < attempts; i++ {
		code := NewQRCodeID()
		_, err := s.repo.FindByCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check qr code: %w", err)
		}
	}
	return "", errors.New("could not allocate a unique qr code")
}

// Get returns the owner's vehicle by code.
func (s *Service) Get(ctx context.Context, userID, code string) (*Vehicle, error) {
	v, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, ErrNotFound
	}
	return v, nil
}

// List returns the owner's vehicles narrowed by opt.
func (s *Service) List(ctx context.Context, userID string, opt FilterOptions) ([]Vehicle, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingOwner
	}
	all, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return Filter(all, opt), nil
}

// Update replaces the editable fields of the owner's vehicle.
func (s *Service) Update(ctx context.Context, userID, code string, in Input) (*Vehicle, error) {
	in, err := s.check(userID, in)
	if err != nil {
		return nil, err
	}
	v := &Vehicle{
		QRCodeID: NormalizeCode(code),
		UserID:   userID,
		Title:    in.Title,
		Stock:    in.Stock,
		Miles:    in.Miles,
		URL:      in.URL,
		Dealer:   in.Dealer,
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	s.invalidate(ctx, v.QRCodeID)
	return s.repo.FindByCode(ctx, v.QRCodeID)
}

// Delete removes the owner's vehicle.
func (s *Service) Delete(ctx context.Context, userID, code string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingOwner
	}
	if err := s.repo.Delete(ctx, code, userID); err != nil {
		return err
	}
	s.invalidate(ctx, NormalizeCode(code))
	return nil
}

func (s *Service) invalidate(ctx context.Context, code string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, code); err != nil {
		s.logger.Warn("redirect cache invalidation failed", zap.String("qr_code_id", code), zap.Error(err))
	}
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Created []Vehicle `json:"created"`
	Skipped int       `json:"skipped"`
}

// ImportCSV creates one vehicle per complete CSV row.
func (s *Service) ImportCSV(ctx context.Context, userID string, r io.Reader) (*ImportResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingOwner
	}
	rows, skipped, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{Skipped: skipped}
	for i, in := range rows {
		v, err := s.Create(ctx, userID, in)
		if errors.Is(err, ErrInvalidInput) {
			s.logger.Debug("import row rejected", zap.Int("row", i+2), zap.Error(err))
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Created = append(res.Created, *v)
	}
	return res, nil
}
