package vehicle

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	codes []string
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, code string) error {
	r.codes = append(r.codes, code)
	return r.err
}

func validInput() Input {
	return Input{
		Title: "2020 Porsche Cayenne",
		Stock: "A007",
		Miles: "12,345",
		URL:   "https://dealer.example/cayenne",
	}
}

func TestNewQRCodeID(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z2-7]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := NewQRCodeID()
		assert.Regexp(t, re, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestDynamicURL(t *testing.T) {
	assert.Equal(t, "https://dealerqrcode.com/dynamic/ABCD2345", DynamicURL("https://dealerqrcode.com/", "abcd2345"))
}

func TestService_Create(t *testing.T) {
	svc := NewService(NewGormRepository(setupTestDB(t)))

	in := validInput()
	in.Title = "  2020 Porsche Cayenne  "
	v, err := svc.Create(context.Background(), "u1", in)
	require.NoError(t, err)
	assert.Len(t, v.QRCodeID, 8)
	assert.Equal(t, "u1", v.UserID)
	assert.Equal(t, "2020 Porsche Cayenne", v.Title)
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(NewGormRepository(setupTestDB(t)))
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing title", func(in *Input) { in.Title = "  " }},
		{"missing stock", func(in *Input) { in.Stock = "" }},
		{"missing miles", func(in *Input) { in.Miles = "" }},
		{"missing url", func(in *Input) { in.URL = "" }},
		{"bad url", func(in *Input) { in.URL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := svc.Create(ctx, "u1", in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, err := svc.Create(ctx, "", validInput())
	assert.ErrorIs(t, err, ErrMissingOwner)
}

func TestService_GetScopedToOwner(t *testing.T) {
	svc := NewService(NewGormRepository(setupTestDB(t)))
	ctx := context.Background()

	v, err := svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	got, err := svc.Get(ctx, "u1", strings.ToLower(v.QRCodeID))
	require.NoError(t, err)
	assert.Equal(t, v.QRCodeID, got.QRCodeID)

	_, err = svc.Get(ctx, "u2", v.QRCodeID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_UpdateInvalidates(t *testing.T) {
	inv := &recordingInvalidator{}
	svc := NewService(NewGormRepository(setupTestDB(t)), WithInvalidator(inv))
	ctx := context.Background()

	v, err := svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	in := validInput()
	in.URL = "https://dealer.example/updated"
	updated, err := svc.Update(ctx, "u1", v.QRCodeID, in)
	require.NoError(t, err)
	assert.Equal(t, "https://dealer.example/updated", updated.URL)
	assert.Equal(t, []string{v.QRCodeID}, inv.codes)

	_, err = svc.Update(ctx, "u2", v.QRCodeID, in)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, inv.codes, 1)
}

func TestService_DeleteInvalidatesEvenWhenCacheFails(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	svc := NewService(NewGormRepository(setupTestDB(t)), WithInvalidator(inv))
	ctx := context.Background()

	v, err := svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "u1", v.QRCodeID))
	assert.Equal(t, []string{v.QRCodeID}, inv.codes)

	assert.ErrorIs(t, svc.Delete(ctx, "u1", v.QRCodeID), ErrNotFound)
}

func TestService_ListFilters(t *testing.T) {
	svc := NewService(NewGormRepository(setupTestDB(t)))
	ctx := context.Background()

	for _, in := range []Input{
		{Title: "2020 Porsche Cayenne", Stock: "A007", Miles: "1", URL: "https://d.example/1", Dealer: "North Motors"},
		{Title: "2018 Honda Civic", Stock: "B100", Miles: "2", URL: "https://d.example/2", Dealer: "South Auto"},
	} {
		_, err := svc.Create(ctx, "u1", in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, "u1", FilterOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	hits, err := svc.List(ctx, "u1", FilterOptions{FreeWords: "porsche 2020"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "A007", hits[0].Stock)

	none, err := svc.List(ctx, "u2", FilterOptions{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_Import(t *testing.T) {
	svc := NewService(NewGormRepository(setupTestDB(t)))
	csv := "Title,Stock Number,Mileage,URL\n" +
		"2020 Porsche Cayenne,A007,12345,https://d.example/1\n" +
		"2018 Honda Civic,,500,https://d.example/2\n" +
		"2019 Ford F-150,C3,42,not-a-url\n"

	res, err := svc.ImportCSV(context.Background(), "u1", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "A007", res.Created[0].Stock)
	assert.Equal(t, 2, res.Skipped)
}
