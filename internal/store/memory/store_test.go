package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
)

func newCfg() *repository.VendorEmailConfiguration {
	return &repository.VendorEmailConfiguration{
		VendorID:     1,
		LocationID:   2,
		Provider:     types.ProviderGoogle,
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURI:  "https://x.test/cb",
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := newCfg()
	require.NoError(t, s.Create(ctx, cfg))
	require.NotEmpty(t, cfg.ID)
	require.False(t, cfg.CreatedAt.IsZero())

	got, err := s.GetByID(ctx, cfg.ID)
	require.NoError(t, err)
	require.Equal(t, cfg.ID, got.ID)
	require.Equal(t, types.ProviderGoogle, got.Provider)
	require.False(t, got.HasAccessToken(), "new configuration must have no tokens")

	_, err = s.GetByID(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := newCfg()
	require.NoError(t, s.Create(ctx, cfg))

	dup := newCfg()
	dup.ID = cfg.ID
	require.ErrorIs(t, s.Create(ctx, dup), repository.ErrConflict)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := New()

	a := newCfg()
	require.NoError(t, s.Create(ctx, a))

	b := newCfg()
	b.LocationID = 7
	require.NoError(t, s.Create(ctx, b))

	other := newCfg()
	other.VendorID = 99
	require.NoError(t, s.Create(ctx, other))

	all, err := s.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	loc, err := s.List(ctx, 1, 7)
	require.NoError(t, err)
	require.Len(t, loc, 1)
	require.Equal(t, b.ID, loc[0].ID)
}

func TestUpdateTokens_RetainsRefreshWhenNil(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := newCfg()
	require.NoError(t, s.Create(ctx, cfg))

	rt := "initial-refresh"
	exp := time.Now().Add(time.Hour)
	_, err := s.UpdateTokens(ctx, cfg.ID, repository.TokenUpdate{
		AccessToken:  "at1",
		RefreshToken: &rt,
		ExpiresIn:    3600,
		ExpiresAt:    exp,
	})
	require.NoError(t, err)

	// Una renovación sin refresh_token en la respuesta no debe pisar el almacenado.
	got, err := s.UpdateTokens(ctx, cfg.ID, repository.TokenUpdate{
		AccessToken: "at2",
		ExpiresIn:   3600,
		ExpiresAt:   time.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, "at2", *got.AccessToken)
	require.NotNil(t, got.RefreshToken)
	require.Equal(t, "initial-refresh", *got.RefreshToken)
}

func TestUpdateTokens_SetsUserEmailOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := newCfg()
	require.NoError(t, s.Create(ctx, cfg))

	email := "user@example.com"
	got, err := s.UpdateTokens(ctx, cfg.ID, repository.TokenUpdate{
		AccessToken: "at",
		ExpiresIn:   60,
		ExpiresAt:   time.Now().Add(time.Minute),
		UserEmail:   &email,
	})
	require.NoError(t, err)
	require.Equal(t, "user@example.com", *got.UserEmail)

	// Mutación sin UserEmail no lo borra.
	got, err = s.UpdateTokens(ctx, cfg.ID, repository.TokenUpdate{
		AccessToken: "at2",
		ExpiresIn:   60,
		ExpiresAt:   time.Now().Add(time.Minute),
	})
	require.NoError(t, err)
	require.NotNil(t, got.UserEmail)
}

func TestClearTokens(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := newCfg()
	require.NoError(t, s.Create(ctx, cfg))

	rt := "rt"
	_, err := s.UpdateTokens(ctx, cfg.ID, repository.TokenUpdate{
		AccessToken:  "at",
		RefreshToken: &rt,
		ExpiresIn:    3600,
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := s.ClearTokens(ctx, cfg.ID)
	require.NoError(t, err)
	require.Nil(t, got.AccessToken)
	require.Nil(t, got.RefreshToken)
	require.Nil(t, got.ExpiresAt)
	require.Zero(t, got.ExpiresIn)
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := newCfg()
	require.NoError(t, s.Create(ctx, cfg))
	require.NoError(t, s.SoftDelete(ctx, cfg.ID))

	_, err := s.GetByID(ctx, cfg.ID)
	require.ErrorIs(t, err, repository.ErrNotFound, "soft-deleted rows must be invisible")

	all, err := s.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Empty(t, all)

	require.ErrorIs(t, s.SoftDelete(ctx, cfg.ID), repository.ErrNotFound)
}

func TestReturnedCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg := newCfg()
	require.NoError(t, s.Create(ctx, cfg))

	got, err := s.GetByID(ctx, cfg.ID)
	require.NoError(t, err)
	got.ClientSecret = "mutated"

	again, err := s.GetByID(ctx, cfg.ID)
	require.NoError(t, err)
	require.Equal(t, "secret", again.ClientSecret)
}
