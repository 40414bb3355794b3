// Package postgres implementa el repositorio de configuraciones sobre pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	"github.com/dropDatabas3/mailjohn/internal/observability/logger"
)

type Store struct{ pool *pgxpool.Pool }

// Options de tuning del pool, desde la config YAML.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(opts.MaxOpenConns)
	}
	// Mapear MaxIdleConns → MinConns (pgxpool)
	if opts.MaxIdleConns > 0 {
		pcfg.MinConns = int32(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(opts.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	// Arranque no bloqueante: si la DB está caída, el servicio igual levanta.
	log := logger.Named("store.postgres")
	if err := pool.Ping(ctx); err != nil {
		log.Warn("startup ping failed", logger.Err(err))
	} else {
		log.Info("pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}

	return &Store{pool: pool}, nil
}

// Pool expone el pool interno para usos avanzados (migraciones, readyz).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

const cols = `id, vendor_id, location_id, provider, client_id, client_secret,
tenant_id, redirect_uri, user_email, access_token, refresh_token,
expires_in, expires_at, created_at, updated_at, deleted_at`

func (s *Store) Create(ctx context.Context, cfg *repository.VendorEmailConfiguration) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	const q = `
INSERT INTO vendor_email_configurations
  (id, vendor_id, location_id, provider, client_id, client_secret,
   tenant_id, redirect_uri, user_email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10);
`
	_, err := s.pool.Exec(ctx, q,
		cfg.ID, cfg.VendorID, cfg.LocationID, string(cfg.Provider),
		cfg.ClientID, cfg.ClientSecret, cfg.TenantID, cfg.RedirectURI,
		cfg.UserEmail, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.VendorEmailConfiguration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	const q = `
SELECT ` + cols + `
FROM vendor_email_configurations
WHERE id = $1 AND deleted_at IS NULL;
`
	row := s.pool.QueryRow(ctx, q, id)
	return scanConfig(row)
}

func (s *Store) List(ctx context.Context, vendorID, locationID int) ([]*repository.VendorEmailConfiguration, error) {
	q := `
SELECT ` + cols + `
FROM vendor_email_configurations
WHERE vendor_id = $1 AND deleted_at IS NULL`
	args := []any{vendorID}
	if locationID > 0 {
		q += ` AND location_id = $2`
		args = append(args, locationID)
	}
	q += ` ORDER BY created_at DESC;`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repository.VendorEmailConfiguration
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTokens(ctx context.Context, id string, upd repository.TokenUpdate) (*repository.VendorEmailConfiguration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	// COALESCE retiene refresh_token/user_email cuando no vienen en la mutación.
	const q = `
UPDATE vendor_email_configurations
SET access_token  = $2,
    refresh_token = COALESCE($3, refresh_token),
    expires_in    = $4,
    expires_at    = $5,
    user_email    = COALESCE($6, user_email),
    updated_at    = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + cols + `;
`
	row := s.pool.QueryRow(ctx, q, id, upd.AccessToken, upd.RefreshToken,
		upd.ExpiresIn, upd.ExpiresAt.UTC(), upd.UserEmail)
	return scanConfig(row)
}

func (s *Store) ClearTokens(ctx context.Context, id string) (*repository.VendorEmailConfiguration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	const q = `
UPDATE vendor_email_configurations
SET access_token  = NULL,
    refresh_token = NULL,
    expires_in    = 0,
    expires_at    = NULL,
    updated_at    = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + cols + `;
`
	row := s.pool.QueryRow(ctx, q, id)
	return scanConfig(row)
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	const q = `
UPDATE vendor_email_configurations
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL;
`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanConfig(row pgx.Row) (*repository.VendorEmailConfiguration, error) {
	var c repository.VendorEmailConfiguration
	var provider string
	err := row.Scan(
		&c.ID, &c.VendorID, &c.LocationID, &provider, &c.ClientID, &c.ClientSecret,
		&c.TenantID, &c.RedirectURI, &c.UserEmail, &c.AccessToken, &c.RefreshToken,
		&c.ExpiresIn, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.Provider = types.Provider(provider)
	return &c, nil
}
