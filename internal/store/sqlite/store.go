// Package sqlite implementa el repositorio de configuraciones sobre un
// archivo SQLite. Pensado para despliegues single-node y desarrollo.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	migrations "github.com/dropDatabas3/mailjohn/migrations/sqlite"
)

type Store struct{ db *sql.DB }

// toMillis normaliza timestamps a milisegundos UTC para almacenar.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restaura la precisión de milisegundos en UTC.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// New abre (o crea) el archivo y aplica las migraciones embebidas.
func New(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:mailjohn.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// Un solo writer evita SQLITE_BUSY bajo concurrencia.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return fmt.Errorf("sqlite migrations: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "_up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)
	for _, name := range ups {
		raw, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("sqlite migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("sqlite migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// DB expone el handle crudo para herramientas (tests, estadísticas).
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
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
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err := s.db.ExecContext(ctx, q,
		cfg.ID, cfg.VendorID, cfg.LocationID, string(cfg.Provider),
		cfg.ClientID, cfg.ClientSecret, cfg.TenantID, cfg.RedirectURI,
		nullStr(cfg.UserEmail), toMillis(now), toMillis(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.VendorEmailConfiguration, error) {
	const q = `
SELECT ` + cols + `
FROM vendor_email_configurations
WHERE id = ? AND deleted_at IS NULL;
`
	row := s.db.QueryRowContext(ctx, q, id)
	return scanConfig(row)
}

func (s *Store) List(ctx context.Context, vendorID, locationID int) ([]*repository.VendorEmailConfiguration, error) {
	q := `
SELECT ` + cols + `
FROM vendor_email_configurations
WHERE vendor_id = ? AND deleted_at IS NULL`
	args := []any{vendorID}
	if locationID > 0 {
		q += ` AND location_id = ?`
		args = append(args, locationID)
	}
	q += ` ORDER BY created_at DESC;`

	rows, err := s.db.QueryContext(ctx, q, args...)
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
	// COALESCE retiene refresh_token/user_email cuando la mutación no los trae.
	const q = `
UPDATE vendor_email_configurations
SET access_token  = ?,
    refresh_token = COALESCE(?, refresh_token),
    expires_in    = ?,
    expires_at    = ?,
    user_email    = COALESCE(?, user_email),
    updated_at    = ?
WHERE id = ? AND deleted_at IS NULL;
`
	res, err := s.db.ExecContext(ctx, q,
		upd.AccessToken, nullStr(upd.RefreshToken), upd.ExpiresIn,
		toMillis(upd.ExpiresAt), nullStr(upd.UserEmail), toMillis(time.Now()), id,
	)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *Store) ClearTokens(ctx context.Context, id string) (*repository.VendorEmailConfiguration, error) {
	const q = `
UPDATE vendor_email_configurations
SET access_token  = NULL,
    refresh_token = NULL,
    expires_in    = 0,
    expires_at    = NULL,
    updated_at    = ?
WHERE id = ? AND deleted_at IS NULL;
`
	res, err := s.db.ExecContext(ctx, q, toMillis(time.Now()), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	const q = `
UPDATE vendor_email_configurations
SET deleted_at = ?, updated_at = ?
WHERE id = ? AND deleted_at IS NULL;
`
	now := toMillis(time.Now())
	res, err := s.db.ExecContext(ctx, q, now, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConfig(row scanner) (*repository.VendorEmailConfiguration, error) {
	var (
		c         repository.VendorEmailConfiguration
		provider  string
		userEmail sql.NullString
		access    sql.NullString
		refresh   sql.NullString
		expiresAt sql.NullInt64
		createdAt int64
		updatedAt int64
		deletedAt sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.VendorID, &c.LocationID, &provider, &c.ClientID, &c.ClientSecret,
		&c.TenantID, &c.RedirectURI, &userEmail, &access, &refresh,
		&c.ExpiresIn, &expiresAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.Provider = types.Provider(provider)
	if userEmail.Valid {
		c.UserEmail = &userEmail.String
	}
	if access.Valid {
		c.AccessToken = &access.String
	}
	if refresh.Valid {
		c.RefreshToken = &refresh.String
	}
	if expiresAt.Valid {
		at := fromMillis(expiresAt.Int64)
		c.ExpiresAt = &at
	}
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	if deletedAt.Valid {
		at := fromMillis(deletedAt.Int64)
		c.DeletedAt = &at
	}
	return &c, nil
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
