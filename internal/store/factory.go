// Package store abre el repositorio de configuraciones según el driver.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/store/memory"
	"github.com/dropDatabas3/mailjohn/internal/store/postgres"
	"github.com/dropDatabas3/mailjohn/internal/store/sqlite"
)

type Config struct {
	Driver   string
	DSN      string
	Postgres struct {
		MaxOpenConns, MaxIdleConns int
		ConnMaxLifetime            string
	}
}

// Open devuelve el repositorio para el driver configurado.
func Open(ctx context.Context, cfg Config) (repository.ConfigurationRepository, error) {
	d := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch d {
	case "postgres", "pg", "postgresql":
		return postgres.New(ctx, cfg.DSN, postgres.Options{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
	case "sqlite", "sqlite3":
		return sqlite.New(ctx, cfg.DSN)
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}
