package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/mailjohn/internal/config"
	pgmigrations "github.com/dropDatabas3/mailjohn/migrations/postgres"
)

// Aplica las migraciones de Postgres. Por defecto usa las embebidas en
// el binario; -dir permite apuntar a un directorio con *_up.sql y
// *_down.sql (por ejemplo durante el desarrollo de una migración nueva).
// El driver sqlite no pasa por acá: migra solo al abrir.
func main() {
	var (
		configPath = flag.String("config", "configs/config.example.yaml", "ruta al config YAML")
		dir        = flag.String("dir", "", "directorio de migraciones (vacío = embebidas)")
	)
	flag.Parse()

	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	if !strings.HasPrefix(strings.ToLower(cfg.Storage.Driver), "p") {
		log.Fatalf("storage.driver=%s: migrate sólo aplica a postgres", cfg.Storage.Driver)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	var suffix string
	switch action {
	case "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		log.Fatalf("acción desconocida %q. Uso: up | down [pasos]", action)
	}

	files, err := listSQL(*dir, suffix)
	if err != nil {
		log.Fatalf("list %s: %v", action, err)
	}
	if len(files) == 0 {
		log.Printf("Sin migraciones %s. Nada que hacer.", suffix)
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	if action == "down" {
		// Las down corren de la más nueva a la más vieja.
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	log.Printf("Aplicando %d migración(es) %s...", len(files), action)
	for _, f := range files {
		start := time.Now()
		if _, err := pool.Exec(ctx, f.sql); err != nil {
			log.Fatalf("exec %s: %v", f.name, err)
		}
		log.Printf("OK %s (%s)", f.name, time.Since(start).Truncate(time.Millisecond))
	}
	log.Printf("Migraciones %s completadas.", action)
}

type sqlFile struct {
	name string
	sql  string
}

// listSQL junta las migraciones con el sufijo dado, del directorio si se
// pasó -dir o de las embebidas si no.
func listSQL(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		entries, err := pgmigrations.FS.ReadDir(".")
		if err != nil {
			return nil, err
		}
		var out []sqlFile
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
				continue
			}
			raw, err := pgmigrations.FS.ReadFile(e.Name())
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", e.Name(), err)
			}
			out = append(out, sqlFile{name: e.Name(), sql: string(raw)})
		}
		return out, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []sqlFile
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		out = append(out, sqlFile{name: e.Name(), sql: string(raw)})
	}
	return out, nil
}
