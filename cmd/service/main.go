package main

import (
	"context"
	"crypto/rand"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/mailjohn/internal/cache"
	cachemem "github.com/dropDatabas3/mailjohn/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/mailjohn/internal/cache/redis"
	"github.com/dropDatabas3/mailjohn/internal/config"
	httpapi "github.com/dropDatabas3/mailjohn/internal/http"
	"github.com/dropDatabas3/mailjohn/internal/metrics"
	"github.com/dropDatabas3/mailjohn/internal/oauth"
	"github.com/dropDatabas3/mailjohn/internal/oauth/google"
	"github.com/dropDatabas3/mailjohn/internal/oauth/microsoft"
	"github.com/dropDatabas3/mailjohn/internal/observability/logger"
	"github.com/dropDatabas3/mailjohn/internal/rate"
	"github.com/dropDatabas3/mailjohn/internal/store"
)

func fileExists(p string) bool {
	if p == "" {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagPrint      = flag.Bool("print-config", false, "imprime config efectiva y termina")
	)
	flag.Parse()

	if fileExists(*flagEnvFile) {
		if err := godotenv.Load(*flagEnvFile); err == nil {
			log.Printf("env file cargado: %s", *flagEnvFile)
		}
	}

	cfgPath := *flagConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		if fileExists("configs/config.yaml") {
			cfgPath = "configs/config.yaml"
		} else {
			cfgPath = "configs/config.example.yaml"
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *flagPrint {
		printConfigSummary(cfg)
		return
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.ServiceName,
	})
	defer func() { _ = logger.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	storeCfg := store.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN}
	storeCfg.Postgres.MaxOpenConns = cfg.Storage.Postgres.MaxOpenConns
	storeCfg.Postgres.MaxIdleConns = cfg.Storage.Postgres.MaxIdleConns
	storeCfg.Postgres.ConnMaxLifetime = cfg.Storage.Postgres.ConnMaxLifetime
	repo, err := store.Open(ctx, storeCfg)
	if err != nil {
		logger.L().Fatal("store open", logger.Err(err))
	}
	defer func() { _ = repo.Close() }()

	// --- Cache + cuota de envío ---
	var (
		byteCache cache.Cache
		quota     rate.Limiter = rate.Unlimited{}
	)
	if strings.EqualFold(cfg.Cache.Kind, "redis") {
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
		defer func() { _ = client.Close() }()
		byteCache = cacheredis.NewFromClient(client)
		if cfg.SendQuota.Enabled {
			quota = rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+"sendq:",
				cfg.SendQuota.Limit, cfg.QuotaWindow())
		}
	} else {
		byteCache = cachemem.New(cfg.MemoryCacheTTL())
	}

	// --- OAuth ---
	secret := cfg.StateSecretBytes()
	if len(secret) == 0 {
		// Clave efímera: los redirects en vuelo no sobreviven un restart.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.L().Fatal("state secret", logger.Err(err))
		}
		logger.L().Warn("oauth.state_secret vacío, usando clave efímera por proceso")
	}
	states := oauth.NewStateStore(byteCache, secret)
	guard := oauth.NewRefreshGuard()
	timeout := cfg.ProviderTimeout()

	registry := oauth.NewRegistry()
	if err := registry.Register("google", func() (oauth.Adapter, error) {
		return google.New(repo, guard, google.Options{Timeout: timeout}), nil
	}); err != nil {
		logger.L().Fatal("registry", logger.Err(err))
	}
	if err := registry.Register("microsoft", func() (oauth.Adapter, error) {
		return microsoft.New(repo, states, guard, microsoft.Options{Timeout: timeout}), nil
	}); err != nil {
		logger.L().Fatal("registry", logger.Err(err))
	}

	// --- Métricas ---
	var metricsHandler = promhttp.Handler()
	if cfg.Metrics.Enabled {
		metrics.MustRegister(prometheus.DefaultRegisterer)
	} else {
		metricsHandler = nil
	}

	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Repo:         repo,
		Registry:     registry,
		Quota:        quota,
		AdminKeyHash: cfg.Admin.APIKeyHash,
		Metrics:      metricsHandler,
	})

	logger.L().Info("service up",
		logger.String("addr", cfg.Server.Addr),
		logger.String("env", cfg.App.Env),
		logger.String("storage", cfg.Storage.Driver),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("send_quota", cfg.SendQuota.Enabled),
		logger.Bool("admin_guard", cfg.Admin.APIKeyHash != ""),
	)

	if err := httpapi.Start(ctx, cfg.Server.Addr, handler); err != nil {
		logger.L().Fatal("http", logger.Err(err))
	}
	logger.L().Info("service stopped")
}

func printConfigSummary(c *config.Config) {
	stateSecret := "***masked***"
	if c.OAuth.StateSecret == "" {
		stateSecret = "NOT_SET"
	}
	adminKey := "***masked***"
	if c.Admin.APIKeyHash == "" {
		adminKey = "NOT_SET"
	}

	log.Printf(`CONFIG:
  app(env=%s, service=%s)
  server.addr=%s
  log.level=%s

  storage(driver=%s, dsn_set=%t)
  cache(kind=%s, redis=%s db=%d prefix=%s, memory_ttl=%s)

  oauth(provider_timeout=%s, state_secret=%s)
  send_quota(enabled=%t, limit=%d, window=%s)
  admin(api_key_hash=%s)
  metrics(enabled=%t)
`,
		c.App.Env, c.App.ServiceName,
		c.Server.Addr,
		c.Log.Level,
		c.Storage.Driver, c.Storage.DSN != "",
		c.Cache.Kind, c.Cache.Redis.Addr, c.Cache.Redis.DB, c.Cache.Redis.Prefix, c.Cache.Memory.DefaultTTL,
		c.OAuth.ProviderTimeout, stateSecret,
		c.SendQuota.Enabled, c.SendQuota.Limit, c.SendQuota.Window,
		adminKey,
		c.Metrics.Enabled,
	)
}
