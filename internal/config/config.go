// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno. El YAML define la forma; el env
// pisa valores puntuales (12-factor para despliegues).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env         string `yaml:"env"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// memory | postgres | sqlite
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	OAuth struct {
		// StateSecret firma los nonces anti-forgery del flujo Microsoft.
		// Vacío genera una clave efímera por proceso (sólo dev: los
		// redirects en vuelo mueren con cada restart).
		StateSecret     string `yaml:"state_secret"`
		ProviderTimeout string `yaml:"provider_timeout"`
	} `yaml:"oauth"`

	SendQuota struct {
		Enabled bool   `yaml:"enabled"`
		Limit   int    `yaml:"limit"`
		Window  string `yaml:"window"`
	} `yaml:"send_quota"`

	Admin struct {
		// APIKeyHash es el bcrypt de la clave X-Admin-API-Key.
		// Vacío deja las rutas admin abiertas (sólo dev).
		APIKeyHash string `yaml:"api_key_hash"`
	} `yaml:"admin"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// Primero el env pisa el YAML; los defaults sólo rellenan lo que
	// quedó vacío (así un STORAGE_DRIVER=sqlite por env también recibe
	// el DSN por defecto).
	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.ServiceName == "" {
		c.App.ServiceName = "mailjohn"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if strings.EqualFold(c.Storage.Driver, "sqlite") && c.Storage.DSN == "" {
		c.Storage.DSN = "./data/mailjohn.db"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "10m"
	}
	if c.OAuth.ProviderTimeout == "" {
		c.OAuth.ProviderTimeout = "10s"
	}
	if c.SendQuota.Limit == 0 {
		c.SendQuota.Limit = 100
	}
	if c.SendQuota.Window == "" {
		c.SendQuota.Window = "1h"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	if v, ok := getEnvStr("OAUTH_STATE_SECRET"); ok {
		c.OAuth.StateSecret = v
	}
	if v, ok := getEnvStr("OAUTH_PROVIDER_TIMEOUT"); ok {
		c.OAuth.ProviderTimeout = v
	}

	if v, ok := getEnvBool("SEND_QUOTA_ENABLED"); ok {
		c.SendQuota.Enabled = v
	}
	if v, ok := getEnvInt("SEND_QUOTA_LIMIT"); ok {
		c.SendQuota.Limit = v
	}
	if v, ok := getEnvStr("SEND_QUOTA_WINDOW"); ok {
		c.SendQuota.Window = v
	}

	if v, ok := getEnvStr("ADMIN_API_KEY_HASH"); ok {
		c.Admin.APIKeyHash = v
	}
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

// Validate chequea consistencia. Falla temprano y con mensaje accionable:
// mejor morir en el arranque que a mitad de un flujo OAuth.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "memory":
	case "postgres", "pg", "postgresql", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.dsn es requerido con driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("config: storage.driver %q no soportado (memory|postgres|sqlite)", c.Storage.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(c.Cache.Kind)) {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return fmt.Errorf("config: cache.redis.addr es requerido con cache.kind redis")
		}
	default:
		return fmt.Errorf("config: cache.kind %q no soportado (memory|redis)", c.Cache.Kind)
	}

	for name, raw := range map[string]string{
		"cache.memory.default_ttl":           c.Cache.Memory.DefaultTTL,
		"oauth.provider_timeout":             c.OAuth.ProviderTimeout,
		"send_quota.window":                  c.SendQuota.Window,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("config: %s %q no es una duración válida: %w", name, raw, err)
		}
	}

	if c.SendQuota.Enabled {
		if c.SendQuota.Limit < 1 {
			return fmt.Errorf("config: send_quota.limit debe ser positivo")
		}
		if !strings.EqualFold(c.Cache.Kind, "redis") {
			return fmt.Errorf("config: send_quota requiere cache.kind redis")
		}
	}

	if c.IsProd() && strings.TrimSpace(c.OAuth.StateSecret) == "" {
		return fmt.Errorf("config: oauth.state_secret es requerido en prod")
	}
	return nil
}

// IsProd retorna true en entorno productivo.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}

// ProviderTimeout retorna el timeout HTTP hacia los proveedores.
func (c *Config) ProviderTimeout() time.Duration {
	d, err := time.ParseDuration(c.OAuth.ProviderTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// QuotaWindow retorna la ventana del límite de envíos.
func (c *Config) QuotaWindow() time.Duration {
	d, err := time.ParseDuration(c.SendQuota.Window)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// MemoryCacheTTL retorna el TTL por defecto del cache en memoria.
func (c *Config) MemoryCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// StateSecretBytes retorna la clave HMAC del state ([]byte, nil si vacía).
func (c *Config) StateSecretBytes() []byte {
	s := strings.TrimSpace(c.OAuth.StateSecret)
	if s == "" {
		return nil
	}
	return []byte(s)
}
