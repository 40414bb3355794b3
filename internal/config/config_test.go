package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeYAML(t, "app:\n  env: dev\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Cache.Kind != "memory" {
		t.Errorf("cache kind = %q, want memory", cfg.Cache.Kind)
	}
	if got := cfg.ProviderTimeout(); got != 10*time.Second {
		t.Errorf("provider timeout = %v, want 10s", got)
	}
	if got := cfg.QuotaWindow(); got != time.Hour {
		t.Errorf("quota window = %v, want 1h", got)
	}
	if cfg.SendQuota.Limit != 100 {
		t.Errorf("quota limit = %d, want 100", cfg.SendQuota.Limit)
	}
	if cfg.IsProd() {
		t.Error("IsProd() = true en dev")
	}
}

func TestLoad_FullYAML(t *testing.T) {
	cfg, err := Load(writeYAML(t, `
app:
  env: staging
server:
  addr: ":9090"
storage:
  driver: postgres
  dsn: postgres://u:p@localhost/mailjohn
  postgres:
    max_open_conns: 20
    conn_max_lifetime: 30m
cache:
  kind: redis
  redis:
    addr: localhost:6379
    db: 2
oauth:
  state_secret: super-secret-hmac-key
  provider_timeout: 5s
send_quota:
  enabled: true
  limit: 50
  window: 15m
admin:
  api_key_hash: "$2a$10$abcdefghijklmnopqrstuv"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.Postgres.MaxOpenConns != 20 {
		t.Errorf("max_open_conns = %d", cfg.Storage.Postgres.MaxOpenConns)
	}
	if got := cfg.ProviderTimeout(); got != 5*time.Second {
		t.Errorf("provider timeout = %v", got)
	}
	if got := cfg.QuotaWindow(); got != 15*time.Minute {
		t.Errorf("quota window = %v", got)
	}
	if string(cfg.StateSecretBytes()) != "super-secret-hmac-key" {
		t.Errorf("state secret = %q", cfg.StateSecretBytes())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_DSN", "/tmp/mailjohn.db")
	t.Setenv("OAUTH_PROVIDER_TIMEOUT", "3s")
	t.Setenv("SEND_QUOTA_LIMIT", "7")

	cfg, err := Load(writeYAML(t, "server:\n  addr: \":8080\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q, el env debe pisar el YAML", cfg.Server.Addr)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "/tmp/mailjohn.db" {
		t.Errorf("storage = %q %q", cfg.Storage.Driver, cfg.Storage.DSN)
	}
	if got := cfg.ProviderTimeout(); got != 3*time.Second {
		t.Errorf("provider timeout = %v", got)
	}
	if cfg.SendQuota.Limit != 7 {
		t.Errorf("quota limit = %d", cfg.SendQuota.Limit)
	}
}

func TestLoad_SqliteDefaultDSN(t *testing.T) {
	cfg, err := Load(writeYAML(t, "storage:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DSN == "" {
		t.Error("sqlite sin dsn debe recibir un default")
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "driver desconocido",
			yaml: "storage:\n  driver: cassandra\n",
			want: "storage.driver",
		},
		{
			name: "postgres sin dsn",
			yaml: "storage:\n  driver: postgres\n",
			want: "storage.dsn",
		},
		{
			name: "redis sin addr",
			yaml: "cache:\n  kind: redis\n",
			want: "cache.redis.addr",
		},
		{
			name: "duración inválida",
			yaml: "oauth:\n  provider_timeout: pronto\n",
			want: "provider_timeout",
		},
		{
			name: "cuota sin redis",
			yaml: "send_quota:\n  enabled: true\n",
			want: "send_quota",
		},
		{
			name: "prod sin state secret",
			yaml: "app:\n  env: prod\n",
			want: "state_secret",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeYAML(t, tc.yaml))
			if err == nil {
				t.Fatal("Load debió fallar")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q no menciona %q", err, tc.want)
			}
		})
	}
}
