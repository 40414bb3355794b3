package oauth_test

import (
	"testing"

	apperrors "github.com/dropDatabas3/mailjohn/internal/errors"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
	"github.com/dropDatabas3/mailjohn/internal/domain/types"
	"github.com/dropDatabas3/mailjohn/internal/oauth"
	"github.com/dropDatabas3/mailjohn/internal/oauth/google"
	"github.com/dropDatabas3/mailjohn/internal/oauth/microsoft"
	"github.com/dropDatabas3/mailjohn/internal/store/memory"
)

func newRegistry(t *testing.T) *oauth.Registry {
	t.Helper()
	repo := memory.New()
	guard := oauth.NewRefreshGuard()

	r := oauth.NewRegistry()
	if err := r.Register("google", func() (oauth.Adapter, error) {
		return google.New(repo, guard, google.Options{}), nil
	}); err != nil {
		t.Fatalf("register google: %v", err)
	}
	if err := r.Register("microsoft", func() (oauth.Adapter, error) {
		return microsoft.New(repo, nil, guard, microsoft.Options{}), nil
	}); err != nil {
		t.Fatalf("register microsoft: %v", err)
	}
	return r
}

func TestRegistry_ProviderIsolation(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Resolve("google")
	if err != nil {
		t.Fatalf("resolve google: %v", err)
	}
	m, err := r.Resolve("microsoft")
	if err != nil {
		t.Fatalf("resolve microsoft: %v", err)
	}

	if g == m {
		t.Fatal("google and microsoft resolved to the same instance")
	}
	if _, ok := g.(*google.Adapter); !ok {
		t.Fatalf("google resolved to %T", g)
	}
	if _, ok := m.(*microsoft.Adapter); !ok {
		t.Fatalf("microsoft resolved to %T", m)
	}

	_, err = r.Resolve("dropbox")
	if apperrors.CodeOf(err) != apperrors.CodeInvalidProvider {
		t.Fatalf("dropbox: expected invalid_provider, got %v", err)
	}
}

func TestRegistry_NormalizesNames(t *testing.T) {
	r := newRegistry(t)

	a, err := r.Resolve("google")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	b, err := r.Resolve("  GOOGLE  ")
	if err != nil {
		t.Fatalf("resolve mixed case: %v", err)
	}
	if a != b {
		t.Fatal("case variants should hit the same cached instance")
	}
}

func TestRegistry_CachesInstances(t *testing.T) {
	r := newRegistry(t)

	a, _ := r.Resolve("microsoft")
	b, _ := r.Resolve("microsoft")
	if a != b {
		t.Fatal("expected the cached instance on the second resolve")
	}

	r.InvalidateCache("microsoft")
	c, err := r.Resolve("microsoft")
	if err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if c == a {
		t.Fatal("invalidate should force a fresh instance")
	}
}

func TestRegistry_InvalidateAll(t *testing.T) {
	r := newRegistry(t)

	g1, _ := r.Resolve("google")
	m1, _ := r.Resolve("microsoft")
	r.InvalidateAll()
	g2, _ := r.Resolve("google")
	m2, _ := r.Resolve("microsoft")

	if g1 == g2 || m1 == m2 {
		t.Fatal("InvalidateAll should drop every cached instance")
	}
}

func TestRegistry_ResolveFromConfiguration(t *testing.T) {
	r := newRegistry(t)

	cfg := &repository.VendorEmailConfiguration{Provider: types.ProviderGoogle}
	a, err := r.ResolveFromConfiguration(cfg)
	if err != nil {
		t.Fatalf("resolve from configuration: %v", err)
	}
	if _, ok := a.(*google.Adapter); !ok {
		t.Fatalf("resolved to %T", a)
	}

	_, err = r.ResolveFromConfiguration(&repository.VendorEmailConfiguration{})
	if apperrors.CodeOf(err) != apperrors.CodeInvalidProvider {
		t.Fatalf("empty provider: expected invalid_provider, got %v", err)
	}
	_, err = r.ResolveFromConfiguration(nil)
	if apperrors.CodeOf(err) != apperrors.CodeInvalidProvider {
		t.Fatalf("nil configuration: expected invalid_provider, got %v", err)
	}
}

func TestRegistry_RegisterRejectsBadInput(t *testing.T) {
	r := oauth.NewRegistry()

	if err := r.Register("", func() (oauth.Adapter, error) { return nil, nil }); err == nil {
		t.Fatal("empty name should fail")
	}
	if err := r.Register("google", nil); err == nil {
		t.Fatal("nil factory should fail")
	}
}

func TestRegistry_RejectsMiswiredFactory(t *testing.T) {
	repo := memory.New()
	r := oauth.NewRegistry()

	// factory registered under a name its adapter does not answer to
	if err := r.Register("outlook", func() (oauth.Adapter, error) {
		return microsoft.New(repo, nil, nil, microsoft.Options{}), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Resolve("outlook"); apperrors.CodeOf(err) != apperrors.CodeInvalidProvider {
		t.Fatalf("expected invalid_provider for miswired factory, got %v", err)
	}

	if err := r.Register("nulls", func() (oauth.Adapter, error) { return nil, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Resolve("nulls"); err == nil {
		t.Fatal("nil adapter from factory should fail")
	}
}

func TestRegistry_Available(t *testing.T) {
	r := newRegistry(t)
	got := r.Available()
	want := []string{"google", "microsoft"}
	if len(got) != len(want) {
		t.Fatalf("available = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("available = %v, want %v", got, want)
		}
	}
}
