package oauth

import (
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
)

// RefreshGuard de-duplicates concurrent refreshes per configuration id.
// Unguarded racing refreshes against Google or Microsoft can each succeed
// while invalidating the other's issued token; under the guard, callers
// refreshing the same id share a single trip to the provider.
type RefreshGuard struct {
	group singleflight.Group
}

// NewRefreshGuard creates a guard. One instance serves the whole process;
// configuration ids are globally unique so adapters can share it.
func NewRefreshGuard() *RefreshGuard {
	return &RefreshGuard{}
}

// Do runs fn under the key id. In-flight callers for the same id block
// and receive fn's result instead of launching their own refresh.
func (g *RefreshGuard) Do(id string, fn func() (*repository.VendorEmailConfiguration, error)) (*repository.VendorEmailConfiguration, error) {
	v, err, _ := g.group.Do(id, func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	cfg, _ := v.(*repository.VendorEmailConfiguration)
	return cfg, nil
}
