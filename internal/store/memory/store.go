// Package memory implementa el repositorio de configuraciones en memoria.
// Para desarrollo y tests; sin persistencia entre procesos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]*repository.VendorEmailConfiguration
}

func New() *Store {
	return &Store{data: make(map[string]*repository.VendorEmailConfiguration)}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*repository.VendorEmailConfiguration)
	return nil
}

func (s *Store) Create(ctx context.Context, cfg *repository.VendorEmailConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if _, exists := s.data[cfg.ID]; exists {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	s.data[cfg.ID] = clone(cfg)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.VendorEmailConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible(id)
}

func (s *Store) List(ctx context.Context, vendorID, locationID int) ([]*repository.VendorEmailConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*repository.VendorEmailConfiguration
	for _, c := range s.data {
		if c.DeletedAt != nil || c.VendorID != vendorID {
			continue
		}
		if locationID > 0 && c.LocationID != locationID {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateTokens(ctx context.Context, id string, upd repository.TokenUpdate) (*repository.VendorEmailConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.visible(id); err != nil {
		return nil, err
	}
	stored := s.data[id]

	at := upd.AccessToken
	stored.AccessToken = &at
	if upd.RefreshToken != nil {
		rt := *upd.RefreshToken
		stored.RefreshToken = &rt
	}
	stored.ExpiresIn = upd.ExpiresIn
	exp := upd.ExpiresAt.UTC()
	stored.ExpiresAt = &exp
	if upd.UserEmail != nil {
		ue := *upd.UserEmail
		stored.UserEmail = &ue
	}
	stored.UpdatedAt = time.Now().UTC()
	return clone(stored), nil
}

func (s *Store) ClearTokens(ctx context.Context, id string) (*repository.VendorEmailConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.visible(id); err != nil {
		return nil, err
	}
	stored := s.data[id]
	stored.AccessToken = nil
	stored.RefreshToken = nil
	stored.ExpiresIn = 0
	stored.ExpiresAt = nil
	stored.UpdatedAt = time.Now().UTC()
	return clone(stored), nil
}

func (s *Store) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.visible(id); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.data[id].DeletedAt = &now
	s.data[id].UpdatedAt = now
	return nil
}

// visible retorna la entrada si existe y no está soft-deleted. Caller sostiene el lock.
func (s *Store) visible(id string) (*repository.VendorEmailConfiguration, error) {
	c, ok := s.data[id]
	if !ok || c.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return clone(c), nil
}

// clone copia profundo para que los callers no muten el estado interno.
func clone(c *repository.VendorEmailConfiguration) *repository.VendorEmailConfiguration {
	out := *c
	out.UserEmail = copyStr(c.UserEmail)
	out.AccessToken = copyStr(c.AccessToken)
	out.RefreshToken = copyStr(c.RefreshToken)
	out.ExpiresAt = copyTime(c.ExpiresAt)
	out.DeletedAt = copyTime(c.DeletedAt)
	return &out
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
