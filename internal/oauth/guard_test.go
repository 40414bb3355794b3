package oauth

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/mailjohn/internal/domain/repository"
)

func TestRefreshGuard_DeduplicatesConcurrentRefreshes(t *testing.T) {
	g := NewRefreshGuard()

	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})

	refresh := func() (*repository.VendorEmailConfiguration, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
		}
		<-release
		return &repository.VendorEmailConfiguration{ID: "cfg-1"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*repository.VendorEmailConfiguration, 10)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = g.Do("cfg-1", refresh)
	}()
	<-entered

	// everyone else joins while the first refresh is in flight
	for i := 1; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = g.Do("cfg-1", refresh)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single provider trip, got %d", n)
	}
	for i, cfg := range results {
		if cfg == nil || cfg.ID != "cfg-1" {
			t.Fatalf("caller %d got %+v", i, cfg)
		}
	}
}

func TestRefreshGuard_SeparateKeysRunIndependently(t *testing.T) {
	g := NewRefreshGuard()
	var calls int32

	for _, id := range []string{"cfg-a", "cfg-b"} {
		cfg, err := g.Do(id, func() (*repository.VendorEmailConfiguration, error) {
			atomic.AddInt32(&calls, 1)
			return &repository.VendorEmailConfiguration{ID: id}, nil
		})
		if err != nil {
			t.Fatalf("Do(%s) err: %v", id, err)
		}
		if cfg.ID != id {
			t.Fatalf("Do(%s) returned %s", id, cfg.ID)
		}
	}
	if calls != 2 {
		t.Fatalf("expected 2 executions, got %d", calls)
	}
}

func TestRefreshGuard_PropagatesError(t *testing.T) {
	g := NewRefreshGuard()
	boom := errors.New("provider down")

	cfg, err := g.Do("cfg-1", func() (*repository.VendorEmailConfiguration, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if cfg != nil {
		t.Fatalf("cfg = %+v, want nil", cfg)
	}

	// a later call after the failed flight runs fresh
	cfg, err = g.Do("cfg-1", func() (*repository.VendorEmailConfiguration, error) {
		return &repository.VendorEmailConfiguration{ID: "cfg-1"}, nil
	})
	if err != nil || cfg == nil {
		t.Fatalf("second call: cfg=%v err=%v", cfg, err)
	}
}
