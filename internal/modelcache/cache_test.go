package modelcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetLoadsOncePerName(t *testing.T) {
	var loads atomic.Int32
	cache := New(func(name string) (string, error) {
		loads.Add(1)
		return "session:" + name, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.Get("u2net_human")
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			if got != "session:u2net_human" {
				t.Errorf("unexpected model %q", got)
			}
		}()
	}
	wg.Wait()

	if n := loads.Load(); n != 1 {
		t.Fatalf("expected a single load, got %d", n)
	}
	if _, err := cache.Get("isnet-general-use"); err != nil {
		t.Fatalf("get second model: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 cached models, got %d", cache.Len())
	}
}

func TestGetDoesNotCacheFailures(t *testing.T) {
	attempts := 0
	cache := New(func(name string) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errors.New("boom")
		}
		return 42, nil
	})

	if _, err := cache.Get("m"); err == nil {
		t.Fatal("expected first load to fail")
	}
	got, err := cache.Get("m")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got != 42 || attempts != 2 {
		t.Fatalf("got %d after %d attempts", got, attempts)
	}
}
