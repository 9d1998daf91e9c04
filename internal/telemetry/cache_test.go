package telemetry_test

import (
	"sync"
	"testing"
	"time"

	"phishdetect/internal/telemetry"
)

func TestCacheSetAndGet(t *testing.T) {
	cache := telemetry.NewTTLCache[string]("test", 10, 1*time.Second)

	cache.Set("key1", "value1")
	value, ok := cache.Get("key1")

	if !ok {
		t.Fatal("expected to find key1")
	}
	if value != "value1" {
		t.Errorf("expected 'value1', got '%s'", value)
	}
}

func TestCacheMissReturnsZeroValue(t *testing.T) {
	cache := telemetry.NewTTLCache[int]("test", 10, 1*time.Second)

	value, ok := cache.Get("nonexistent")

	if ok {
		t.Error("expected ok to be false for missing key")
	}
	if value != 0 {
		t.Errorf("expected zero value, got %d", value)
	}
}

func TestCacheExpiredEntryIsAbsent(t *testing.T) {
	cache := telemetry.NewTTLCache[string]("test", 10, 10*time.Millisecond)

	cache.Set("key1", "value1")
	time.Sleep(25 * time.Millisecond)

	if _, ok := cache.Get("key1"); ok {
		t.Error("expected expired entry to be treated as absent")
	}
}

func TestCacheEvictsWhenFull(t *testing.T) {
	cache := telemetry.NewTTLCache[int]("test", 2, 1*time.Minute)

	cache.Set("a", 1)
	cache.Set("b", 2)
	cache.Set("c", 3)

	if st := cache.Stats(); st.Size > 2 {
		t.Errorf("expected size <= 2 after eviction, got %d", st.Size)
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("expected most recent entry to survive eviction")
	}
}

func TestCacheFlush(t *testing.T) {
	cache := telemetry.NewTTLCache[string]("test", 10, 1*time.Minute)

	cache.Set("key1", "value1")
	cache.Flush()

	if _, ok := cache.Get("key1"); ok {
		t.Error("expected flushed cache to be empty")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := telemetry.NewTTLCache[int]("test", 100, 1*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Set("shared", n)
				cache.Get("shared")
			}
		}(i)
	}
	wg.Wait()

	if _, ok := cache.Get("shared"); !ok {
		t.Error("expected shared key to be present after concurrent writes")
	}
}

func TestRegistryHealthTransitions(t *testing.T) {
	reg := telemetry.NewRegistry()

	reg.RecordSuccess("urlhaus", 20*time.Millisecond)
	if st := reg.Stats("urlhaus"); st.State != telemetry.Healthy {
		t.Errorf("expected healthy, got %s", st.State)
	}

	for i := 0; i < 3; i++ {
		reg.RecordFailure("urlhaus", nil)
	}
	if st := reg.Stats("urlhaus"); st.State != telemetry.Degraded {
		t.Errorf("expected degraded after 3 consecutive failures, got %s", st.State)
	}

	for i := 0; i < 2; i++ {
		reg.RecordFailure("urlhaus", nil)
	}
	if st := reg.Stats("urlhaus"); st.State != telemetry.Unhealthy {
		t.Errorf("expected unhealthy after 5 consecutive failures, got %s", st.State)
	}

	reg.RecordSuccess("urlhaus", 20*time.Millisecond)
	if st := reg.Stats("urlhaus"); st.State != telemetry.Healthy {
		t.Errorf("expected recovery to healthy, got %s", st.State)
	}
}
