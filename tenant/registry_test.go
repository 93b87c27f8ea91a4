// Copyright 2025 AI Farm
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// countingDialer returns a DialFunc that counts invocations and
// optionally delays, to widen the race window in concurrency tests.
func countingDialer(calls *int64, delay time.Duration, failFirst int64) DialFunc {
	return func(ctx context.Context, dbName string) (*Handle, error) {
		n := atomic.AddInt64(calls, 1)
		if delay > 0 {
			time.Sleep(delay)
		}
		if n <= failFirst {
			return nil, NewConnectionError(dbName, "Dial", "cluster unreachable", errors.New("dial tcp: refused"))
		}
		return NewHandle(nil, dbName), nil
	}
}

func noopSchema(ctx context.Context, h *Handle) error { return nil }

func TestAcquireSingleAttemptUnderRace(t *testing.T) {
	var dialCalls int64
	reg := NewRegistry(RegistryOptions{
		Dial:   countingDialer(&dialCalls, 50*time.Millisecond, 0),
		Schema: noopSchema,
		Logger: quietLogger(),
	})

	const n = 16
	handles := make([]*Handle, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = reg.Acquire(context.Background(), "AI_FARM_user_u123")
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&dialCalls); got != 1 {
		t.Fatalf("expected exactly 1 dial for %d concurrent callers, got %d", n, got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Errorf("caller %d got a different handle instance", i)
		}
	}
}

func TestAcquireSchemaRunsOnceInsideAttempt(t *testing.T) {
	var dialCalls, schemaCalls int64
	reg := NewRegistry(RegistryOptions{
		Dial: countingDialer(&dialCalls, 20*time.Millisecond, 0),
		Schema: func(ctx context.Context, h *Handle) error {
			atomic.AddInt64(&schemaCalls, 1)
			time.Sleep(20 * time.Millisecond)
			return nil
		},
		Logger: quietLogger(),
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Acquire(context.Background(), "AI_FARM_user_a"); err != nil {
				t.Errorf("Acquire failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&schemaCalls); got != 1 {
		t.Fatalf("expected schema registration to run once, got %d", got)
	}
}

func TestAcquireReusesReadyHandle(t *testing.T) {
	var dialCalls int64
	reg := NewRegistry(RegistryOptions{
		Dial:   countingDialer(&dialCalls, 0, 0),
		Schema: noopSchema,
		Logger: quietLogger(),
	})

	h1, err := reg.Acquire(context.Background(), "AI_FARM_user_a")
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	h2, err := reg.Acquire(context.Background(), "AI_FARM_user_a")
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}

	if h1 != h2 {
		t.Error("expected the cached handle instance on the second call")
	}
	if got := atomic.LoadInt64(&dialCalls); got != 1 {
		t.Errorf("expected 1 dial, got %d", got)
	}

	stats := reg.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
}

func TestAcquireDifferentTenantsAreIsolated(t *testing.T) {
	var dialCalls int64
	reg := NewRegistry(RegistryOptions{
		Dial:   countingDialer(&dialCalls, 10*time.Millisecond, 0),
		Schema: noopSchema,
		Logger: quietLogger(),
	})

	var ha, hb *Handle
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); ha, _ = reg.Acquire(context.Background(), "AI_FARM_user_a") }()
	go func() { defer wg.Done(); hb, _ = reg.Acquire(context.Background(), "AI_FARM_user_b") }()
	wg.Wait()

	if got := atomic.LoadInt64(&dialCalls); got != 2 {
		t.Fatalf("expected one attempt per tenant, got %d", got)
	}
	if ha == hb {
		t.Fatal("tenants must not share a handle")
	}
	if ha.Name() != "AI_FARM_user_a" || hb.Name() != "AI_FARM_user_b" {
		t.Errorf("handles bound to wrong databases: %q, %q", ha.Name(), hb.Name())
	}
	if reg.Count() != 2 {
		t.Errorf("expected 2 cached entries, got %d", reg.Count())
	}
}

func TestAcquireFailureDoesNotPoisonCache(t *testing.T) {
	var dialCalls int64
	reg := NewRegistry(RegistryOptions{
		Dial:   countingDialer(&dialCalls, 30*time.Millisecond, 1),
		Schema: noopSchema,
		Logger: quietLogger(),
	})

	// All concurrent waiters of the first (failing) attempt must see
	// the same rejection.
	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Acquire(context.Background(), "AI_FARM_user_a")
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt64(&dialCalls); got != 1 {
		t.Fatalf("expected 1 dial during the failing round, got %d", got)
	}
	for i, err := range errs {
		if err == nil {
			t.Fatalf("waiter %d unexpectedly succeeded", i)
		}
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			t.Fatalf("waiter %d: expected ConnectionError, got %T (%v)", i, err, err)
		}
	}
	if reg.Count() != 0 {
		t.Fatalf("failed attempt left %d entries in the cache", reg.Count())
	}

	// The next request triggers a brand-new attempt and succeeds.
	h, err := reg.Acquire(context.Background(), "AI_FARM_user_a")
	if err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
	if h == nil || h.Name() != "AI_FARM_user_a" {
		t.Fatalf("retry returned a bad handle: %+v", h)
	}
	if got := atomic.LoadInt64(&dialCalls); got != 2 {
		t.Errorf("expected a fresh dial on retry, got %d total", got)
	}
	if reg.Stats().DialFailures != 1 {
		t.Errorf("expected 1 recorded dial failure, got %d", reg.Stats().DialFailures)
	}
}

func TestAcquireSchemaFailureFailsAttemptAndClearsEntry(t *testing.T) {
	var dialCalls, schemaCalls int64
	reg := NewRegistry(RegistryOptions{
		Dial: countingDialer(&dialCalls, 0, 0),
		Schema: func(ctx context.Context, h *Handle) error {
			if atomic.AddInt64(&schemaCalls, 1) == 1 {
				return NewSchemaError(h.Name(), CollectionLivestock, "failed to create collection", errors.New("unauthorized"))
			}
			return nil
		},
		Logger: quietLogger(),
	})

	_, err := reg.Acquire(context.Background(), "AI_FARM_user_a")
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %T (%v)", err, err)
	}
	if reg.Count() != 0 {
		t.Fatalf("schema failure must clear the entry, found %d", reg.Count())
	}

	// Retry goes through the full attempt again: dial and schema.
	if _, err := reg.Acquire(context.Background(), "AI_FARM_user_a"); err != nil {
		t.Fatalf("retry after schema failure should succeed: %v", err)
	}
	if atomic.LoadInt64(&dialCalls) != 2 || atomic.LoadInt64(&schemaCalls) != 2 {
		t.Errorf("expected 2 dials and 2 schema runs, got %d / %d",
			atomic.LoadInt64(&dialCalls), atomic.LoadInt64(&schemaCalls))
	}
}

func TestAcquireWaiterContextCancellation(t *testing.T) {
	var dialCalls int64
	release := make(chan struct{})
	reg := NewRegistry(RegistryOptions{
		Dial: func(ctx context.Context, dbName string) (*Handle, error) {
			atomic.AddInt64(&dialCalls, 1)
			<-release
			return NewHandle(nil, dbName), nil
		},
		Schema: noopSchema,
		Logger: quietLogger(),
	})

	ownerDone := make(chan error, 1)
	go func() {
		_, err := reg.Acquire(context.Background(), "AI_FARM_user_a")
		ownerDone <- err
	}()

	// Give the owner time to install the placeholder.
	time.Sleep(20 * time.Millisecond)

	waitCtx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := reg.Acquire(waitCtx, "AI_FARM_user_a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled waiter should get context.Canceled, got %v", err)
	}

	// The in-flight attempt is unaffected by the waiter's cancellation.
	close(release)
	if err := <-ownerDone; err != nil {
		t.Fatalf("owner attempt failed: %v", err)
	}
	if got := atomic.LoadInt64(&dialCalls); got != 1 {
		t.Errorf("expected 1 dial, got %d", got)
	}

	// A late caller still gets the cached handle without a new dial.
	if _, err := reg.Acquire(context.Background(), "AI_FARM_user_a"); err != nil {
		t.Fatalf("late Acquire failed: %v", err)
	}
	if got := atomic.LoadInt64(&dialCalls); got != 1 {
		t.Errorf("late Acquire dialed again: %d total", got)
	}
}

func TestAcquireManyTenantsConcurrently(t *testing.T) {
	var dialCalls int64
	reg := NewRegistry(RegistryOptions{
		Dial:   countingDialer(&dialCalls, 5*time.Millisecond, 0),
		Schema: noopSchema,
		Logger: quietLogger(),
	})

	const tenants = 10
	const callersPerTenant = 4

	var wg sync.WaitGroup
	for i := 0; i < tenants; i++ {
		name := fmt.Sprintf("AI_FARM_user_%d", i)
		for j := 0; j < callersPerTenant; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := reg.Acquire(context.Background(), name); err != nil {
					t.Errorf("Acquire(%s) failed: %v", name, err)
				}
			}()
		}
	}
	wg.Wait()

	if got := atomic.LoadInt64(&dialCalls); got != tenants {
		t.Fatalf("expected %d dials (one per tenant), got %d", tenants, got)
	}
}
