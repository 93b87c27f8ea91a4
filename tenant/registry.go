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
	"log"
	"os"
	"sync"
	"time"
)

// DialFunc establishes a connection to one tenant database and returns
// a ready handle. MongoDialer.Dial is the production implementation.
type DialFunc func(ctx context.Context, dbName string) (*Handle, error)

// SchemaFunc registers the collection schema on a freshly dialed
// handle. The default applies EnsureSchema with the static Collections
// set.
type SchemaFunc func(ctx context.Context, h *Handle) error

// connEntry is the registry's single-flight cell for one database
// name: either a connection in progress or a settled outcome. ready is
// closed exactly once, after which handle/err never change.
type connEntry struct {
	ready  chan struct{}
	handle *Handle
	err    error
}

func (e *connEntry) wait(ctx context.Context) (*Handle, error) {
	select {
	case <-e.ready:
		return e.handle, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RegistryStats tracks cache behavior. Counters only grow; a failed
// attempt counts as both a miss and a failure.
type RegistryStats struct {
	Hits         int64
	Misses       int64
	DialFailures int64
	LastDial     time.Time
}

// RegistryOptions holds options for creating a Registry.
type RegistryOptions struct {
	Dial   DialFunc
	Schema SchemaFunc
	Logger *log.Logger
}

// Registry caches one connection handle per tenant database name for
// the lifetime of the process. It guarantees at most one concurrent
// connection-establishment attempt per name: concurrent callers for a
// brand-new tenant all await the same in-flight attempt, and every
// caller observes either the same ready handle or the same error.
//
// The registry is constructed once at startup and passed by reference
// to request handlers; the connection map is its only mutable state
// and is never touched by handlers directly. Ready handles are never
// evicted or closed (tenant cardinality is assumed bounded), except by
// CloseAll during shutdown.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*connEntry
	dial   DialFunc
	schema SchemaFunc
	logger *log.Logger

	statsMu sync.Mutex
	stats   RegistryStats
}

// NewRegistry creates a Registry. Dial is required; Schema defaults to
// applying the static collection set.
func NewRegistry(opts RegistryOptions) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[TENANT_REGISTRY] ", log.LstdFlags)
	}

	schema := opts.Schema
	if schema == nil {
		schema = func(ctx context.Context, h *Handle) error {
			return EnsureSchema(ctx, h, Collections())
		}
	}

	return &Registry{
		conns:  make(map[string]*connEntry),
		dial:   opts.Dial,
		schema: schema,
		logger: logger,
	}
}

// Acquire returns the ready connection handle for dbName, dialing and
// registering the schema on first use. Callers arriving while the
// connection is being established block until that single attempt
// settles; ctx bounds only the caller's wait, never the attempt owned
// by another caller.
func (r *Registry) Acquire(ctx context.Context, dbName string) (*Handle, error) {
	r.mu.Lock()
	if e, ok := r.conns[dbName]; ok {
		r.mu.Unlock()
		r.recordHit()
		return e.wait(ctx)
	}

	// Install the in-flight placeholder before releasing the lock, so
	// every concurrent caller finds it and waits instead of dialing.
	e := &connEntry{ready: make(chan struct{})}
	r.conns[dbName] = e
	r.mu.Unlock()
	r.recordMiss()

	handle, err := r.connect(ctx, dbName)

	r.mu.Lock()
	if err != nil {
		// Forget the failed attempt entirely so the next request
		// retries from scratch instead of caching a broken state.
		delete(r.conns, dbName)
		e.err = err
	} else {
		e.handle = handle
	}
	r.mu.Unlock()
	close(e.ready)

	if err != nil {
		r.recordDialFailure()
		r.logger.Printf("Connection attempt for '%s' failed: %v", dbName, err)
		return nil, err
	}

	r.logger.Printf("Cached connection for '%s'", dbName)
	return handle, nil
}

// connect is the single cached unit of work for one tenant: dial the
// cluster, then register every known collection. Both must complete
// before any waiter observes the handle, so no request ever sees a
// partially provisioned database.
func (r *Registry) connect(ctx context.Context, dbName string) (*Handle, error) {
	handle, err := r.dial(ctx, dbName)
	if err != nil {
		return nil, err
	}

	if err := r.schema(ctx, handle); err != nil {
		// Tear the half-provisioned connection down; better to fail
		// loudly than serve a partially shaped tenant.
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if closeErr := handle.Close(closeCtx); closeErr != nil {
			r.logger.Printf("Warning: failed to close handle for '%s' after schema error: %v", dbName, closeErr)
		}
		cancel()
		return nil, err
	}

	return handle, nil
}

// Count returns the number of cached entries, in-flight attempts
// included.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll disconnects every ready handle. Used during shutdown only.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.conns {
		select {
		case <-e.ready:
		default:
			continue // attempt still in flight, its owner holds the client
		}
		if e.handle == nil {
			continue
		}
		closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := e.handle.Close(closeCtx); err != nil {
			r.logger.Printf("Warning: failed to disconnect '%s': %v", name, err)
		}
		cancel()
		delete(r.conns, name)
	}
}

// Stats returns a copy of the registry's counters.
func (r *Registry) Stats() RegistryStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Registry) recordHit() {
	r.statsMu.Lock()
	r.stats.Hits++
	r.statsMu.Unlock()
}

func (r *Registry) recordMiss() {
	r.statsMu.Lock()
	r.stats.Misses++
	r.stats.LastDial = time.Now()
	r.statsMu.Unlock()
}

func (r *Registry) recordDialFailure() {
	r.statsMu.Lock()
	r.stats.DialFailures++
	r.statsMu.Unlock()
}
