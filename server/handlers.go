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

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"aifarm/backend/media"
	"aifarm/backend/profile"
	"aifarm/backend/shared/logger"
	"aifarm/backend/tenant"
)

// API holds every dependency the route handlers need. It is built
// once in Run and passed by reference; handlers never touch process
// globals.
type API struct {
	cfg      *Config
	log      *logger.Logger
	registry *tenant.Registry
	resolver *tenant.Resolver
	profiles *profile.Store
	limiter  *RateLimiter
	media    *media.Store // nil when no bucket is configured
	chat     Responder
}

// NewAPI assembles the request-handling surface.
func NewAPI(cfg *Config, log *logger.Logger, registry *tenant.Registry, resolver *tenant.Resolver, profiles *profile.Store, limiter *RateLimiter, mediaStore *media.Store, chat Responder) *API {
	if chat == nil {
		chat = NewStaticResponder()
	}
	return &API{
		cfg:      cfg,
		log:      log,
		registry: registry,
		resolver: resolver,
		profiles: profiles,
		limiter:  limiter,
		media:    mediaStore,
		chat:     chat,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
	promRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	a.log.ErrorWithCode(tenantDBFrom(r), requestIDFrom(r), message, status, err, nil)
	writeJSON(w, status, errorResponse{Error: message})
}

func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// tenantHandle resolves the authenticated caller to a ready per-tenant
// connection handle. Called once per request, before any domain query.
func (a *API) tenantHandle(r *http.Request) (*tenant.Handle, error) {
	ctx := r.Context()

	dbName, err := a.resolver.Resolve(ctx, userIDFrom(r))
	if err != nil {
		return nil, err
	}

	h, err := a.registry.Acquire(ctx, dbName)
	if err != nil {
		return nil, err
	}

	// Stash the resolved name for response logging.
	setTenantDB(r, dbName)
	return h, nil
}

// withTenant wraps a handler with timing, tenant resolution, and the
// error taxonomy mapping: no identity is 401, an unreachable tenant
// database is 503 and retried by the next request, a schema failure
// is 500.
func (a *API) withTenant(route string, fn func(w http.ResponseWriter, r *http.Request, h *tenant.Handle)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			promRequestDuration.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		}()

		h, err := a.tenantHandle(r)
		if err != nil {
			switch {
			case errors.Is(err, tenant.ErrUnauthenticated):
				a.writeError(w, r, http.StatusUnauthorized, "authentication required", err)
			case isConnectionError(err):
				promTenantConnectErrors.Inc()
				a.writeError(w, r, http.StatusServiceUnavailable, "tenant database unavailable", err)
			case errors.Is(err, r.Context().Err()) && r.Context().Err() != nil:
				a.writeError(w, r, http.StatusServiceUnavailable, "request cancelled", err)
			default:
				a.writeError(w, r, http.StatusInternalServerError, "failed to resolve tenant database", err)
			}
			return
		}

		fn(w, r, h)
	}
}

func isConnectionError(err error) bool {
	var connErr *tenant.ConnectionError
	return errors.As(err, &connErr)
}

func newID() string {
	return uuid.NewString()
}
