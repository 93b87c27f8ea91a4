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
	"context"
	"io"
	stdlog "log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aifarm/backend/shared/logger"
	"aifarm/backend/tenant"
)

type stubProfiles struct{}

func (stubProfiles) Lookup(ctx context.Context, userID string) (*tenant.Profile, error) {
	return nil, tenant.ErrProfileNotFound
}

// testAPI builds an API whose registry uses the given dialer and never
// touches a real database.
func testAPI(t *testing.T, dial tenant.DialFunc) *API {
	t.Helper()
	registry := tenant.NewRegistry(tenant.RegistryOptions{
		Dial:   dial,
		Schema: func(ctx context.Context, h *tenant.Handle) error { return nil },
		Logger: stdlog.New(io.Discard, "", 0),
	})
	return &API{
		cfg:      &Config{JWTSecret: "secret"},
		log:      logger.New("test"),
		registry: registry,
		resolver: tenant.NewResolver(stubProfiles{}),
		chat:     NewStaticResponder(),
	}
}

// scoped stamps an authenticated request scope onto r, the way
// authMiddleware does in production.
func scoped(r *http.Request, userID string) *http.Request {
	scope := &requestScope{userID: userID, requestID: "req-1"}
	return r.WithContext(context.WithValue(r.Context(), scopeKey, scope))
}

func TestWithTenantNoIdentityIs401(t *testing.T) {
	api := testAPI(t, func(ctx context.Context, dbName string) (*tenant.Handle, error) {
		t.Error("dial must not run without an identity")
		return nil, nil
	})

	handler := api.withTenant("test", func(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
		t.Error("handler must not run without an identity")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/livestock", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestWithTenantDialFailureIs503(t *testing.T) {
	api := testAPI(t, func(ctx context.Context, dbName string) (*tenant.Handle, error) {
		return nil, tenant.NewConnectionError(dbName, "Dial", "cluster unreachable", nil)
	})

	handler := api.withTenant("test", func(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
		t.Error("handler must not run when the tenant database is down")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, scoped(httptest.NewRequest("GET", "/api/livestock", nil), "u1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for a connection failure, got %d", rec.Code)
	}

	// The failed attempt must not be cached: the next request dials again
	// and, with the database still down, gets 503 again rather than a
	// poisoned handle.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, scoped(httptest.NewRequest("GET", "/api/livestock", nil), "u1"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 on retry, got %d", rec.Code)
	}
	if got := api.registry.Stats().DialFailures; got != 2 {
		t.Errorf("expected 2 dial attempts, got %d", got)
	}
}

func TestWithTenantPassesResolvedHandle(t *testing.T) {
	api := testAPI(t, func(ctx context.Context, dbName string) (*tenant.Handle, error) {
		return tenant.NewHandle(nil, dbName), nil
	})

	var gotName string
	handler := api.withTenant("test", func(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
		gotName = h.Name()
		writeJSON(w, http.StatusOK, nil)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, scoped(httptest.NewRequest("GET", "/api/livestock", nil), "u123"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotName != tenant.DBPrefix+"u123" {
		t.Errorf("expected handle for %s, got %s", tenant.DBPrefix+"u123", gotName)
	}
}

func TestWithTenantSchemaFailureIs500(t *testing.T) {
	registry := tenant.NewRegistry(tenant.RegistryOptions{
		Dial: func(ctx context.Context, dbName string) (*tenant.Handle, error) {
			return tenant.NewHandle(nil, dbName), nil
		},
		Schema: func(ctx context.Context, h *tenant.Handle) error {
			return tenant.NewSchemaError(h.Name(), "livestock", "validator rejected", nil)
		},
		Logger: stdlog.New(io.Discard, "", 0),
	})
	api := &API{
		cfg:      &Config{JWTSecret: "secret"},
		log:      logger.New("test"),
		registry: registry,
		resolver: tenant.NewResolver(stubProfiles{}),
	}

	handler := api.withTenant("test", func(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
		t.Error("handler must not run when schema registration failed")
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, scoped(httptest.NewRequest("GET", "/api/livestock", nil), "u1"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a schema failure, got %d", rec.Code)
	}
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/livestock",
		strings.NewReader(`{"tag":"A-1","species":"goat","surprise":true}`))

	var body animalRequest
	if err := readJSON(req, &body); err == nil {
		t.Error("expected unknown field to be rejected")
	}
}

func TestStaticResponderAlwaysAnswers(t *testing.T) {
	responder := NewStaticResponder()
	for _, msg := range []string{"vaccination schedule?", "how much feed is left", "breeding records", "hello"} {
		reply, err := responder.Respond(context.Background(), nil, msg)
		if err != nil {
			t.Fatalf("Respond(%q): %v", msg, err)
		}
		if reply == "" {
			t.Errorf("Respond(%q) returned an empty reply", msg)
		}
	}
}
