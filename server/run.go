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
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aifarm/backend/media"
	"aifarm/backend/profile"
	"aifarm/backend/shared/logger"
	"aifarm/backend/tenant"
)

const serviceName = "aifarm-backend"

// Run is the exported entry point for the backend service. It wires
// configuration, the admin database, the per-tenant connection
// registry, rate limiting, optional media storage, and the HTTP
// surface, then serves until SIGINT/SIGTERM.
func Run() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	appLog := logger.New("farmd")

	// Admin database holds user profiles; tenant data never lives here.
	adminCtx, cancel := context.WithTimeout(context.Background(), tenant.DefaultConnectTimeout)
	adminClient, err := mongo.Connect(adminCtx, options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName(serviceName))
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to admin database: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adminClient.Disconnect(ctx)
	}()

	profiles := profile.NewStore(adminClient.Database(profile.AdminDatabase))
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := profiles.EnsureIndexes(ctx); err != nil {
			log.Printf("Warning: failed to ensure profile indexes: %v", err)
		}
		cancel()
	}
	log.Println("✅ Admin database connected")

	dialer := tenant.NewMongoDialer(tenant.MongoDialerOptions{
		URI:     cfg.MongoURI,
		AppName: serviceName,
	})
	registry := tenant.NewRegistry(tenant.RegistryOptions{Dial: dialer.Dial})
	resolver := tenant.NewResolver(profiles)

	limiter := NewRateLimiter(cfg.RedisURL, cfg.RateLimitPerMinute, appLog)
	defer limiter.Close()

	var mediaStore *media.Store
	if cfg.Media.Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		mediaStore, err = media.New(ctx, cfg.Media)
		cancel()
		if err != nil {
			log.Printf("Warning: media storage unavailable: %v", err)
			log.Println("Photo upload endpoints will be disabled")
			mediaStore = nil
		} else {
			log.Printf("✅ Media storage connected (bucket %s)", cfg.Media.Bucket)
		}
	} else {
		log.Println("ℹ️  MEDIA_BUCKET not set - photo uploads disabled")
	}

	api := NewAPI(cfg, appLog, registry, resolver, profiles, limiter, mediaStore, nil)

	r := mux.NewRouter()

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// Health and metrics
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/metrics", api.statsHandler).Methods("GET") // JSON registry stats
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	// Authentication (public)
	r.HandleFunc("/api/auth/signup", api.signupHandler).Methods("POST")
	r.HandleFunc("/api/auth/login", api.loginHandler).Methods("POST")

	// Everything below requires a valid token and runs against the
	// caller's own tenant database.
	apiRoutes := r.PathPrefix("/api").Subrouter()
	apiRoutes.Use(api.authMiddleware, api.rateLimitMiddleware)

	apiRoutes.Handle("/livestock", api.withTenant("list_livestock", api.listLivestock)).Methods("GET")
	apiRoutes.Handle("/livestock", api.withTenant("create_animal", api.createAnimal)).Methods("POST")
	apiRoutes.Handle("/livestock/{id}", api.withTenant("get_animal", api.getAnimal)).Methods("GET")
	apiRoutes.Handle("/livestock/{id}", api.withTenant("update_animal", api.updateAnimal)).Methods("PUT")
	apiRoutes.Handle("/livestock/{id}", api.withTenant("delete_animal", api.deleteAnimal)).Methods("DELETE")
	apiRoutes.Handle("/livestock/{id}/photo", api.withTenant("upload_photo", api.uploadAnimalPhoto)).Methods("POST")

	apiRoutes.Handle("/livestock/{id}/events", api.withTenant("list_events", api.listAnimalEvents)).Methods("GET")
	apiRoutes.Handle("/livestock/{id}/events", api.withTenant("create_event", api.createAnimalEvent)).Methods("POST")

	apiRoutes.Handle("/attendance", api.withTenant("list_attendance", api.listAttendance)).Methods("GET")
	apiRoutes.Handle("/attendance/check-in", api.withTenant("check_in", api.checkIn)).Methods("POST")
	apiRoutes.Handle("/attendance/{id}/check-out", api.withTenant("check_out", api.checkOut)).Methods("POST")

	apiRoutes.Handle("/stock", api.withTenant("list_stock", api.listStock)).Methods("GET")
	apiRoutes.Handle("/stock", api.withTenant("create_stock", api.createStockItem)).Methods("POST")
	apiRoutes.Handle("/stock/{id}/adjust", api.withTenant("adjust_stock", api.adjustStockItem)).Methods("POST")
	apiRoutes.Handle("/stock/{id}", api.withTenant("delete_stock", api.deleteStockItem)).Methods("DELETE")

	apiRoutes.Handle("/chat", api.withTenant("chat_history", api.listChatHistory)).Methods("GET")
	apiRoutes.Handle("/chat", api.withTenant("chat_message", api.postChatMessage)).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("🚀 AI Farm backend listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
	registry.CloseAll(ctx)
	log.Println("✅ Shutdown complete")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// statsHandler reports registry cache behavior as JSON, alongside the
// Prometheus exposition at /prometheus.
func (a *API) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := a.registry.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_connections": a.registry.Count(),
		"cache_hits":         stats.Hits,
		"cache_misses":       stats.Misses,
		"dial_failures":      stats.DialFailures,
		"last_dial":          stats.LastDial,
	})
}
