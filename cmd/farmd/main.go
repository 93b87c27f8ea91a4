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

// Package main is the entry point for the AI Farm backend service.
//
// The backend is a multi-tenant farm-management API that:
// - Keeps every farm's data in its own MongoDB database
// - Caches one connection per tenant with single-flight establishment
// - Serves livestock, events, attendance, stock, and chat endpoints
//
// Usage:
//
//	./farmd
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	MONGO_URI - MongoDB cluster connection string
//	JWT_SECRET - Secret for JWT token signing (required)
//	REDIS_URL - Redis URL for distributed rate limiting (optional)
//	MEDIA_BUCKET - S3 bucket for animal photos (optional)
//	FARMD_CONFIG - Path to a YAML config file (optional)
package main

import (
	"aifarm/backend/server"
)

func main() {
	server.Run()
}
