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
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"aifarm/backend/media"
)

// Config holds the process configuration. Values come from an optional
// YAML file (FARMD_CONFIG) with environment variables taking
// precedence, 12-Factor style.
type Config struct {
	Port               string       `yaml:"port"`
	MongoURI           string       `yaml:"mongo_uri"`
	JWTSecret          string       `yaml:"jwt_secret"`
	RedisURL           string       `yaml:"redis_url"`
	AllowedOrigins     []string     `yaml:"allowed_origins"`
	RateLimitPerMinute int          `yaml:"rate_limit_per_minute"`
	Media              media.Config `yaml:"media"`
}

// LoadConfig builds the configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:               "8080",
		MongoURI:           "mongodb://localhost:27017",
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 300,
	}

	if path := os.Getenv("FARMD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	if limit := os.Getenv("RATE_LIMIT_PER_MINUTE"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %q: %w", limit, err)
		}
		cfg.RateLimitPerMinute = n
	}

	cfg.Media.Bucket = getEnv("MEDIA_BUCKET", cfg.Media.Bucket)
	cfg.Media.Region = getEnv("MEDIA_REGION", cfg.Media.Region)
	cfg.Media.Endpoint = getEnv("MEDIA_ENDPOINT", cfg.Media.Endpoint)
	cfg.Media.AccessKeyID = getEnv("MEDIA_ACCESS_KEY_ID", cfg.Media.AccessKeyID)
	cfg.Media.SecretAccessKey = getEnv("MEDIA_SECRET_ACCESS_KEY", cfg.Media.SecretAccessKey)

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// getEnv returns the environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
