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

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aifarm_requests_total",
			Help: "Total number of API requests processed",
		},
		[]string{"status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aifarm_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000},
		},
		[]string{"route"},
	)
	promTenantConnectErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aifarm_tenant_connect_errors_total",
			Help: "Total number of failed tenant connection attempts observed by handlers",
		},
	)
	promRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aifarm_rate_limited_requests_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promTenantConnectErrors)
	prometheus.MustRegister(promRateLimited)
}
