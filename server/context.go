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

import "net/http"

type contextKey string

const scopeKey contextKey = "aifarm.scope"

// requestScope carries per-request identity through the middleware
// chain. TenantDB is filled in once the resolver has run, so response
// logging can attribute the request to its tenant database.
type requestScope struct {
	userID    string
	requestID string
	tenantDB  string
}

func scopeFrom(r *http.Request) *requestScope {
	s, _ := r.Context().Value(scopeKey).(*requestScope)
	return s
}

func userIDFrom(r *http.Request) string {
	if s := scopeFrom(r); s != nil {
		return s.userID
	}
	return ""
}

func requestIDFrom(r *http.Request) string {
	if s := scopeFrom(r); s != nil {
		return s.requestID
	}
	return ""
}

func tenantDBFrom(r *http.Request) string {
	if s := scopeFrom(r); s != nil {
		return s.tenantDB
	}
	return ""
}

func setTenantDB(r *http.Request, dbName string) {
	if s := scopeFrom(r); s != nil {
		s.tenantDB = dbName
	}
}
