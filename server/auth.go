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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"aifarm/backend/profile"
	"aifarm/backend/tenant"
)

// tokenTTL is how long issued tokens stay valid.
const tokenTTL = 24 * time.Hour

// issueToken signs a JWT for the given account. The subject claim is
// the tenant identifier the resolver consumes on every request.
func issueToken(userID, email string, secret []byte) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	})
	return token.SignedString(secret)
}

// parseToken validates a bearer token and returns the user id.
func parseToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return sub, nil
}

// authMiddleware validates the Authorization header, assigns a request
// id, and installs the request scope. Requests without a valid token
// never reach the tenant layer.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		userID, err := parseToken(strings.TrimPrefix(header, "Bearer "), []byte(a.cfg.JWTSecret))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		scope := &requestScope{
			userID:    userID,
			requestID: newID(),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey, scope)))
	})
}

// hashPassword hashes a password for storage and comparison.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// signupHandler registers an account. The tenant database name is
// assigned explicitly at signup as DBPrefix + user id and stored on
// the profile; the database itself is provisioned eagerly so the new
// tenant is browsable before its first request.
func (a *API) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	userID := newID()
	user := &profile.User{
		ID:           userID,
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hashPassword(req.Password),
		TenantDBName: tenant.DBPrefix + userID,
	}

	if err := a.profiles.Create(r.Context(), user); err != nil {
		if errors.Is(err, profile.ErrEmailTaken) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "email already registered"})
			return
		}
		a.log.ErrorWithCode("", "", "signup failed", http.StatusInternalServerError, err, nil)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create account"})
		return
	}

	// Best effort: a failed warm-up is retried transparently on the
	// tenant's first real request.
	if _, err := a.registry.Acquire(r.Context(), user.TenantDBName); err != nil {
		a.log.Warn(user.TenantDBName, "", "tenant database warm-up failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	token, err := issueToken(user.ID, user.Email, []byte(a.cfg.JWTSecret))
	if err != nil {
		a.log.ErrorWithCode("", "", "token issue failed", http.StatusInternalServerError, err, nil)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to issue token"})
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: token, UserID: user.ID})
}

// loginHandler authenticates an existing account.
func (a *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := a.profiles.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
			return
		}
		a.log.ErrorWithCode("", "", "login lookup failed", http.StatusInternalServerError, err, nil)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "login failed"})
		return
	}

	hashed := hashPassword(req.Password)
	if subtle.ConstantTimeCompare([]byte(hashed), []byte(user.PasswordHash)) != 1 {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	token, err := issueToken(user.ID, user.Email, []byte(a.cfg.JWTSecret))
	if err != nil {
		a.log.ErrorWithCode("", "", "token issue failed", http.StatusInternalServerError, err, nil)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to issue token"})
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, UserID: user.ID})
}
