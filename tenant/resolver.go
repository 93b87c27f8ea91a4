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
	"strings"
)

// DBPrefix is the required prefix of every tenant database name.
// Accounts created before explicit naming stored no name at all, and
// some older profiles stored the bare user id; normalization maps both
// onto the same prefixed name.
const DBPrefix = "AI_FARM_user_"

// Profile is the subset of a user profile the resolver needs.
type Profile struct {
	ID           string
	TenantDBName string
}

// ProfileStore looks up stored user profiles. Implementations return
// ErrProfileNotFound (possibly wrapped) when no profile exists.
type ProfileStore interface {
	Lookup(ctx context.Context, userID string) (*Profile, error)
}

// Resolver computes the stable per-tenant database name for an
// authenticated user id. The result is the Registry cache key, so two
// naming paths that agree on a final name share one cached connection.
type Resolver struct {
	profiles ProfileStore
}

// NewResolver creates a Resolver backed by the given profile store.
func NewResolver(profiles ProfileStore) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve returns the tenant database name for userID.
//
// Precedence: an explicit name stored on the profile wins (normalized
// to carry DBPrefix); otherwise the name is derived deterministically
// as DBPrefix + userID. A missing profile is not an error here - the
// auth layer has already validated the identity - it just means no
// explicit name was ever stored.
func (r *Resolver) Resolve(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}

	p, err := r.profiles.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return DBPrefix + userID, nil
		}
		return "", fmt.Errorf("profile lookup for user %q: %w", userID, err)
	}

	if p != nil && p.TenantDBName != "" {
		return NormalizeDBName(p.TenantDBName), nil
	}

	return DBPrefix + userID, nil
}

// NormalizeDBName ensures a stored tenant database name carries
// DBPrefix, so a bare identifier and a prefixed one resolve identically.
func NormalizeDBName(name string) string {
	if strings.HasPrefix(name, DBPrefix) {
		return name
	}
	return DBPrefix + name
}
