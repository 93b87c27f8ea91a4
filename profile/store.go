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

// Package profile stores user accounts in the shared admin database.
// Profiles are the tenant resolver's lookup collaborator: each account
// carries the explicit tenant database name assigned at signup.
// Accounts created before explicit naming have no stored name and fall
// back to the derived one.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aifarm/backend/tenant"
)

const (
	// AdminDatabase is the shared (non-tenant) database holding accounts.
	AdminDatabase = "AI_FARM_admin"
	// usersCollection holds one document per registered account.
	usersCollection = "users"
)

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("profile: email already registered")

// User is one registered account. ID is the tenant identifier: opaque,
// assigned at signup, never reused.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name,omitempty" json:"name,omitempty"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	TenantDBName string    `bson:"tenantDbName,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"`
}

// Store is a mongo-backed account store implementing tenant.ProfileStore.
type Store struct {
	users *mongo.Collection
}

// NewStore creates a Store over the admin database.
func NewStore(db *mongo.Database) *Store {
	return &Store{users: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index. Called once at startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: int32(1)}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("profile: failed to ensure indexes: %w", err)
	}
	return nil
}

// Lookup implements tenant.ProfileStore.
func (s *Store) Lookup(ctx context.Context, userID string) (*tenant.Profile, error) {
	var doc User
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("user %q: %w", userID, tenant.ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profile: lookup %q: %w", userID, err)
	}
	return &tenant.Profile{ID: doc.ID, TenantDBName: doc.TenantDBName}, nil
}

// FindByEmail returns the account registered under email, or
// tenant.ErrProfileNotFound.
func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	var doc User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("email %q: %w", email, tenant.ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("profile: find by email: %w", err)
	}
	return &doc, nil
}

// Create inserts a new account. The caller assigns ID and the explicit
// tenant database name.
func (s *Store) Create(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("profile: create %q: %w", u.Email, err)
	}
	return nil
}
