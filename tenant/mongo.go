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
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultConnectTimeout is the default connection timeout
	DefaultConnectTimeout = 10 * time.Second
	// DefaultPingTimeout bounds the post-connect reachability check
	DefaultPingTimeout = 5 * time.Second
	// DefaultMaxPoolSize is the default maximum connection pool size
	DefaultMaxPoolSize = 100
	// DefaultMinPoolSize is the default minimum connection pool size
	DefaultMinPoolSize = 10
)

// Handle is an open, ready-to-query link to one tenant's database.
// It is owned by the Registry and shared read-only by every concurrent
// request for that tenant; the driver pools connections beneath it.
type Handle struct {
	client *mongo.Client
	db     *mongo.Database
	name   string
}

// NewHandle wraps an established client as a handle on the named
// database. client may be nil in tests that never issue queries.
func NewHandle(client *mongo.Client, dbName string) *Handle {
	h := &Handle{client: client, name: dbName}
	if client != nil {
		h.db = client.Database(dbName)
	}
	return h
}

// Name returns the tenant database name.
func (h *Handle) Name() string {
	return h.name
}

// Database returns the underlying mongo database.
func (h *Handle) Database() *mongo.Database {
	return h.db
}

// Collection returns a collection in the tenant database.
func (h *Handle) Collection(name string) *mongo.Collection {
	return h.db.Collection(name)
}

// Close disconnects the underlying client.
func (h *Handle) Close(ctx context.Context) error {
	if h.client == nil {
		return nil
	}
	return h.client.Disconnect(ctx)
}

// MongoDialerOptions holds options for creating a MongoDialer.
type MongoDialerOptions struct {
	// URI is the base cluster connection string (no database path);
	// credentials and hosts come from the environment.
	URI            string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
	AppName        string
}

// MongoDialer dials the shared MongoDB cluster and scopes a client to
// one tenant database per call.
type MongoDialer struct {
	opts MongoDialerOptions
}

// NewMongoDialer creates a MongoDialer for the given cluster URI.
func NewMongoDialer(opts MongoDialerOptions) *MongoDialer {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.MaxPoolSize == 0 {
		opts.MaxPoolSize = DefaultMaxPoolSize
	}
	if opts.MinPoolSize == 0 {
		opts.MinPoolSize = DefaultMinPoolSize
	}
	if opts.AppName == "" {
		opts.AppName = "aifarm-backend"
	}
	return &MongoDialer{opts: opts}
}

// Dial connects to the cluster, verifies reachability with a primary
// ping, and returns a handle scoped to dbName.
func (d *MongoDialer) Dial(ctx context.Context, dbName string) (*Handle, error) {
	clientOpts := options.Client().ApplyURI(d.opts.URI)
	clientOpts.SetMaxPoolSize(d.opts.MaxPoolSize)
	clientOpts.SetMinPoolSize(d.opts.MinPoolSize)
	clientOpts.SetConnectTimeout(d.opts.ConnectTimeout)
	clientOpts.SetAppName(d.opts.AppName)
	clientOpts.SetRetryWrites(true)
	clientOpts.SetRetryReads(true)

	connectCtx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, NewConnectionError(dbName, "Dial", "failed to connect to MongoDB", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, NewConnectionError(dbName, "Dial", "failed to ping MongoDB", err)
	}

	return NewHandle(client, dbName), nil
}
