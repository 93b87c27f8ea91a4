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

import "errors"

// ErrUnauthenticated is returned by Resolver.Resolve when the request
// carries no user identity. The auth middleware normally rejects such
// requests before they reach this package.
var ErrUnauthenticated = errors.New("tenant: no authenticated user identity")

// ErrProfileNotFound is returned by ProfileStore implementations when
// no profile exists for the given user id. The resolver treats it as
// "no explicit database name stored" and falls back to the derived name.
var ErrProfileNotFound = errors.New("tenant: profile not found")

// ConnectionError represents a failure to establish or verify a
// tenant database connection.
type ConnectionError struct {
	Database  string
	Operation string
	Message   string
	Cause     error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return e.Database + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Database + "." + e.Operation + ": " + e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError
func NewConnectionError(database, operation, message string, cause error) *ConnectionError {
	return &ConnectionError{
		Database:  database,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// SchemaError represents a failure while registering the collection
// schema on a freshly connected tenant database. "Collection already
// exists" conditions are never reported as a SchemaError; anything
// else fails the whole connection attempt.
type SchemaError struct {
	Database   string
	Collection string
	Message    string
	Cause      error
}

func (e *SchemaError) Error() string {
	if e.Cause != nil {
		return e.Database + "/" + e.Collection + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Database + "/" + e.Collection + ": " + e.Message
}

func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// NewSchemaError creates a new SchemaError
func NewSchemaError(database, collection, message string, cause error) *SchemaError {
	return &SchemaError{
		Database:   database,
		Collection: collection,
		Message:    message,
		Cause:      cause,
	}
}
