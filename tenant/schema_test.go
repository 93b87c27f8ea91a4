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
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsNamespaceExists(t *testing.T) {
	exists := mongo.CommandError{Code: namespaceExistsCode, Name: "NamespaceExists"}
	if !isNamespaceExists(exists) {
		t.Error("code 48 must be treated as collection-already-exists")
	}

	unauthorized := mongo.CommandError{Code: 13, Name: "Unauthorized"}
	if isNamespaceExists(unauthorized) {
		t.Error("other server errors must not be swallowed")
	}

	if isNamespaceExists(errors.New("dial tcp: refused")) {
		t.Error("non-server errors must not be swallowed")
	}

	wrapped := fmt.Errorf("create collection: %w", mongo.CommandError{Code: namespaceExistsCode})
	if !isNamespaceExists(wrapped) {
		t.Error("wrapped code 48 must still be recognized")
	}
}

func TestCollectionsAreStaticAndComplete(t *testing.T) {
	specs := Collections()

	want := []string{
		CollectionLivestock,
		CollectionHealthEvents,
		CollectionBreedingEvents,
		CollectionAttendance,
		CollectionStock,
		CollectionChatMessages,
	}
	if len(specs) != len(want) {
		t.Fatalf("expected %d collections, got %d", len(want), len(specs))
	}

	seen := make(map[string]bool)
	for _, s := range specs {
		if s.Name == "" {
			t.Fatal("collection with empty name")
		}
		if seen[s.Name] {
			t.Fatalf("duplicate collection %q", s.Name)
		}
		seen[s.Name] = true
	}
	for _, name := range want {
		if !seen[name] {
			t.Errorf("missing collection %q", name)
		}
	}

	// Two calls must declare the identical set: the schema is static,
	// applied the same way to every new connection.
	again := Collections()
	for i := range specs {
		if specs[i].Name != again[i].Name {
			t.Fatalf("collection order changed between calls: %q vs %q", specs[i].Name, again[i].Name)
		}
	}
}
