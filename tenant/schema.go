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

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection name constants. Use these instead of magic strings when
// referencing tenant collections.
const (
	CollectionLivestock      = "livestock"
	CollectionHealthEvents   = "health_events"
	CollectionBreedingEvents = "breeding_events"
	CollectionAttendance     = "attendance"
	CollectionStock          = "stock_items"
	CollectionChatMessages   = "chat_messages"
)

// namespaceExistsCode is the MongoDB server error for creating a
// collection that already exists.
const namespaceExistsCode = 48

// CollectionSpec declares one collection of the tenant schema:
// its name, an optional $jsonSchema validator, and its indexes.
type CollectionSpec struct {
	Name      string
	Validator bson.M
	Indexes   []mongo.IndexModel
}

// Collections returns the full static schema set applied identically
// to every tenant database at connection time. Keep this list in sync
// with the document types in the server package.
func Collections() []CollectionSpec {
	asc := int32(1)
	desc := int32(-1)
	unique := true

	return []CollectionSpec{
		{
			Name: CollectionLivestock,
			Validator: bson.M{
				"$jsonSchema": bson.M{
					"bsonType": "object",
					"required": []string{"tag", "species"},
				},
			},
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "tag", Value: asc}}, Options: options.Index().SetUnique(unique)},
				{Keys: bson.D{{Key: "status", Value: asc}}},
			},
		},
		{
			Name: CollectionHealthEvents,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "animalId", Value: asc}, {Key: "date", Value: desc}}},
			},
		},
		{
			Name: CollectionBreedingEvents,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "animalId", Value: asc}, {Key: "date", Value: desc}}},
			},
		},
		{
			Name: CollectionAttendance,
			Validator: bson.M{
				"$jsonSchema": bson.M{
					"bsonType": "object",
					"required": []string{"staffId", "date"},
				},
			},
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "staffId", Value: asc}, {Key: "date", Value: desc}}},
				{Keys: bson.D{{Key: "date", Value: desc}}},
			},
		},
		{
			Name: CollectionStock,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "name", Value: asc}}, Options: options.Index().SetUnique(unique)},
				{Keys: bson.D{{Key: "category", Value: asc}}},
			},
		},
		{
			Name: CollectionChatMessages,
			Indexes: []mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: asc}}},
			},
		},
	}
}

// EnsureSchema creates every declared collection and its indexes on
// the handle's database, so an empty tenant still exposes a browsable,
// fully shaped database. A collection that already exists is fine;
// any other failure aborts the whole attempt.
func EnsureSchema(ctx context.Context, h *Handle, specs []CollectionSpec) error {
	db := h.Database()

	for _, spec := range specs {
		opts := options.CreateCollection()
		if spec.Validator != nil {
			opts.SetValidator(spec.Validator)
		}

		if err := db.CreateCollection(ctx, spec.Name, opts); err != nil {
			if !isNamespaceExists(err) {
				return NewSchemaError(h.Name(), spec.Name, "failed to create collection", err)
			}
		}

		if len(spec.Indexes) == 0 {
			continue
		}
		// CreateMany is idempotent for identical index definitions.
		if _, err := db.Collection(spec.Name).Indexes().CreateMany(ctx, spec.Indexes); err != nil {
			return NewSchemaError(h.Name(), spec.Name, "failed to create indexes", err)
		}
	}

	return nil
}

// isNamespaceExists reports whether err is the server telling us the
// collection is already there.
func isNamespaceExists(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(namespaceExistsCode)
	}
	return false
}
