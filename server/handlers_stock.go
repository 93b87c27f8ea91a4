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
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aifarm/backend/tenant"
)

type stockItemRequest struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

type stockAdjustRequest struct {
	Delta float64 `json:"delta"`
}

func (a *API) listStock(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	filter := bson.M{}
	if category := r.URL.Query().Get("category"); category != "" {
		filter["category"] = category
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := h.Collection(tenant.CollectionStock).Find(r.Context(), filter, opts)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to list stock", err)
		return
	}

	items := []StockItem{}
	if err := cursor.All(r.Context(), &items); err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to decode stock", err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (a *API) createStockItem(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	var req stockItemRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		a.writeError(w, r, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.Quantity < 0 {
		a.writeError(w, r, http.StatusBadRequest, "quantity must not be negative", nil)
		return
	}

	item := StockItem{
		ID:        newID(),
		Name:      req.Name,
		Category:  req.Category,
		Unit:      req.Unit,
		Quantity:  req.Quantity,
		UpdatedAt: time.Now().UTC(),
	}

	_, err := h.Collection(tenant.CollectionStock).InsertOne(r.Context(), item)
	if mongo.IsDuplicateKeyError(err) {
		a.writeError(w, r, http.StatusConflict, "stock item already exists", err)
		return
	}
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to create stock item", err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// adjustStockItem applies a signed quantity delta atomically.
func (a *API) adjustStockItem(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	id := mux.Vars(r)["id"]

	var req stockAdjustRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Delta == 0 {
		a.writeError(w, r, http.StatusBadRequest, "delta must not be zero", nil)
		return
	}

	filter := bson.M{"_id": id}
	if req.Delta < 0 {
		// Never let consumption drive the quantity below zero.
		filter["quantity"] = bson.M{"$gte": -req.Delta}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item StockItem
	err := h.Collection(tenant.CollectionStock).FindOneAndUpdate(r.Context(),
		filter,
		bson.M{
			"$inc": bson.M{"quantity": req.Delta},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		opts).Decode(&item)
	if err == mongo.ErrNoDocuments {
		a.writeError(w, r, http.StatusConflict, "stock item missing or insufficient quantity", nil)
		return
	}
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to adjust stock", err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (a *API) deleteStockItem(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	id := mux.Vars(r)["id"]

	res, err := h.Collection(tenant.CollectionStock).DeleteOne(r.Context(), bson.M{"_id": id})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to delete stock item", err)
		return
	}
	if res.DeletedCount == 0 {
		a.writeError(w, r, http.StatusNotFound, "stock item not found", nil)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}
