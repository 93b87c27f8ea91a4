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
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aifarm/backend/media"
	"aifarm/backend/tenant"
)

// maxPhotoBytes bounds uploaded photo size (8 MiB).
const maxPhotoBytes = 8 << 20

type animalRequest struct {
	Tag       string     `json:"tag"`
	Species   string     `json:"species"`
	Breed     string     `json:"breed"`
	Sex       string     `json:"sex"`
	BirthDate *time.Time `json:"birth_date"`
	Status    string     `json:"status"`
}

func (req *animalRequest) validate() string {
	if req.Tag == "" {
		return "tag is required"
	}
	if req.Species == "" {
		return "species is required"
	}
	switch req.Status {
	case "", AnimalStatusActive, AnimalStatusSold, AnimalStatusDeceased:
		return ""
	}
	return "invalid status"
}

func (a *API) listLivestock(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if species := r.URL.Query().Get("species"); species != "" {
		filter["species"] = species
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := h.Collection(tenant.CollectionLivestock).Find(r.Context(), filter, opts)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to list livestock", err)
		return
	}
	defer func() { _ = cursor.Close(r.Context()) }()

	animals := []Animal{}
	if err := cursor.All(r.Context(), &animals); err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to decode livestock", err)
		return
	}

	writeJSON(w, http.StatusOK, animals)
}

func (a *API) getAnimal(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	id := mux.Vars(r)["id"]

	var animal Animal
	err := h.Collection(tenant.CollectionLivestock).FindOne(r.Context(), bson.M{"_id": id}).Decode(&animal)
	if err == mongo.ErrNoDocuments {
		a.writeError(w, r, http.StatusNotFound, "animal not found", nil)
		return
	}
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to load animal", err)
		return
	}

	if a.media != nil && animal.PhotoKey != "" {
		url, err := a.media.PresignGet(r.Context(), animal.PhotoKey)
		if err != nil {
			a.log.Warn(h.Name(), requestIDFrom(r), "failed to presign photo", map[string]interface{}{
				"animal_id": animal.ID, "error": err.Error(),
			})
		} else {
			animal.PhotoURL = url
		}
	}

	writeJSON(w, http.StatusOK, animal)
}

func (a *API) createAnimal(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	var req animalRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if msg := req.validate(); msg != "" {
		a.writeError(w, r, http.StatusBadRequest, msg, nil)
		return
	}

	now := time.Now().UTC()
	animal := Animal{
		ID:        newID(),
		Tag:       req.Tag,
		Species:   req.Species,
		Breed:     req.Breed,
		Sex:       req.Sex,
		BirthDate: req.BirthDate,
		Status:    req.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if animal.Status == "" {
		animal.Status = AnimalStatusActive
	}

	_, err := h.Collection(tenant.CollectionLivestock).InsertOne(r.Context(), animal)
	if mongo.IsDuplicateKeyError(err) {
		a.writeError(w, r, http.StatusConflict, "tag already in use", err)
		return
	}
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to create animal", err)
		return
	}

	a.log.Info(h.Name(), requestIDFrom(r), "animal created", map[string]interface{}{
		"animal_id": animal.ID, "tag": animal.Tag,
	})
	writeJSON(w, http.StatusCreated, animal)
}

func (a *API) updateAnimal(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	id := mux.Vars(r)["id"]

	var req animalRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if msg := req.validate(); msg != "" {
		a.writeError(w, r, http.StatusBadRequest, msg, nil)
		return
	}

	update := bson.M{"$set": bson.M{
		"tag":       req.Tag,
		"species":   req.Species,
		"breed":     req.Breed,
		"sex":       req.Sex,
		"birthDate": req.BirthDate,
		"status":    req.Status,
		"updatedAt": time.Now().UTC(),
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var animal Animal
	err := h.Collection(tenant.CollectionLivestock).
		FindOneAndUpdate(r.Context(), bson.M{"_id": id}, update, opts).Decode(&animal)
	if err == mongo.ErrNoDocuments {
		a.writeError(w, r, http.StatusNotFound, "animal not found", nil)
		return
	}
	if mongo.IsDuplicateKeyError(err) {
		a.writeError(w, r, http.StatusConflict, "tag already in use", err)
		return
	}
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to update animal", err)
		return
	}

	writeJSON(w, http.StatusOK, animal)
}

func (a *API) deleteAnimal(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	id := mux.Vars(r)["id"]

	res, err := h.Collection(tenant.CollectionLivestock).DeleteOne(r.Context(), bson.M{"_id": id})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to delete animal", err)
		return
	}
	if res.DeletedCount == 0 {
		a.writeError(w, r, http.StatusNotFound, "animal not found", nil)
		return
	}

	// Event history goes with the animal.
	for _, col := range []string{tenant.CollectionHealthEvents, tenant.CollectionBreedingEvents} {
		if _, err := h.Collection(col).DeleteMany(r.Context(), bson.M{"animalId": id}); err != nil {
			a.log.Warn(h.Name(), requestIDFrom(r), "failed to delete animal events", map[string]interface{}{
				"animal_id": id, "collection": col, "error": err.Error(),
			})
		}
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// uploadAnimalPhoto stores the request body on S3 under a per-tenant
// key and records the key on the animal.
func (a *API) uploadAnimalPhoto(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	if a.media == nil {
		a.writeError(w, r, http.StatusNotImplemented, "media storage not configured", nil)
		return
	}

	id := mux.Vars(r)["id"]

	count, err := h.Collection(tenant.CollectionLivestock).CountDocuments(r.Context(), bson.M{"_id": id})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to load animal", err)
		return
	}
	if count == 0 {
		a.writeError(w, r, http.StatusNotFound, "animal not found", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPhotoBytes+1))
	if err != nil {
		a.writeError(w, r, http.StatusBadRequest, "failed to read upload", err)
		return
	}
	if len(body) == 0 {
		a.writeError(w, r, http.StatusBadRequest, "empty upload", nil)
		return
	}
	if len(body) > maxPhotoBytes {
		a.writeError(w, r, http.StatusRequestEntityTooLarge, "photo too large", nil)
		return
	}

	key := media.ObjectKey(h.Name(), id, "photo")
	if err := a.media.Put(r.Context(), key, body, r.Header.Get("Content-Type")); err != nil {
		a.writeError(w, r, http.StatusBadGateway, "failed to store photo", err)
		return
	}

	_, err = h.Collection(tenant.CollectionLivestock).UpdateOne(r.Context(),
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"photoKey": key, "updatedAt": time.Now().UTC()}})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to record photo", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"photo_key": key})
}
