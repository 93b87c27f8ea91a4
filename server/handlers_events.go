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
	"sort"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aifarm/backend/tenant"
)

type eventRequest struct {
	Kind       string     `json:"kind"`
	Date       *time.Time `json:"date"`
	Notes      string     `json:"notes"`
	Medication string     `json:"medication"`
	Dosage     string     `json:"dosage"`
	SireTag    string     `json:"sire_tag"`
}

// eventCollection maps an event kind onto its collection.
func eventCollection(kind string) string {
	if kind == EventKindBreeding {
		return tenant.CollectionBreedingEvents
	}
	return tenant.CollectionHealthEvents
}

// listAnimalEvents returns the merged health and breeding history of
// one animal, newest first.
func (a *API) listAnimalEvents(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	animalID := mux.Vars(r)["id"]
	kind := r.URL.Query().Get("kind")

	collections := []string{tenant.CollectionHealthEvents, tenant.CollectionBreedingEvents}
	switch kind {
	case EventKindHealth:
		collections = []string{tenant.CollectionHealthEvents}
	case EventKindBreeding:
		collections = []string{tenant.CollectionBreedingEvents}
	case "":
	default:
		a.writeError(w, r, http.StatusBadRequest, "invalid event kind", nil)
		return
	}

	events := []AnimalEvent{}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	for _, col := range collections {
		cursor, err := h.Collection(col).Find(r.Context(), bson.M{"animalId": animalID}, opts)
		if err != nil {
			a.writeError(w, r, http.StatusInternalServerError, "failed to list events", err)
			return
		}
		batch := []AnimalEvent{}
		if err := cursor.All(r.Context(), &batch); err != nil {
			a.writeError(w, r, http.StatusInternalServerError, "failed to decode events", err)
			return
		}
		events = append(events, batch...)
	}

	// Each collection is sorted on its own; merge order across the two
	// still needs fixing up.
	sort.Slice(events, func(i, j int) bool {
		return events[i].Date.After(events[j].Date)
	})

	writeJSON(w, http.StatusOK, events)
}

func (a *API) createAnimalEvent(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	animalID := mux.Vars(r)["id"]

	var req eventRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Kind != EventKindHealth && req.Kind != EventKindBreeding {
		a.writeError(w, r, http.StatusBadRequest, "kind must be health or breeding", nil)
		return
	}

	count, err := h.Collection(tenant.CollectionLivestock).CountDocuments(r.Context(), bson.M{"_id": animalID})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to load animal", err)
		return
	}
	if count == 0 {
		a.writeError(w, r, http.StatusNotFound, "animal not found", nil)
		return
	}

	now := time.Now().UTC()
	event := AnimalEvent{
		ID:         newID(),
		AnimalID:   animalID,
		Kind:       req.Kind,
		Date:       now,
		Notes:      req.Notes,
		Medication: req.Medication,
		Dosage:     req.Dosage,
		SireTag:    req.SireTag,
		CreatedAt:  now,
	}
	if req.Date != nil {
		event.Date = *req.Date
	}

	if _, err := h.Collection(eventCollection(req.Kind)).InsertOne(r.Context(), event); err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to record event", err)
		return
	}

	a.log.Info(h.Name(), requestIDFrom(r), "event recorded", map[string]interface{}{
		"animal_id": animalID, "kind": req.Kind,
	})
	writeJSON(w, http.StatusCreated, event)
}
