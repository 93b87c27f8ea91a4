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

// dayFormat is the calendar-day key used for attendance queries.
const dayFormat = "2006-01-02"

type checkInRequest struct {
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
}

func (a *API) listAttendance(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	day := r.URL.Query().Get("date")
	if day == "" {
		day = time.Now().UTC().Format(dayFormat)
	} else if _, err := time.Parse(dayFormat, day); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD", err)
		return
	}

	opts := options.Find().SetSort(bson.D{{Key: "checkIn", Value: 1}})
	cursor, err := h.Collection(tenant.CollectionAttendance).Find(r.Context(), bson.M{"date": day}, opts)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to list attendance", err)
		return
	}

	records := []AttendanceRecord{}
	if err := cursor.All(r.Context(), &records); err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to decode attendance", err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (a *API) checkIn(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	var req checkInRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.StaffID == "" {
		a.writeError(w, r, http.StatusBadRequest, "staff_id is required", nil)
		return
	}

	now := time.Now().UTC()
	day := now.Format(dayFormat)

	// One open record per staff member per day.
	count, err := h.Collection(tenant.CollectionAttendance).CountDocuments(r.Context(), bson.M{
		"staffId":  req.StaffID,
		"date":     day,
		"checkOut": nil,
	})
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to check attendance", err)
		return
	}
	if count > 0 {
		a.writeError(w, r, http.StatusConflict, "staff member is already checked in", nil)
		return
	}

	record := AttendanceRecord{
		ID:        newID(),
		StaffID:   req.StaffID,
		StaffName: req.StaffName,
		Date:      day,
		CheckIn:   now,
	}

	if _, err := h.Collection(tenant.CollectionAttendance).InsertOne(r.Context(), record); err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to record check-in", err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

func (a *API) checkOut(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	id := mux.Vars(r)["id"]
	now := time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record AttendanceRecord
	err := h.Collection(tenant.CollectionAttendance).FindOneAndUpdate(r.Context(),
		bson.M{"_id": id, "checkOut": nil},
		bson.M{"$set": bson.M{"checkOut": now}},
		opts).Decode(&record)
	if err == mongo.ErrNoDocuments {
		a.writeError(w, r, http.StatusNotFound, "open attendance record not found", nil)
		return
	}
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to record check-out", err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}
