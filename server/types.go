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

import "time"

// Animal is one livestock record. Tag is the physical ear-tag number,
// unique per tenant.
type Animal struct {
	ID        string     `bson:"_id" json:"id"`
	Tag       string     `bson:"tag" json:"tag"`
	Species   string     `bson:"species" json:"species"`
	Breed     string     `bson:"breed,omitempty" json:"breed,omitempty"`
	Sex       string     `bson:"sex,omitempty" json:"sex,omitempty"`
	BirthDate *time.Time `bson:"birthDate,omitempty" json:"birth_date,omitempty"`
	Status    string     `bson:"status" json:"status"`
	PhotoKey  string     `bson:"photoKey,omitempty" json:"-"`
	PhotoURL  string     `bson:"-" json:"photo_url,omitempty"`
	CreatedAt time.Time  `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updated_at"`
}

// Animal status values.
const (
	AnimalStatusActive   = "active"
	AnimalStatusSold     = "sold"
	AnimalStatusDeceased = "deceased"
)

// Event kinds.
const (
	EventKindHealth   = "health"
	EventKindBreeding = "breeding"
)

// AnimalEvent is one health or breeding event logged against an animal.
// Medication and Dosage apply to health events, SireTag to breeding.
type AnimalEvent struct {
	ID         string    `bson:"_id" json:"id"`
	AnimalID   string    `bson:"animalId" json:"animal_id"`
	Kind       string    `bson:"kind" json:"kind"`
	Date       time.Time `bson:"date" json:"date"`
	Notes      string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Medication string    `bson:"medication,omitempty" json:"medication,omitempty"`
	Dosage     string    `bson:"dosage,omitempty" json:"dosage,omitempty"`
	SireTag    string    `bson:"sireTag,omitempty" json:"sire_tag,omitempty"`
	CreatedAt  time.Time `bson:"createdAt" json:"created_at"`
}

// AttendanceRecord is one staff check-in, optionally closed by a
// check-out. Date is the calendar day in YYYY-MM-DD for day queries.
type AttendanceRecord struct {
	ID        string     `bson:"_id" json:"id"`
	StaffID   string     `bson:"staffId" json:"staff_id"`
	StaffName string     `bson:"staffName,omitempty" json:"staff_name,omitempty"`
	Date      string     `bson:"date" json:"date"`
	CheckIn   time.Time  `bson:"checkIn" json:"check_in"`
	CheckOut  *time.Time `bson:"checkOut,omitempty" json:"check_out,omitempty"`
}

// StockItem is one feed/medicine/supply line with its current quantity.
type StockItem struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Category  string    `bson:"category,omitempty" json:"category,omitempty"`
	Unit      string    `bson:"unit,omitempty" json:"unit,omitempty"`
	Quantity  float64   `bson:"quantity" json:"quantity"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updated_at"`
}

// Chat roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry of the assistant conversation history.
type ChatMessage struct {
	ID        string    `bson:"_id" json:"id"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"createdAt" json:"created_at"`
}
