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
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aifarm/backend/tenant"
)

const chatHistoryLimit = 50

// Responder produces the assistant reply for one user message. The
// production deployment plugs a model-backed implementation in here;
// the default keeps the endpoint functional without one.
type Responder interface {
	Respond(ctx context.Context, history []ChatMessage, message string) (string, error)
}

// StaticResponder answers from a small set of canned farm-assistant
// replies keyed on message keywords.
type StaticResponder struct{}

func NewStaticResponder() *StaticResponder {
	return &StaticResponder{}
}

func (s *StaticResponder) Respond(_ context.Context, _ []ChatMessage, message string) (string, error) {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "vaccin"):
		return "Log vaccinations as health events on each animal so the history stays searchable. Check the medication stock level before scheduling a round.", nil
	case strings.Contains(lower, "feed") || strings.Contains(lower, "stock"):
		return "Current feed levels are on the stock page. Use a negative adjustment when you consume stock so quantities stay accurate.", nil
	case strings.Contains(lower, "breed"):
		return "Record breeding events with the sire tag so lineage can be traced later from the animal's event history.", nil
	default:
		return fmt.Sprintf("I can help with livestock records, health and breeding events, attendance, and stock. Could you tell me more about %q?", message), nil
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply   ChatMessage   `json:"reply"`
	History []ChatMessage `json:"history"`
}

func (a *API) listChatHistory(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	history, err := a.chatHistory(r.Context(), h)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to load chat history", err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) postChatMessage(w http.ResponseWriter, r *http.Request, h *tenant.Handle) {
	var req chatRequest
	if err := readJSON(r, &req); err != nil {
		a.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		a.writeError(w, r, http.StatusBadRequest, "message is required", nil)
		return
	}

	history, err := a.chatHistory(r.Context(), h)
	if err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to load chat history", err)
		return
	}

	userMsg := ChatMessage{
		ID:        newID(),
		Role:      ChatRoleUser,
		Content:   req.Message,
		CreatedAt: time.Now().UTC(),
	}

	answer, err := a.chat.Respond(r.Context(), history, req.Message)
	if err != nil {
		a.writeError(w, r, http.StatusBadGateway, "assistant unavailable", err)
		return
	}

	reply := ChatMessage{
		ID:        newID(),
		Role:      ChatRoleAssistant,
		Content:   answer,
		CreatedAt: time.Now().UTC(),
	}

	coll := h.Collection(tenant.CollectionChatMessages)
	if _, err := coll.InsertMany(r.Context(), []interface{}{userMsg, reply}); err != nil {
		a.writeError(w, r, http.StatusInternalServerError, "failed to store chat messages", err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:   reply,
		History: append(history, userMsg, reply),
	})
}

// chatHistory returns the most recent messages in chronological order.
func (a *API) chatHistory(ctx context.Context, h *tenant.Handle) ([]ChatMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(chatHistoryLimit)
	cursor, err := h.Collection(tenant.CollectionChatMessages).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	messages := []ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// Reverse from newest-first query order to oldest-first display order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
