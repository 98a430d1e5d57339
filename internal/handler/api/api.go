// Copyright (c) 2026 Newsroomkit Contributors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST handlers of the publication service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/newsroomkit/publisher/internal/publisher"
	"github.com/newsroomkit/publisher/internal/store"
)

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	publisher *publisher.Publisher
	queries   *store.Queries
	logger    *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(pub *publisher.Publisher, queries *store.Queries, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{publisher: pub, queries: queries, logger: logger}
}

// Response is the standard API response envelope.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	WriteJSON(w, statusCode, Response{Status: "success", Message: message, Data: data})
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Response{Status: "error", Message: message})
}
