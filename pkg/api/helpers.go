// Package api provides standardized helper functions for HTTP API responses.
package api

import (
	"encoding/json"
	"net/http"
)

// JSON writes v with the given status. A nil v sends headers only.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// The status line is already out; an encode failure can only truncate the body.
	_ = json.NewEncoder(w).Encode(v)
}

// OK answers a mutation RPC that has nothing to return.
func OK(w http.ResponseWriter) {
	JSON(w, http.StatusOK, SuccessResponse{Success: SuccessOK})
}

// Created answers a create RPC with the summary of the new node.
func Created(w http.ResponseWriter, id any, topic, hyperLink string) {
	JSON(w, http.StatusOK, CreateResponse{
		Success:   SuccessOK,
		ID:        id,
		Topic:     topic,
		HyperLink: hyperLink,
	})
}

// Error sends the error envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}
