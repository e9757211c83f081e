package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "localchat/backend/internal/errors"
)

// This file contains shared DTOs for API responses and helper functions for
// sending consistent HTTP responses, including the SSE framing used by the
// streaming relay endpoint.

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse defines a generic success response for operations that don't
// return a full resource.
type StatusResponse struct {
	Message string `json:"message"`
}

// respondWithError is the centralized error handling function for the API
// layer. It maps business-layer sentinel errors to HTTP status codes via
// errors.Is and formats a standard JSON error response.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, app_errors.ErrConflict):
		statusCode = http.StatusConflict
		message = err.Error()
	case errors.Is(err, app_errors.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = err.Error()
	case errors.Is(err, app_errors.ErrRateLimited):
		statusCode = http.StatusTooManyRequests
		message = err.Error()
	case errors.Is(err, app_errors.ErrUpstreamUnreachable):
		statusCode = http.StatusServiceUnavailable
		message = "Cannot connect to AI server"
	case errors.Is(err, app_errors.ErrUpstream):
		statusCode = http.StatusBadGateway
		message = "The AI server returned an error."
	default:
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	// The original, more detailed error is logged for debugging, while the
	// mapped message is what the client sees.
	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)

	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithJSON is a low-level helper for marshaling a payload to JSON
// and writing it to the http.ResponseWriter with a given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// streamDoneMarker is the terminal event of every streamed relay response.
// Streaming clients receive it no matter how the operation ends.
const streamDoneMarker = "[DONE]"

// beginStream sets the SSE headers for a streaming response.
func beginStream(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeStreamEvent marshals one event and writes it as a `data: <json>` SSE
// frame. A write failure is the signal that the client has disconnected.
func writeStreamEvent(w http.ResponseWriter, event interface{}) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal stream event", "error", err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// writeStreamDone writes the literal terminal marker frame.
func writeStreamDone(w http.ResponseWriter) {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", streamDoneMarker); err != nil {
		slog.Warn("Failed to write stream terminator, client might have disconnected", "error", err)
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
