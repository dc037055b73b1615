// Package http provides the HTTP server, route guard and JSON handlers.
//
// This file implements a small builder for JSON responses and the single
// place where domain errors are mapped to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Client-facing messages. Internal errors never leak past these.
const (
	msgUnauthorized        = "Unauthorized"
	msgInternalError       = "Internal server error"
	msgNotFound            = "Transaction not found"
	msgFieldsRequired      = "All fields are required"
	msgCredentialsRequired = "Email and password are required"
	msgInvalidCredentials  = "Invalid credentials"
	msgUserNotFound        = "User not found"
	msgInvalidBody         = "Invalid request body"
	msgTooManyRequests     = "Too many requests. Please try again later."
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Body sets the value to be encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Message sets a {"message": msg} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Body(messageResponse{Message: msg})
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type createdResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type userResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Body(v).Write(w)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	NewJSONResponse().Status(status).Message(msg).Write(w)
}

// writeError maps err to a status code and a client-safe message and logs
// the full error server-side. notFoundMsg is used for core.ErrNotFound.
func writeError(w http.ResponseWriter, r *http.Request, err error, op, notFoundMsg string) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		logger.InfoContext(ctx, "Request rejected",
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeValidation,
			"field", verr.Field,
			"reason", verr.Reason)
		writeMessage(w, http.StatusBadRequest, validationMessage(verr))
	case errors.Is(err, core.ErrValidation):
		logger.InfoContext(ctx, "Request rejected",
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldError, err)
		writeMessage(w, http.StatusBadRequest, msgInvalidBody)
	case errors.Is(err, core.ErrAuth):
		logger.InfoContext(ctx, "Request unauthorized",
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeAuth,
			log.FieldError, err)
		writeMessage(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, core.ErrNotFound):
		logger.DebugContext(ctx, "Resource not found",
			log.FieldOperation, op,
			log.FieldErrorType, log.ErrorTypeNotFound)
		writeMessage(w, http.StatusNotFound, notFoundMsg)
	default:
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithErrorType(log.ErrorTypeInternal))
		writeMessage(w, http.StatusInternalServerError, msgInternalError)
	}
}

func validationMessage(verr *core.ValidationError) string {
	if verr.Reason == "is required" {
		return msgFieldsRequired
	}
	return verr.Error()
}
