// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON API
// responses, so every endpoint writes the same error shape.

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"finanzas/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Message sets a {"message": ...} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Body(ErrorBody{Message: msg})
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

// ErrorBody is the shape of every API error. Errors maps field names to
// localized messages.
type ErrorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string, fields map[string]string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Message: message, Errors: fields})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string, fields map[string]string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message, fields)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message, nil)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message, nil)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message, nil)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message, nil)
}

// UserJSON is the public view of an account.
type UserJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func userJSON(u core.User) UserJSON {
	return UserJSON{ID: u.ID, Username: u.Username, Email: u.Email}
}

// SessionJSON is returned by the sign-in endpoints.
type SessionJSON struct {
	Token     string   `json:"token"`
	User      UserJSON `json:"user"`
	IsNewUser *bool    `json:"isNewUser,omitempty"`
}

// CategoryJSON is the API view of a category.
type CategoryJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	Type      string    `json:"type"`
	ParentID  *int64    `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
}

func categoryJSON(c core.Category) CategoryJSON {
	return CategoryJSON{
		ID:        c.ID,
		Name:      c.Name,
		Icon:      c.Icon,
		Color:     c.Color,
		Type:      string(c.Type),
		ParentID:  c.ParentID,
		CreatedAt: c.CreatedAt,
	}
}

func categoriesJSON(cats []core.Category) []CategoryJSON {
	out := make([]CategoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON(c))
	}
	return out
}
