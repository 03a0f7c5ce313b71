// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for reading request bodies. API clients
// send JSON while the server-rendered forms post url-encoded data; handlers
// read both through the same parser.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/services"
)

// ErrInvalidBody is returned when a request body cannot be decoded.
var ErrInvalidBody = errors.New("invalid request body")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(r.Body)
	}
	return p
}

// Parse decodes the body as JSON when it looks like a JSON object and as a
// form otherwise. Read errors, including an exceeded body limit, are
// returned as is.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("%w: %v", ErrInvalidBody, err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", ErrInvalidBody, p.err)
	}
	return p.err
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	return sanitizeInput(p.GetRaw(key))
}

// GetRaw returns a value without trimming or sanitizing. Passwords are read
// this way.
func (p *RequestBodyParser) GetRaw(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return stringValue(val)
		}
		return ""
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// Has reports whether key was sent, even with an empty or null value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

// Int64Ptr returns key as an integer, nil when it is absent, empty or null.
func (p *RequestBodyParser) Int64Ptr(key string) (*int64, error) {
	v := p.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &n, nil
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// Registration reads the sign-up fields.
func (p *RequestBodyParser) Registration() core.Registration {
	return core.Registration{
		Username: p.Get("username"),
		Email:    p.Get("email"),
		Password: p.GetRaw("password"),
	}
}

// CategoryInput reads every writable category field. A parent_id that is
// not a number is reported as a validation error.
func (p *RequestBodyParser) CategoryInput() (core.CategoryInput, error) {
	parent, err := p.Int64Ptr("parent_id")
	if err != nil {
		return core.CategoryInput{}, core.ValidationErrors{"parent_id": core.MsgCategoryParent}
	}
	return core.CategoryInput{
		Name:     p.Get("name"),
		Icon:     p.Get("icon"),
		Color:    p.Get("color"),
		Type:     core.CategoryType(strings.ToLower(p.Get("type"))),
		ParentID: parent,
	}, nil
}

// CategoryPatch reads the category fields present in the body. A null or
// empty parent_id detaches the category from its parent.
func (p *RequestBodyParser) CategoryPatch() (services.CategoryPatch, error) {
	var patch services.CategoryPatch
	str := func(key string) *string {
		if !p.Has(key) {
			return nil
		}
		v := p.Get(key)
		return &v
	}
	patch.Name = str("name")
	patch.Icon = str("icon")
	patch.Color = str("color")
	if t := str("type"); t != nil {
		ct := core.CategoryType(strings.ToLower(*t))
		patch.Type = &ct
	}
	if p.Has("parent_id") {
		parent, err := p.Int64Ptr("parent_id")
		if err != nil {
			return services.CategoryPatch{}, core.ValidationErrors{"parent_id": core.MsgCategoryParent}
		}
		patch.ParentID = parent
		patch.ClearParent = parent == nil
	}
	return patch, nil
}
