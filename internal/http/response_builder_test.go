package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Message("ok").
		Write(w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"message":"ok"}`, strings.TrimSpace(w.Body.String()))
}

func TestJSONResponseBuilder_CustomHeader(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/categories/1").
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/categories/1", w.Header().Get("Location"))
	assert.Zero(t, w.Body.Len())
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *JSONResponseBuilder
		status  int
	}{
		{"bad request", BadRequestError("bad", map[string]string{"name": "required"}), http.StatusBadRequest},
		{"unauthorized", UnauthorizedError("bad"), http.StatusUnauthorized},
		{"not found", NotFoundError("bad"), http.StatusNotFound},
		{"conflict", ConflictError("bad"), http.StatusConflict},
		{"internal", InternalServerError("bad"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorBody
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, "bad", body.Message)
		})
	}
}

func TestErrorBodyOmitsEmptyFields(t *testing.T) {
	w := httptest.NewRecorder()
	NotFoundError("Categoría no encontrada").Write(w)

	assert.NotContains(t, w.Body.String(), "errors")
}

func TestCategoryJSON(t *testing.T) {
	parent := int64(2)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	out := categoriesJSON([]core.Category{
		{ID: 1, Name: "Comida", Type: core.CategoryExpense, CreatedAt: created},
		{ID: 3, Name: "Súper", Type: core.CategoryExpense, ParentID: &parent, CreatedAt: created},
	})

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	for _, part := range []string{
		`"id":1`, `"parent_id":null`, `"parent_id":2`, `"type":"expense"`, `"created_at":"2024-05-01T10:00:00Z"`,
	} {
		assert.Contains(t, string(raw), part)
	}

	empty := categoriesJSON(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
