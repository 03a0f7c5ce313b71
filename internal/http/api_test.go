package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/config"
)

func (e *testEnv) api(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(req)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestAPIRegister(t *testing.T) {
	env := newTestEnv(t)
	body := `{"username":"maria","email":"Maria@Example.com","password":"Secreta123"}`

	rr := env.api(http.MethodPost, "/api/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "Usuario registrado exitosamente", decode[ErrorBody](t, rr).Message)

	rr = env.api(http.MethodPost, "/api/register/", body, "")
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "El usuario ya existe", decode[ErrorBody](t, rr).Message)

	rr = env.api(http.MethodPost, "/api/register", `{"username":"x","email":""}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Todos los campos son obligatorios", decode[ErrorBody](t, rr).Message)

	rr = env.api(http.MethodPost, "/api/register", `{"username":"jo","email":"jo@example.com","password":"short"}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decode[ErrorBody](t, rr)
	assert.Contains(t, resp.Errors, "username")
	assert.Contains(t, resp.Errors, "password")

	rr = env.api(http.MethodPost, "/api/register", `{"username":`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPIRegisterAcceptsForms(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader("username=pablo&email=pablo%40example.com&password=Secreta123"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusCreated, env.do(req).Code)
}

func TestAPILogin(t *testing.T) {
	env := newTestEnv(t)
	u, _ := env.user(t, "ana")

	rr := env.api(http.MethodPost, "/api/login", `{"email":"ANA@example.com","password":"Secreta123"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sess := decode[SessionJSON](t, rr)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, UserJSON{ID: u.ID, Username: "ana", Email: "ana@example.com"}, sess.User)
	assert.Nil(t, sess.IsNewUser)

	rr = env.api(http.MethodPost, "/api/login", `{"email":"ana@example.com","password":"Wrong1234"}`, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Credenciales inválidas", decode[ErrorBody](t, rr).Message)

	rr = env.api(http.MethodPost, "/api/login", `{"email":"nobody@example.com","password":"Wrong1234"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.api(http.MethodPost, "/api/login", `{"email":"ana@example.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPIGoogle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.api(http.MethodPost, "/api/google", `{"token":"google-ok"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sess := decode[SessionJSON](t, rr)
	require.NotNil(t, sess.IsNewUser)
	assert.True(t, *sess.IsNewUser)
	assert.Equal(t, "luis@example.com", sess.User.Email)

	rr = env.api(http.MethodPost, "/api/google", `{"token":"google-ok"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	sess = decode[SessionJSON](t, rr)
	require.NotNil(t, sess.IsNewUser)
	assert.False(t, *sess.IsNewUser)

	rr = env.api(http.MethodPost, "/api/google", `{"token":"forged"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Accounts created through Google have no password.
	rr = env.api(http.MethodPost, "/api/login", `{"email":"luis@example.com","password":"Secreta123"}`, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decode[ErrorBody](t, rr).Message, "Google")
}

func TestAPICategoriesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.api(http.MethodGet, "/api/categories", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Debes iniciar sesión para continuar.", decode[ErrorBody](t, rr).Message)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))

	rr = env.api(http.MethodGet, "/api/categories", "", "garbage")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid token", decode[ErrorBody](t, rr).Message)
}

func TestAPICategoryLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "ana")
	_, otherToken := env.user(t, "beto")

	rr := env.api(http.MethodGet, "/api/categories", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())

	rr = env.api(http.MethodPost, "/api/categories/create/", `{"name":"Comida","color":"#ff0000","type":"expense"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	food := decode[CategoryJSON](t, rr)
	assert.Equal(t, "Comida", food.Name)
	assert.Nil(t, food.ParentID)

	rr = env.api(http.MethodPost, "/api/categories/create",
		`{"name":"Restaurantes","parent_id":`+strconv.FormatInt(food.ID, 10)+`}`, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	sub := decode[CategoryJSON](t, rr)
	require.NotNil(t, sub.ParentID)
	assert.Equal(t, food.ID, *sub.ParentID)
	assert.Equal(t, "expense", sub.Type)

	rr = env.api(http.MethodPost, "/api/categories/create", `{"name":"Comida"}`, token)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Ya existe una categoría con ese nombre", decode[ErrorBody](t, rr).Errors["name"])

	subPath := "/api/categories/" + strconv.FormatInt(sub.ID, 10)

	rr = env.api(http.MethodPatch, subPath, `{"icon":"🍝"}`, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	patched := decode[CategoryJSON](t, rr)
	assert.Equal(t, "🍝", patched.Icon)
	assert.Equal(t, "Restaurantes", patched.Name)
	require.NotNil(t, patched.ParentID)

	rr = env.api(http.MethodPatch, subPath, `{"parent_id":null}`, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode[CategoryJSON](t, rr).ParentID)

	rr = env.api(http.MethodPut, subPath, `{"name":"Cenas","type":"expense"}`, token)
	require.Equal(t, http.StatusOK, rr.Code)
	replaced := decode[CategoryJSON](t, rr)
	assert.Equal(t, "Cenas", replaced.Name)
	assert.Empty(t, replaced.Icon)

	rr = env.api(http.MethodPatch, subPath, `{"type":"gift"}`, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.api(http.MethodPatch, subPath, `{"name":"Robada"}`, otherToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.api(http.MethodGet, "/api/categories", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]CategoryJSON](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, "Cenas", list[0].Name)
	assert.Equal(t, "Comida", list[1].Name)

	rr = env.api(http.MethodDelete, subPath+"/delete", "", otherToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.api(http.MethodDelete, subPath+"/delete", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Categoría eliminada", decode[ErrorBody](t, rr).Message)

	rr = env.api(http.MethodDelete, subPath+"/delete", "", token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.api(http.MethodDelete, "/api/categories/abc/delete", "", token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIUnknownEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.api(http.MethodGet, "/api/nope", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestAPIBodyLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.MaxBodySize = 1024 })
	body := `{"username":"` + strings.Repeat("a", 2048) + `"}`
	rr := env.api(http.MethodPost, "/api/register", body, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestAPISignInIsRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.AuthRateLimit = 2 })
	body := `{"email":"ana@example.com","password":"Wrong1234"}`

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, env.api(http.MethodPost, "/api/login", body, "").Code)
	}
	rr := env.api(http.MethodPost, "/api/login", body, "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, decode[ErrorBody](t, rr).Message, "Demasiadas")

	assert.Contains(t, env.get("/metrics", "").Body.String(), "finanzas_rate_limited_total 1")
}
