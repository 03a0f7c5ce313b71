package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"finanzas/internal/auth"
	"finanzas/internal/config"
	"finanzas/internal/core"
	"finanzas/internal/i18n"
	"finanzas/internal/services"
	"finanzas/internal/storage"
	"finanzas/internal/views"
	"finanzas/web"
)

type testEnv struct {
	srv    *Server
	store  *storage.MemoryStore
	tokens *auth.Tokens
}

func testConfig() *config.Config {
	return &config.Config{
		Port:            "0",
		MaxBodySize:     1 << 20,
		ViewLoadTimeout: 2 * time.Second,
		AuthRateLimit:   1000,
		LogFormat:       "text",
	}
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	site, err := views.LoadSite(web.RoutesFS, web.RoutesFile, web.TemplatesFS, "templates")
	require.NoError(t, err)
	bundle, err := i18n.New()
	require.NoError(t, err)
	tokens, err := auth.NewTokens("", time.Hour)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	google := auth.StaticVerifier{
		"google-ok": {Subject: "g-1", Email: "luis@example.com", Name: "Luis Pérez", EmailVerified: true},
	}
	accounts := services.NewAccountService(store, tokens, nil,
		services.WithGoogle(google), services.WithBcryptCost(bcrypt.MinCost))
	categories := services.NewCategoryService(store, nil, nil)

	srv, err := NewServer(Options{
		Config:     cfg,
		Site:       site,
		Accounts:   accounts,
		Categories: categories,
		Auth:       auth.NewAuthenticator(tokens, store),
		I18n:       bundle,
		Store:      store,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, store: store, tokens: tokens}
}

// user stores an account and returns a valid session token for it.
func (e *testEnv) user(t *testing.T, username string) (core.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("Secreta123", bcrypt.MinCost)
	require.NoError(t, err)
	u, err := e.store.CreateUser(context.Background(), core.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Provider:     core.ProviderLocal,
	})
	require.NoError(t, err)
	token, _, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	return e.do(req)
}

func (e *testEnv) postForm(path string, form url.Values, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	return e.do(req)
}

func document(t *testing.T, rr *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)
	return doc
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(Options{})
	assert.Error(t, err)

	_, err = NewServer(Options{Config: testConfig()})
	assert.Error(t, err)
}

func TestPublicPagesRender(t *testing.T) {
	env := newTestEnv(t)
	for path, component := range map[string]string{
		"/":             "home",
		"/features":     "features",
		"/about":        "about",
		"/contact":      "contact",
		"/login":        "login",
		"/register":     "register",
		"/auth-success": "auth_success",
	} {
		rr := env.get(path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Equal(t, 1, document(t, rr).Find("#app #view-"+component).Length(), path)
	}
}

func TestPathsMatchCaseInsensitivelyWithOptionalSlash(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/ABOUT", "/about/", "/About/"} {
		rr := env.get(path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, 1, document(t, rr).Find("#view-about").Length(), path)
	}
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "ana")

	for _, path := range []string{"/nope", "/Dashboard/budgets", "/Dashboard/goals"} {
		rr := env.get(path, token)
		require.Equal(t, http.StatusNotFound, rr.Code, path)
		doc := document(t, rr)
		assert.Equal(t, 1, doc.Find("#app #view-not_found").Length(), path)
		assert.Equal(t, 0, doc.Find("#view-main_page").Length(), path)
	}
}

func TestGuardedPagesRedirectAnonymousVisitors(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/Dashboard", "/budgets", "/goals", "/categories"} {
		rr := env.get(path, "")
		require.Equal(t, http.StatusSeeOther, rr.Code, path)
		assert.Equal(t, "/login?redirect="+url.QueryEscape(path), rr.Header().Get("Location"))
	}

	rr := env.get("/Dashboard", "not-a-token")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestDashboardRendersDefaultChildInShell(t *testing.T) {
	env := newTestEnv(t)
	u, token := env.user(t, "ana")
	_, err := env.srv.categories.Create(context.Background(), u.ID, core.CategoryInput{Name: "Comida"})
	require.NoError(t, err)

	rr := env.get("/Dashboard", token)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := document(t, rr)

	view := doc.Find("#view-main_page .dashboard-content #view-dashboard")
	require.Equal(t, 1, view.Length())
	assert.Contains(t, view.Text(), "ana")
	assert.Contains(t, view.Find(".stat").Text(), "1")
}

func TestAbsoluteChildrenRenderInShell(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "ana")

	for path, component := range map[string]string{
		"/budgets":    "budgets",
		"/goals":      "goals",
		"/categories": "categories",
	} {
		rr := env.get(path, token)
		require.Equal(t, http.StatusOK, rr.Code, path)
		doc := document(t, rr)
		assert.Equal(t, 1, doc.Find("#view-main_page .dashboard-content #view-"+component).Length(), path)
		assert.Equal(t, "page", doc.Find(`#view-main_page a[aria-current]`).AttrOr("aria-current", ""), path)
	}
}

func TestPageResponseHeaders(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "ana")

	rr := env.get("/goals", token)
	require.Equal(t, http.StatusOK, rr.Code)

	timing := rr.Header().Get("Server-Timing")
	for _, name := range []string{"resolve", "load", "render"} {
		assert.Contains(t, timing, name)
	}
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestLazyViewLoadsOnceAndCountsInMetrics(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "ana")

	lazy, ok := env.srv.site.Registry.Lazy("goals")
	require.True(t, ok)
	require.False(t, lazy.Loaded())

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, env.get("/goals", token).Code)
	}
	assert.True(t, lazy.Loaded())
	assert.EqualValues(t, 1, lazy.Loads())

	rr := env.get("/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `finanzas_view_loads_total{result="ok",view="goals"} 1`)
	assert.Contains(t, body, `finanzas_pages_served_total{route="Goals",status="200"} 3`)
	assert.Contains(t, body, "finanzas_http_requests_total")
}

func TestFailedViewLoadIsRetried(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "ana")

	var calls atomic.Int32
	env.srv.site.Registry.RegisterLazy("budgets", func(context.Context) (views.View, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("template store unavailable")
		}
		return views.ViewFunc(func(_ context.Context, w io.Writer, _ views.Data) error {
			_, err := io.WriteString(w, `<div id="view-budgets">ok</div>`)
			return err
		}), nil
	})

	rr := env.get("/budgets", token)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 1, document(t, rr).Find("#view-error").Length())

	rr = env.get("/budgets", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, document(t, rr).Find("#view-main_page #view-budgets").Length())
	assert.EqualValues(t, 2, calls.Load())
}

func TestViewLoadTimeout(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.ViewLoadTimeout = 20 * time.Millisecond })
	_, token := env.user(t, "ana")

	release := make(chan struct{})
	defer close(release)
	env.srv.site.Registry.RegisterLazy("goals", func(context.Context) (views.View, error) {
		<-release
		return nil, errors.New("released")
	})

	rr := env.get("/goals", token)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHeadRequestHasNoBody(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodHead, "/about", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = env.get("/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ready"`)
	assert.Contains(t, rr.Body.String(), `"store":"ok"`)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.srv.store = failingPinger{}

	rr := env.get("/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t)
	rr := env.get("/static/app.css", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))

	rr = env.get("/static/", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotContains(t, rr.Body.String(), "app.css", "directories are not listed")
}

func TestBlockedMethod(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest("TRACE", "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestGzipWhenAccepted(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := env.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
}
