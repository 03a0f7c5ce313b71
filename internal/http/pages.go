package http

import (
	"bytes"
	"context"
	"net/http"
	"time"

	servertiming "github.com/mitchellh/go-server-timing"

	"finanzas/internal/auth"
	"finanzas/internal/core"
	"finanzas/internal/i18n"
	"finanzas/internal/log"
	"finanzas/internal/routes"
	"finanzas/internal/views"
)

// Route names the handlers refer to.
const (
	routeLogin      = "Login"
	routeRegister   = "Register"
	routeDashboard  = "Dashboard"
	routeCategories = "Categories"
)

// pageState carries form input and messages into a re-rendered page.
type pageState struct {
	Form   map[string]string
	Errors map[string]string
	Flash  string
}

type dashboardPage struct {
	Categories int
}

// handlePage resolves the request path against the route table and renders
// the matched chain.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	stop := timed(r.Context(), "resolve")
	m, ok := s.site.Table.Resolve(r.URL.Path)
	stop()
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	s.servePage(w, r, m, http.StatusOK, pageState{})
}

// serveRoute renders the named route, used by form handlers to show the
// form again with errors.
func (s *Server) serveRoute(w http.ResponseWriter, r *http.Request, name string, status int, st pageState) {
	rt, ok := s.site.Table.Lookup(name)
	if !ok {
		s.renderError(w, r, routes.ErrUnknownRouteName)
		return
	}
	s.servePage(w, r, &routes.Match{Route: rt, Chain: rt.Chain()}, status, st)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, m *routes.Match, status int, st pageState) {
	start := time.Now()
	ctx := r.Context()
	user := auth.UserFromContext(ctx)
	name := m.Route.DisplayName()

	if m.Route.Guarded() && user == nil {
		http.Redirect(w, r, loginRedirect(s.routeURL(routeLogin, "/login"), r), http.StatusSeeOther)
		s.structured.LogGuardRedirect(ctx, r.URL.Path, name)
		s.metrics.ObservePage(name, http.StatusSeeOther)
		return
	}

	stop := timed(ctx, "load")
	chain, err := s.loadChain(ctx, m)
	stop()
	if err != nil {
		s.renderError(w, r, err)
		s.metrics.ObservePage(name, http.StatusInternalServerError)
		return
	}

	data := views.Data{
		Title:  m.Route.Title,
		Path:   r.URL.Path,
		Route:  m.Route.Name,
		Params: m.Params,
		User:   user,
		Form:   st.Form,
		Errors: st.Errors,
		Flash:  st.Flash,
		Loc:    i18n.FromContext(ctx),
	}
	if data.Form == nil {
		data.Form = map[string]string{}
	}
	if err := s.preparePage(ctx, r, m.Route, &data); err != nil {
		s.renderError(w, r, err)
		s.metrics.ObservePage(name, http.StatusInternalServerError)
		return
	}

	stop = timed(ctx, "render")
	var buf bytes.Buffer
	err = s.site.Render(ctx, &buf, chain, data)
	stop()
	if err != nil {
		s.renderError(w, r, err)
		s.metrics.ObservePage(name, http.StatusInternalServerError)
		return
	}

	writeHTML(w, r, status, buf.Bytes())
	s.metrics.ObservePage(name, status)
	s.structured.LogPageServed(ctx, r.URL.Path, name, m.Route.Component, status, time.Since(start).Milliseconds())
}

// loadChain loads the views of a match, bounding deferred loads by the
// configured timeout.
func (s *Server) loadChain(ctx context.Context, m *routes.Match) ([]views.View, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ViewLoadTimeout)
	defer cancel()

	for _, rt := range m.Chain {
		if rt.Component == "" {
			continue
		}
		lazy, ok := s.site.Registry.Lazy(rt.Component)
		if !ok || lazy.Loaded() {
			continue
		}
		start := time.Now()
		_, err := lazy.Get(ctx)
		s.metrics.ObserveViewLoad(rt.Component, time.Since(start), err)
		if err != nil {
			return nil, err
		}
	}
	return s.site.Load(ctx, m)
}

// preparePage fills in route-specific page data.
func (s *Server) preparePage(ctx context.Context, r *http.Request, rt *routes.Route, data *views.Data) error {
	switch rt.Name {
	case routeLogin:
		if _, ok := data.Form["redirect"]; !ok {
			data.Form["redirect"] = safeRedirect(r.URL.Query().Get("redirect"), "")
		}
		if data.Flash == "" && r.URL.Query().Has("registered") {
			data.Flash = data.Loc.T("register_success")
		}
	case routeDashboard:
		cats, err := s.userCategories(ctx, data.User)
		if err != nil {
			return err
		}
		data.Page = dashboardPage{Categories: len(cats)}
	case routeCategories:
		cats, err := s.userCategories(ctx, data.User)
		if err != nil {
			return err
		}
		data.Page = cats
	}
	return nil
}

func (s *Server) userCategories(ctx context.Context, u *core.User) ([]core.Category, error) {
	if u == nil {
		return []core.Category{}, nil
	}
	return s.categories.List(ctx, u.ID)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	loc := i18n.FromContext(r.Context())
	s.renderSystem(w, r, s.site.NotFound, http.StatusNotFound, loc.T("not_found"))
	s.metrics.ObservePage("", http.StatusNotFound)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Page render failed",
		log.FieldPath, r.URL.Path,
		log.FieldOperation, log.OpRender,
		log.FieldError, err)
	loc := i18n.FromContext(r.Context())
	s.renderSystem(w, r, s.site.Error, http.StatusInternalServerError, loc.T("internal_error"))
}

// renderSystem renders a view that is not bound to a route inside the base
// document.
func (s *Server) renderSystem(w http.ResponseWriter, r *http.Request, v views.View, status int, title string) {
	ctx := r.Context()
	data := views.Data{
		Title: title,
		Path:  r.URL.Path,
		User:  auth.UserFromContext(ctx),
		Form:  map[string]string{},
		Loc:   i18n.FromContext(ctx),
	}
	var buf bytes.Buffer
	if err := s.site.Render(ctx, &buf, []views.View{v}, data); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "System view render failed", log.FieldError, err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	writeHTML(w, r, status, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

// routeURL is the path of a named route, or fallback when the table does
// not declare it.
func (s *Server) routeURL(name, fallback string) string {
	u, err := s.site.Table.URL(name, nil)
	if err != nil {
		return fallback
	}
	return u
}

// timed starts a Server-Timing metric and returns its stop function.
func timed(ctx context.Context, name string) func() {
	h := servertiming.FromContext(ctx)
	if h == nil {
		return func() {}
	}
	m := h.NewMetric(name).Start()
	return func() { m.Stop() }
}
