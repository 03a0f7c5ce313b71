package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finanzas/internal/auth"
	"finanzas/internal/core"
	"finanzas/internal/i18n"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

// Server-rendered form flow. Successful posts redirect (303); failures render
// the form again with the submitted values and localized errors.

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	loc := i18n.FromContext(r.Context())
	redirect := safeRedirect(p.Get("redirect"), "")
	st := pageState{Form: map[string]string{"email": p.Get("email"), "redirect": redirect}}

	sess, err := s.accounts.Login(r.Context(), p.Get("email"), p.GetRaw("password"))
	status := http.StatusUnauthorized
	switch {
	case err == nil:
		http.SetCookie(w, auth.SessionCookie(sess.Token, sess.ExpiresAt, s.cfg.CookieSecure))
		http.Redirect(w, r, safeRedirect(redirect, s.routeURL(routeDashboard, "/Dashboard")), http.StatusSeeOther)
		return
	case errors.Is(err, services.ErrFieldsRequired):
		status = http.StatusBadRequest
		st.Errors = map[string]string{"_": loc.T(core.MsgFieldsRequired)}
	case errors.Is(err, core.ErrInvalidCredential):
		st.Errors = map[string]string{"_": loc.T("invalid_credentials")}
	case errors.Is(err, core.ErrProviderAccount):
		st.Errors = map[string]string{"_": loc.T("google_account")}
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed",
			log.FieldOperation, log.OpLogin, log.FieldError, err)
		status = http.StatusInternalServerError
		st.Errors = map[string]string{"_": loc.T("login_error")}
	}
	s.serveRoute(w, r, routeLogin, status, st)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	loc := i18n.FromContext(r.Context())
	in := p.Registration()
	st := pageState{Form: map[string]string{"username": in.Username, "email": in.Email}}

	_, err := s.accounts.Register(r.Context(), in)
	status := http.StatusBadRequest
	var ve core.ValidationErrors
	switch {
	case err == nil:
		http.Redirect(w, r, s.routeURL(routeLogin, "/login")+"?registered=1", http.StatusSeeOther)
		return
	case errors.Is(err, services.ErrFieldsRequired):
		st.Errors = map[string]string{"_": loc.T(core.MsgFieldsRequired)}
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
		st.Errors = map[string]string{"email": loc.T("user_exists")}
	case errors.As(err, &ve):
		st.Errors = loc.Fields(ve)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Registration failed",
			log.FieldOperation, log.OpRegister, log.FieldError, err)
		status = http.StatusInternalServerError
		st.Errors = map[string]string{"_": loc.T("register_error")}
	}
	s.serveRoute(w, r, routeRegister, status, st)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearSessionCookie(s.cfg.CookieSecure))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCreateCategoryForm(w http.ResponseWriter, r *http.Request) {
	u, ok := s.formUser(w, r)
	if !ok {
		return
	}
	p, ok := s.parseForm(w, r)
	if !ok {
		return
	}
	loc := i18n.FromContext(r.Context())

	in, err := p.CategoryInput()
	if err == nil {
		if _, err = s.categories.Create(r.Context(), u.ID, in); err == nil {
			http.Redirect(w, r, s.routeURL(routeCategories, "/categories"), http.StatusSeeOther)
			return
		}
	}

	st := pageState{Form: map[string]string{
		"name": in.Name, "icon": in.Icon, "color": in.Color, "type": string(in.Type),
	}}
	var ve core.ValidationErrors
	status := http.StatusBadRequest
	if errors.As(err, &ve) {
		st.Errors = loc.Fields(ve)
		if _, ok := ve["parent_id"]; ok {
			st.Errors["_"] = st.Errors["parent_id"]
		}
	} else {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Category create failed",
			log.FieldOperation, log.OpCreate, log.FieldError, err)
		status = http.StatusInternalServerError
		st.Errors = map[string]string{"_": loc.T("internal_error")}
	}
	s.serveRoute(w, r, routeCategories, status, st)
}

func (s *Server) handleDeleteCategoryForm(w http.ResponseWriter, r *http.Request) {
	u, ok := s.formUser(w, r)
	if !ok {
		return
	}
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	err := s.categories.Delete(r.Context(), u.ID, id)
	switch {
	case err == nil:
		http.Redirect(w, r, s.routeURL(routeCategories, "/categories"), http.StatusSeeOther)
	case errors.Is(err, core.ErrNotFound):
		s.handleNotFound(w, r)
	default:
		s.renderError(w, r, err)
	}
}

// formUser returns the signed-in user, redirecting anonymous visitors to the
// sign-in page.
func (s *Server) formUser(w http.ResponseWriter, r *http.Request) (*core.User, bool) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		http.Redirect(w, r, s.routeURL(routeLogin, "/login"), http.StatusSeeOther)
		return nil, false
	}
	return u, true
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, i18n.FromContext(r.Context()).T("invalid_request"), status)
		return nil, false
	}
	return p, true
}
