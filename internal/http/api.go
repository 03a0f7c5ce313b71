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

// parseBody reads a JSON or form body, writing the error response itself
// when the body is unusable.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		loc := i18n.FromContext(r.Context())
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, loc.T("invalid_request"), nil).Write(w)
			return nil, false
		}
		BadRequestError(loc.T("invalid_request"), nil).Write(w)
		return nil, false
	}
	return p, true
}

// validationResponse maps a validation error to a 400 with localized field
// messages. It returns nil for other errors.
func validationResponse(loc *i18n.Localizer, err error) *JSONResponseBuilder {
	var ve core.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	return BadRequestError(loc.T("validation_failed"), loc.Fields(ve))
}

func (s *Server) handleAPIRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	loc := i18n.FromContext(r.Context())

	_, err := s.accounts.Register(r.Context(), p.Registration())
	switch {
	case err == nil:
		NewJSONResponse().Status(http.StatusCreated).Message(loc.T("register_success")).Write(w)
	case errors.Is(err, services.ErrFieldsRequired):
		BadRequestError(loc.T(core.MsgFieldsRequired), nil).Write(w)
	case errors.Is(err, core.ErrConflict):
		ConflictError(loc.T("user_exists")).Write(w)
	default:
		if resp := validationResponse(loc, err); resp != nil {
			resp.Write(w)
			return
		}
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Registration failed",
			log.FieldOperation, log.OpRegister, log.FieldError, err)
		InternalServerError(loc.T("register_error")).Write(w)
	}
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	loc := i18n.FromContext(r.Context())

	sess, err := s.accounts.Login(r.Context(), p.Get("email"), p.GetRaw("password"))
	switch {
	case err == nil:
		NewJSONResponse().Body(SessionJSON{Token: sess.Token, User: userJSON(sess.User)}).Write(w)
	case errors.Is(err, services.ErrFieldsRequired):
		BadRequestError(loc.T(core.MsgFieldsRequired), nil).Write(w)
	case errors.Is(err, core.ErrInvalidCredential):
		UnauthorizedError(loc.T("invalid_credentials")).Write(w)
	case errors.Is(err, core.ErrProviderAccount):
		UnauthorizedError(loc.T("google_account")).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Login failed",
			log.FieldOperation, log.OpLogin, log.FieldError, err)
		InternalServerError(loc.T("login_error")).Write(w)
	}
}

func (s *Server) handleAPIGoogle(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	loc := i18n.FromContext(r.Context())

	credential := p.Get("token")
	if credential == "" {
		credential = p.Get("credential")
	}
	sess, created, err := s.accounts.GoogleAuth(r.Context(), credential)
	switch {
	case err == nil:
		NewJSONResponse().Body(SessionJSON{Token: sess.Token, User: userJSON(sess.User), IsNewUser: &created}).Write(w)
	case errors.Is(err, auth.ErrGoogleToken):
		UnauthorizedError(loc.T("google_error")).Write(w)
	case errors.Is(err, services.ErrGoogleDisabled):
		ErrorResponse(http.StatusServiceUnavailable, loc.T("google_error"), nil).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Google sign-in failed",
			log.FieldOperation, log.OpLogin, log.FieldError, err)
		InternalServerError(loc.T("google_error")).Write(w)
	}
}

// requireAPIUser rejects requests without a valid session with a 401 that
// says why the token was refused.
func (s *Server) requireAPIUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		loc := i18n.FromContext(r.Context())
		msg := loc.T("unauthorized")
		switch err := auth.AuthError(r.Context()); {
		case err == nil:
		case errors.Is(err, auth.ErrNoUserID):
			msg = loc.T("token_no_user")
		case errors.Is(err, auth.ErrUserNotFound):
			msg = loc.T("user_not_found")
		default:
			msg = loc.T("token_invalid")
		}
		UnauthorizedError(msg).Header("WWW-Authenticate", "Bearer").Write(w)
	})
}

func (s *Server) handleAPIListCategories(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	cats, err := s.categories.List(r.Context(), u.ID)
	if err != nil {
		s.apiError(w, r, err, log.OpList)
		return
	}
	NewJSONResponse().Body(categoriesJSON(cats)).Write(w)
}

func (s *Server) handleAPICreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	u := auth.UserFromContext(r.Context())

	in, err := p.CategoryInput()
	if err == nil {
		var c core.Category
		if c, err = s.categories.Create(r.Context(), u.ID, in); err == nil {
			NewJSONResponse().Status(http.StatusCreated).Body(categoryJSON(c)).Write(w)
			return
		}
	}
	s.apiError(w, r, err, log.OpCreate)
}

// handleAPIUpdateCategory replaces every field on PUT and only the fields
// sent on PATCH.
func (s *Server) handleAPIUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		NotFoundError(i18n.FromContext(r.Context()).T("category_not_found")).Write(w)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	u := auth.UserFromContext(r.Context())

	var patch services.CategoryPatch
	var err error
	if r.Method == http.MethodPut {
		var in core.CategoryInput
		if in, err = p.CategoryInput(); err == nil {
			patch = services.Replace(in)
		}
	} else {
		patch, err = p.CategoryPatch()
	}
	if err == nil {
		var c core.Category
		if c, err = s.categories.Update(r.Context(), u.ID, id, patch); err == nil {
			NewJSONResponse().Body(categoryJSON(c)).Write(w)
			return
		}
	}
	s.apiError(w, r, err, log.OpUpdate)
}

func (s *Server) handleAPIDeleteCategory(w http.ResponseWriter, r *http.Request) {
	loc := i18n.FromContext(r.Context())
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		NotFoundError(loc.T("category_not_found")).Write(w)
		return
	}
	u := auth.UserFromContext(r.Context())

	if err := s.categories.Delete(r.Context(), u.ID, id); err != nil {
		s.apiError(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Message(loc.T("category_deleted")).Write(w)
}

// apiError maps category service errors to responses.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error, op string) {
	loc := i18n.FromContext(r.Context())
	if resp := validationResponse(loc, err); resp != nil {
		resp.Write(w)
		return
	}
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(loc.T("category_not_found")).Write(w)
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Category request failed",
		log.FieldOperation, op, log.FieldError, err)
	InternalServerError(loc.T("internal_error")).Write(w)
}
