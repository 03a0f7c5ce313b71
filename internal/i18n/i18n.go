// Package i18n resolves message IDs to user-facing text. Spanish is the
// default language; English is available through Accept-Language.
package i18n

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/goccy/go-yaml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// DefaultLanguage is used when the client expresses no supported preference.
var DefaultLanguage = language.Spanish

// Bundle holds the parsed message catalogs.
type Bundle struct {
	bundle *goi18n.Bundle
}

// New loads the embedded catalogs.
func New() (*Bundle, error) {
	b := goi18n.NewBundle(DefaultLanguage)
	b.RegisterUnmarshalFunc("yaml", func(data []byte, v interface{}) error {
		return yaml.Unmarshal(data, v)
	})

	files, err := fs.Glob(localesFS, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("list locale files: %w", err)
	}
	for _, name := range files {
		data, err := localesFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := b.ParseMessageFileBytes(data, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	return &Bundle{bundle: b}, nil
}

// Languages lists the languages with a catalog.
func (b *Bundle) Languages() []language.Tag {
	return b.bundle.LanguageTags()
}

// Localizer returns a localizer for the given preferences, most preferred
// first. Values may be Accept-Language headers.
func (b *Bundle) Localizer(prefs ...string) *Localizer {
	return &Localizer{loc: goi18n.NewLocalizer(b.bundle, prefs...)}
}

// Localizer translates message IDs for one set of language preferences.
type Localizer struct {
	loc *goi18n.Localizer
}

// T translates id, falling back to the id itself when the message is missing.
func (l *Localizer) T(id string) string {
	return l.TData(id, nil)
}

// TData translates id with template data.
func (l *Localizer) TData(id string, data map[string]any) string {
	if l == nil || l.loc == nil {
		return id
	}
	msg, err := l.loc.Localize(&goi18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		return id
	}
	return msg
}

// Fields translates every value of a field → message ID map.
func (l *Localizer) Fields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, id := range fields {
		out[k] = l.T(id)
	}
	return out
}

type ctxKey struct{}

// Middleware stores a request-scoped localizer built from the query parameter
// "lang" and the Accept-Language header.
func (b *Bundle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := b.Localizer(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
	})
}

// WithLocalizer returns a context carrying loc.
func WithLocalizer(ctx context.Context, loc *Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// FromContext returns the request localizer, or nil. A nil localizer returns
// message IDs unchanged.
func FromContext(ctx context.Context) *Localizer {
	loc, _ := ctx.Value(ctxKey{}).(*Localizer)
	return loc
}
