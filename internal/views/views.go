// Package views renders route components. Views are either parsed at startup
// or loaded on first use, and layout views are composed around their child
// through an outlet.
package views

import (
	"context"
	"errors"
	"html/template"
	"io"

	"finanzas/internal/core"
	"finanzas/internal/i18n"
)

var (
	ErrUnknownView = errors.New("unknown view")
	ErrNoOutlet    = errors.New("layout view has no outlet")
)

// View renders a component.
type View interface {
	Render(ctx context.Context, w io.Writer, data Data) error
}

// Data is passed to every view in a composed page.
type Data struct {
	Title  string
	Path   string
	Route  string
	Params map[string]string
	User   *core.User

	// Page carries component-specific data.
	Page   any
	Form   map[string]string
	Errors map[string]string
	Flash  string

	// Outlet holds the rendered child view for layouts and the base document.
	Outlet template.HTML

	Loc *i18n.Localizer
}

// T translates a message ID. Extra arguments are key/value pairs of
// template data.
func (d Data) T(id string, kv ...any) string {
	if len(kv) == 0 {
		return d.Loc.T(id)
	}
	data := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			data[k] = kv[i+1]
		}
	}
	return d.Loc.TData(id, data)
}

// outliner is implemented by views that can report whether they render
// Data.Outlet.
type outliner interface {
	HasOutlet() bool
}

// ViewFunc adapts a function to View.
type ViewFunc func(ctx context.Context, w io.Writer, data Data) error

func (f ViewFunc) Render(ctx context.Context, w io.Writer, data Data) error {
	return f(ctx, w, data)
}
