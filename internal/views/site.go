package views

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"finanzas/internal/routes"
)

// System component names that are not bound to any route.
const (
	BaseComponent     = "base"
	NotFoundComponent = "not_found"
	ErrorComponent    = "error"
)

// Site ties a route table to its views.
type Site struct {
	Table    *routes.Table
	Registry *Registry
	Base     View
	NotFound View
	Error    View
}

// LoadSite compiles the route table declared in routesFS and binds every
// routed component to the template of the same name under dir in
// templatesFS. Lazy routes are registered as deferred views; all other
// templates are parsed now.
func LoadSite(routesFS fs.FS, routesFile string, templatesFS fs.FS, dir string) (*Site, error) {
	defs, err := routes.LoadFile(routesFS, routesFile)
	if err != nil {
		return nil, err
	}

	components, err := NewTemplates(templatesFS, dir, nil).Components()
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	known := make(map[string]bool, len(components))
	for _, c := range components {
		known[c] = true
	}

	table, err := routes.New(defs, routes.WithComponents(func(c string) bool { return known[c] }))
	if err != nil {
		return nil, fmt.Errorf("build route table: %w", err)
	}
	return NewSite(table, NewTemplates(templatesFS, dir, Funcs(table)))
}

// NewSite registers the views of every route in table.
func NewSite(table *routes.Table, tmpls *Templates) (*Site, error) {
	s := &Site{Table: table, Registry: NewRegistry()}

	for _, r := range table.Routes() {
		if r.Component == "" || s.Registry.Known(r.Component) {
			continue
		}
		if r.Lazy {
			s.Registry.RegisterLazy(r.Component, tmpls.Loader(r.Component))
			continue
		}
		v, err := tmpls.Parse(r.Component)
		if err != nil {
			return nil, err
		}
		if r.IsLayout() && !v.HasOutlet() {
			return nil, fmt.Errorf("%w: %q", ErrNoOutlet, r.Component)
		}
		s.Registry.Register(r.Component, v)
	}

	for _, sys := range []struct {
		name string
		dst  *View
	}{
		{BaseComponent, &s.Base},
		{NotFoundComponent, &s.NotFound},
		{ErrorComponent, &s.Error},
	} {
		v, err := tmpls.Parse(sys.name)
		if err != nil {
			return nil, err
		}
		*sys.dst = v
	}
	return s, nil
}

// Load returns the views of a matched chain, root to leaf, loading deferred
// views as needed. Routes without a component are skipped.
func (s *Site) Load(ctx context.Context, m *routes.Match) ([]View, error) {
	chain := make([]View, 0, len(m.Chain))
	for _, r := range m.Chain {
		if r.Component == "" {
			continue
		}
		v, err := s.Registry.Get(ctx, r.Component)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	return chain, nil
}

// Render composes chain inside the base document.
func (s *Site) Render(ctx context.Context, w io.Writer, chain []View, data Data) error {
	return Compose(ctx, w, s.Base, chain, data)
}
