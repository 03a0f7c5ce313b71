package routes

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPattern    = errors.New("invalid route pattern")
	ErrDuplicatePath     = errors.New("duplicate route path")
	ErrDuplicateName     = errors.New("duplicate route name")
	ErrMissingComponent  = errors.New("route has no component")
	ErrUnknownComponent  = errors.New("unknown component")
	ErrUnknownRouteName  = errors.New("unknown route name")
	ErrMissingParam      = errors.New("missing route parameter")
	ErrRelativeRootRoute = errors.New("top-level route path must start with /")
)

// Route is a compiled, immutable route record.
type Route struct {
	// Path is the full path the route answers to, with the declared casing.
	Path string
	// Declared is the path exactly as written in the definition.
	Declared     string
	Name         string
	Component    string
	Title        string
	Lazy         bool
	RequiresAuth bool

	// Absolute is true for a child declared with a leading slash.
	Absolute bool

	Parent   *Route
	Children []*Route

	segments []segment
	depth    int
	order    int
}

// IsLayout reports whether the route renders child routes in its outlet.
func (r *Route) IsLayout() bool {
	return len(r.Children) > 0
}

// Chain returns the route and its ancestors ordered root to leaf.
func (r *Route) Chain() []*Route {
	chain := make([]*Route, r.depth+1)
	for i, cur := r.depth, r; cur != nil; i, cur = i-1, cur.Parent {
		chain[i] = cur
	}
	return chain
}

// Guarded reports whether the route or any ancestor requires authentication.
func (r *Route) Guarded() bool {
	for cur := r; cur != nil; cur = cur.Parent {
		if cur.RequiresAuth {
			return true
		}
	}
	return false
}

// DisplayName is the route name, or its path for unnamed layout routes.
func (r *Route) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Path
}

// Match is the result of resolving a path.
type Match struct {
	Route  *Route
	Chain  []*Route // root to leaf, Route last
	Params map[string]string
}

// Option configures table construction.
type Option func(*options)

type options struct {
	known func(component string) bool
}

// WithComponents makes New reject definitions whose component is not known.
func WithComponents(known func(component string) bool) Option {
	return func(o *options) {
		o.known = known
	}
}

// Table is the compiled route table. It is safe for concurrent use.
type Table struct {
	roots    []*Route
	all      []*Route
	byName   map[string]*Route
	warnings []Warning
}

// New compiles definitions into a table.
func New(defs []Definition, opts ...Option) (*Table, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{byName: make(map[string]*Route)}
	var errs []error
	for _, d := range defs {
		if !strings.HasPrefix(d.Path, "/") {
			errs = append(errs, fmt.Errorf("%w: %q", ErrRelativeRootRoute, d.Path))
			continue
		}
		root, err := t.compile(d, nil, o)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		t.roots = append(t.roots, root)
	}
	if err := t.checkDuplicates(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	t.warnings = Lint(t)
	return t, nil
}

func (t *Table) compile(d Definition, parent *Route, o options) (*Route, error) {
	full, absolute := d.Path, false
	if parent != nil {
		full, absolute = joinPath(parent.Path, d.Path)
	}

	segs, err := compilePattern(full)
	if err != nil {
		return nil, err
	}

	r := &Route{
		Path:         full,
		Declared:     d.Path,
		Name:         d.Name,
		Component:    d.Component,
		Title:        d.Title,
		Lazy:         d.Lazy,
		RequiresAuth: d.RequiresAuth,
		Absolute:     absolute,
		Parent:       parent,
		segments:     segs,
		order:        len(t.all),
	}
	if parent != nil {
		r.depth = parent.depth + 1
	}

	if r.Component == "" && len(d.Children) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingComponent, full)
	}
	if r.Component != "" && o.known != nil && !o.known(r.Component) {
		return nil, fmt.Errorf("%w: %q on route %q", ErrUnknownComponent, r.Component, full)
	}
	if r.Name != "" {
		if prev, exists := t.byName[r.Name]; exists {
			return nil, fmt.Errorf("%w: %q used by %q and %q", ErrDuplicateName, r.Name, prev.Path, full)
		}
		t.byName[r.Name] = r
	}
	t.all = append(t.all, r)

	for _, cd := range d.Children {
		child, err := t.compile(cd, r, o)
		if err != nil {
			return nil, err
		}
		r.Children = append(r.Children, child)
	}
	return r, nil
}

// checkDuplicates rejects two routes answering the same path unless one is the
// ancestor of the other (a layout and its default child).
func (t *Table) checkDuplicates() error {
	seen := make(map[string][]*Route)
	var errs []error
	for _, r := range t.all {
		if r.Component == "" {
			continue
		}
		key := patternKey(r.segments)
		for _, prev := range seen[key] {
			if !isAncestor(prev, r) && !isAncestor(r, prev) {
				errs = append(errs, fmt.Errorf("%w: %q and %q", ErrDuplicatePath, prev.Path, r.Path))
			}
		}
		seen[key] = append(seen[key], r)
	}
	return errors.Join(errs...)
}

func isAncestor(a, b *Route) bool {
	for cur := b.Parent; cur != nil; cur = cur.Parent {
		if cur == a {
			return true
		}
	}
	return false
}

// Resolve selects the route for a request path. It returns false when no
// route matches.
func (t *Table) Resolve(path string) (*Match, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	parts := splitPath(path)

	var best *Route
	var bestParams map[string]string
	for _, r := range t.all {
		if r.Component == "" {
			continue
		}
		params := make(map[string]string)
		if !match(r.segments, parts, params) {
			continue
		}
		if best == nil || prefer(r, best) {
			best, bestParams = r, params
		}
	}
	if best == nil {
		return nil, false
	}
	return &Match{Route: best, Chain: best.Chain(), Params: bestParams}, true
}

func prefer(candidate, current *Route) bool {
	better, equal := outranks(candidate.segments, current.segments)
	if !equal {
		return better
	}
	if candidate.depth != current.depth {
		return candidate.depth > current.depth
	}
	return candidate.order < current.order
}

// Lookup returns the route registered under name.
func (t *Table) Lookup(name string) (*Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}

// URL builds the path of a named route.
func (t *Table) URL(name string, params map[string]string) (string, error) {
	r, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRouteName, name)
	}
	return buildURL(r.segments, r.Path, params)
}

// Routes returns every route in declaration order, parents before children.
func (t *Table) Routes() []*Route {
	out := make([]*Route, len(t.all))
	copy(out, t.all)
	return out
}

// Roots returns the top-level routes.
func (t *Table) Roots() []*Route {
	out := make([]*Route, len(t.roots))
	copy(out, t.roots)
	return out
}

// Warnings returns the lint findings computed when the table was built.
func (t *Table) Warnings() []Warning {
	out := make([]Warning, len(t.warnings))
	copy(out, t.warnings)
	return out
}
