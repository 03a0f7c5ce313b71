package views

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"text/template/parse"

	"finanzas/internal/routes"
)

// TemplateView renders one parsed template file.
type TemplateView struct {
	name      string
	tmpl      *template.Template
	hasOutlet bool
}

func (v *TemplateView) Render(_ context.Context, w io.Writer, data Data) error {
	return v.tmpl.ExecuteTemplate(w, v.name, data)
}

// HasOutlet reports whether the template references .Outlet.
func (v *TemplateView) HasOutlet() bool {
	return v.hasOutlet
}

// Templates parses component templates from a file system. The template for
// component "x" lives in "<dir>/x.html".
type Templates struct {
	fsys  fs.FS
	dir   string
	funcs template.FuncMap
}

// NewTemplates returns a parser rooted at dir inside fsys.
func NewTemplates(fsys fs.FS, dir string, funcs template.FuncMap) *Templates {
	return &Templates{fsys: fsys, dir: dir, funcs: funcs}
}

// Parse parses the template of a component.
func (t *Templates) Parse(component string) (*TemplateView, error) {
	file := component + ".html"
	tmpl, err := template.New(file).Funcs(t.funcs).ParseFS(t.fsys, path.Join(t.dir, file))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", file, err)
	}
	return &TemplateView{name: file, tmpl: tmpl, hasOutlet: referencesField(tmpl, "Outlet")}, nil
}

// Loader returns a LoadFunc that parses the component on demand.
func (t *Templates) Loader(component string) LoadFunc {
	return func(context.Context) (View, error) {
		return t.Parse(component)
	}
}

// Components lists the component names with a template file.
func (t *Templates) Components() ([]string, error) {
	matches, err := fs.Glob(t.fsys, path.Join(t.dir, "*.html"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), ".html"))
	}
	return names, nil
}

// Funcs returns the template helpers shared by all views.
func Funcs(table *routes.Table) template.FuncMap {
	return template.FuncMap{
		"urlFor": func(name string) string {
			if table == nil {
				return "#"
			}
			u, err := table.URL(name, nil)
			if err != nil {
				return "#"
			}
			return u
		},
	}
}

func referencesField(tmpl *template.Template, field string) bool {
	for _, t := range tmpl.Templates() {
		if t.Tree != nil && walkForField(t.Tree.Root, field) {
			return true
		}
	}
	return false
}

func walkForField(node parse.Node, field string) bool {
	switch n := node.(type) {
	case nil:
		return false
	case *parse.ListNode:
		if n == nil {
			return false
		}
		for _, c := range n.Nodes {
			if walkForField(c, field) {
				return true
			}
		}
	case *parse.ActionNode:
		return walkForField(n.Pipe, field)
	case *parse.PipeNode:
		if n == nil {
			return false
		}
		for _, cmd := range n.Cmds {
			for _, arg := range cmd.Args {
				if walkForField(arg, field) {
					return true
				}
			}
		}
	case *parse.FieldNode:
		return len(n.Ident) > 0 && n.Ident[0] == field
	case *parse.IfNode:
		return walkForField(n.Pipe, field) || walkForField(n.List, field) || walkForField(n.ElseList, field)
	case *parse.RangeNode:
		return walkForField(n.Pipe, field) || walkForField(n.List, field) || walkForField(n.ElseList, field)
	case *parse.WithNode:
		return walkForField(n.Pipe, field) || walkForField(n.List, field) || walkForField(n.ElseList, field)
	}
	return false
}
