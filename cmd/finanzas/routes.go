package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"finanzas/internal/routes"
	"finanzas/internal/views"
	"finanzas/web"
)

// routeDoc is the printed form of a compiled route.
type routeDoc struct {
	Path         string     `yaml:"path"`
	Name         string     `yaml:"name,omitempty"`
	Component    string     `yaml:"component"`
	Lazy         bool       `yaml:"lazy,omitempty"`
	RequiresAuth bool       `yaml:"requires_auth,omitempty"`
	Absolute     bool       `yaml:"absolute,omitempty"`
	Children     []routeDoc `yaml:"children,omitempty"`
}

func docFor(r *routes.Route) routeDoc {
	d := routeDoc{
		Path:         r.Path,
		Name:         r.Name,
		Component:    r.Component,
		Lazy:         r.Lazy,
		RequiresAuth: r.RequiresAuth,
		Absolute:     r.Absolute,
	}
	for _, c := range r.Children {
		d.Children = append(d.Children, docFor(c))
	}
	return d
}

func routesCmd() *cobra.Command {
	var (
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the compiled page route table",
		Long: `Print the page route table as the server resolves it, followed by
lint warnings such as children declared with an absolute path.

Examples:
  finanzas routes
  finanzas routes --format yaml
  finanzas routes --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := views.LoadSite(web.RoutesFS, web.RoutesFile, web.TemplatesFS, "templates")
			if err != nil {
				return err
			}
			if err := printRoutes(cmd.OutOrStdout(), site.Table, format); err != nil {
				return err
			}
			warnings := site.Table.Warnings()
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			if strict && len(warnings) > 0 {
				return fmt.Errorf("%d route warning(s)", len(warnings))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or yaml")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the table has lint warnings")
	return cmd
}

func printRoutes(w io.Writer, t *routes.Table, format string) error {
	switch strings.ToLower(format) {
	case "yaml":
		var docs []routeDoc
		for _, r := range t.Roots() {
			docs = append(docs, docFor(r))
		}
		out, err := yaml.Marshal(map[string][]routeDoc{"routes": docs})
		if err != nil {
			return fmt.Errorf("encode routes: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tNAME\tVIEW\tLAYOUT\tFLAGS")
		for _, r := range t.Routes() {
			layout := "-"
			if r.Parent != nil {
				layout = r.Parent.Component
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Path, orDash(r.Name), r.Component, layout, flags(r))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q: must be table or yaml", format)
	}
}

func flags(r *routes.Route) string {
	var f []string
	if r.Lazy {
		f = append(f, "lazy")
	}
	if r.Guarded() {
		f = append(f, "auth")
	}
	if r.Absolute && r.Parent != nil {
		f = append(f, "absolute")
	}
	if len(f) == 0 {
		return "-"
	}
	return strings.Join(f, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
