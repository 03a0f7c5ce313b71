package routes

import (
	"fmt"
	"strings"
)

// Warning codes.
const (
	WarnAbsoluteChild = "absolute-child"
	WarnMixedCase     = "mixed-case"
)

// Warning describes a declaration that is valid but likely unintended.
type Warning struct {
	Code    string
	Route   *Route
	Message string
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}

// Lint inspects a table for suspicious declarations. It never changes how the
// table resolves paths.
func Lint(t *Table) []Warning {
	var out []Warning
	for _, r := range t.all {
		if r.Absolute && r.Parent != nil {
			out = append(out, Warning{
				Code:  WarnAbsoluteChild,
				Route: r,
				Message: fmt.Sprintf("child %q of %q is declared absolute: it answers %q, not %q, but still renders inside %q",
					r.DisplayName(), r.Parent.Path, r.Path,
					strings.TrimSuffix(r.Parent.Path, "/")+r.Declared, r.Parent.Path),
			})
		}
		if !r.Absolute && r.Parent == nil && r.Path != strings.ToLower(r.Path) {
			out = append(out, Warning{
				Code:    WarnMixedCase,
				Route:   r,
				Message: fmt.Sprintf("path %q has upper-case letters; matching ignores case", r.Path),
			})
		}
	}
	return out
}
