package views

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
)

// Compose renders chain (ordered root to leaf) into w. The leaf renders
// first; each ancestor then renders with the previous output as its outlet,
// and base wraps the result. A nil base writes the composed chain as is.
func Compose(ctx context.Context, w io.Writer, base View, chain []View, data Data) error {
	var outlet template.HTML
	var buf bytes.Buffer
	for i := len(chain) - 1; i >= 0; i-- {
		v := chain[i]
		if i < len(chain)-1 {
			if o, ok := v.(outliner); ok && !o.HasOutlet() {
				return fmt.Errorf("%w: position %d", ErrNoOutlet, i)
			}
		}
		buf.Reset()
		d := data
		d.Outlet = outlet
		if err := v.Render(ctx, &buf, d); err != nil {
			return fmt.Errorf("render view %d of %d: %w", i+1, len(chain), err)
		}
		outlet = template.HTML(buf.String())
	}

	if base == nil {
		_, err := io.WriteString(w, string(outlet))
		return err
	}
	data.Outlet = outlet
	if err := base.Render(ctx, w, data); err != nil {
		return fmt.Errorf("render base: %w", err)
	}
	return nil
}
