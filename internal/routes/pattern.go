package routes

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var paramNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type segment struct {
	literal string // lower-cased for static segments
	param   string // non-empty for :param segments
}

func (s segment) isParam() bool { return s.param != "" }

// splitPath breaks a URL path into its non-empty segments.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func compilePattern(path string) ([]segment, error) {
	parts := splitPath(path)
	segs := make([]segment, 0, len(parts))
	seen := make(map[string]bool)
	for _, p := range parts {
		if strings.HasPrefix(p, ":") {
			name := p[1:]
			if !paramNamePattern.MatchString(name) {
				return nil, fmt.Errorf("%w: bad parameter %q in %q", ErrInvalidPattern, p, path)
			}
			if seen[name] {
				return nil, fmt.Errorf("%w: parameter %q repeated in %q", ErrInvalidPattern, name, path)
			}
			seen[name] = true
			segs = append(segs, segment{param: name})
			continue
		}
		if strings.ContainsAny(p, ":*?#") {
			return nil, fmt.Errorf("%w: unsupported segment %q in %q", ErrInvalidPattern, p, path)
		}
		segs = append(segs, segment{literal: strings.ToLower(p)})
	}
	return segs, nil
}

// joinPath resolves a child path against its parent. It reports whether the
// child was declared absolute.
func joinPath(parent, child string) (string, bool) {
	switch {
	case strings.HasPrefix(child, "/"):
		return child, true
	case child == "":
		return parent, false
	case parent == "/" || parent == "":
		return "/" + child, false
	default:
		return strings.TrimSuffix(parent, "/") + "/" + child, false
	}
}

// key is the normalized identity of a pattern used for duplicate detection.
func patternKey(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		if s.isParam() {
			b.WriteByte(':')
			continue
		}
		b.WriteString(s.literal)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// match tests request segments against the pattern, filling params on success.
func match(segs []segment, parts []string, params map[string]string) bool {
	if len(segs) != len(parts) {
		return false
	}
	for i, s := range segs {
		if s.isParam() {
			continue
		}
		if !strings.EqualFold(s.literal, parts[i]) {
			return false
		}
	}
	for i, s := range segs {
		if s.isParam() {
			params[s.param] = parts[i]
		}
	}
	return true
}

// outranks reports whether pattern a is more specific than b, comparing
// segment by segment with static beating param.
func outranks(a, b []segment) (better, equal bool) {
	for i := range a {
		if i >= len(b) {
			break
		}
		as, bs := !a[i].isParam(), !b[i].isParam()
		if as != bs {
			return as, false
		}
	}
	return false, true
}

func buildURL(segs []segment, original string, params map[string]string) (string, error) {
	parts := splitPath(original)
	var b strings.Builder
	for i, s := range segs {
		b.WriteByte('/')
		if !s.isParam() {
			b.WriteString(parts[i])
			continue
		}
		v, ok := params[s.param]
		if !ok || v == "" {
			return "", fmt.Errorf("%w: %q", ErrMissingParam, s.param)
		}
		b.WriteString(url.PathEscape(v))
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}
