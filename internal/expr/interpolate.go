package expr

import (
	"fmt"
	"regexp"
	"strings"
)

var interpolationPattern = regexp.MustCompile(`\$\{\{(.*?)\}\}`)

// Interpolate resolves every ${{ ... }} occurrence in s against the
// context. Each inner expression is parsed and evaluated; the result is
// rendered as a string (booleans become "true"/"false").
//
// Text without interpolations passes through unchanged.
func Interpolate(s string, ctx *Context) (string, error) {
	if !strings.Contains(s, "${{") {
		return s, nil
	}

	var out strings.Builder
	last := 0
	for _, m := range interpolationPattern.FindAllStringSubmatchIndex(s, -1) {
		out.WriteString(s[last:m[0]])

		inner := s[m[2]:m[3]]
		compiled, err := Parse(inner)
		if err != nil {
			return "", fmt.Errorf("interpolation %q: %w", strings.TrimSpace(inner), err)
		}
		v, err := compiled.root.eval(ctx)
		if err != nil {
			return "", fmt.Errorf("interpolation %q: %w", strings.TrimSpace(inner), err)
		}
		out.WriteString(asString(v))

		last = m[1]
	}
	out.WriteString(s[last:])

	return out.String(), nil
}

// InterpolateMap resolves interpolations in every value of the map,
// returning a new map. Nil input yields nil.
func InterpolateMap(m map[string]string, ctx *Context) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		resolved, err := Interpolate(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}
