package openapi

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PathMatcher matches request paths against a single path template such as
// "/path/{first}/path/{second}".
type PathMatcher struct {
	template    string
	pattern     *regexp.Regexp
	params      []string
	specificity int
}

// NewPathMatcher compiles template. Literal characters raise the matcher's
// specificity and each {param} lowers it.
func NewPathMatcher(template string) (*PathMatcher, error) {
	if template == "" {
		return nil, fmt.Errorf("path template cannot be empty")
	}

	var b strings.Builder
	b.WriteByte('^')

	var params []string
	specificity := 0
	for rest := template; rest != ""; {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			specificity += literalWeight(rest)
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		specificity += literalWeight(rest[:open])
		b.WriteString(regexp.QuoteMeta(rest[:open]))

		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("unclosed path parameter in template %q", template)
		}
		name := rest[open+1 : open+closing]
		if name == "" {
			return nil, fmt.Errorf("empty path parameter in template %q", template)
		}
		for _, existing := range params {
			if existing == name {
				return nil, fmt.Errorf("duplicate path parameter %q in template %q", name, template)
			}
		}
		params = append(params, name)
		b.WriteString("([^/]+)")
		specificity--
		rest = rest[open+closing+1:]
	}
	b.WriteByte('$')

	pattern, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile path template %q: %w", template, err)
	}
	return &PathMatcher{
		template:    template,
		pattern:     pattern,
		params:      params,
		specificity: specificity,
	}, nil
}

func literalWeight(s string) int {
	return len(s) - strings.Count(s, "/")
}

// Match reports whether path matches the template and returns the raw
// (still percent-encoded) parameter values.
func (m *PathMatcher) Match(path string) (map[string]string, bool) {
	groups := m.pattern.FindStringSubmatch(path)
	if len(groups) != len(m.params)+1 {
		return nil, false
	}
	values := make(map[string]string, len(m.params))
	for i, name := range m.params {
		values[name] = groups[i+1]
	}
	return values, true
}

// Template returns the path template.
func (m *PathMatcher) Template() string { return m.template }

// ParamNames returns the template's parameter names in order of appearance.
func (m *PathMatcher) ParamNames() []string { return m.params }

// PathMatcherSet holds matchers ordered so that concrete templates win over
// templated ones: "/users/me" is tried before "/users/{id}".
type PathMatcherSet struct {
	matchers []*PathMatcher
}

// NewPathMatcherSet compiles every template. Matchers are ordered by
// specificity, then by template length, then lexically.
func NewPathMatcherSet(templates []string) (*PathMatcherSet, error) {
	matchers := make([]*PathMatcher, 0, len(templates))
	for _, t := range templates {
		m, err := NewPathMatcher(t)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	sort.Slice(matchers, func(i, j int) bool {
		a, b := matchers[i], matchers[j]
		if a.specificity != b.specificity {
			return a.specificity > b.specificity
		}
		if len(a.template) != len(b.template) {
			return len(a.template) > len(b.template)
		}
		return a.template < b.template
	})
	return &PathMatcherSet{matchers: matchers}, nil
}

// Match returns the first template that matches path.
func (s *PathMatcherSet) Match(path string) (template string, params map[string]string, found bool) {
	matches := s.MatchAll(path)
	if len(matches) == 0 {
		return "", nil, false
	}
	return matches[0].Template, matches[0].Params, true
}

// PathMatch is one template that matched a request path.
type PathMatch struct {
	Template string
	// Params holds the raw (still percent-encoded) parameter values.
	Params map[string]string
}

// MatchAll returns every template that matches path, most specific first.
func (s *PathMatcherSet) MatchAll(path string) []PathMatch {
	if s == nil {
		return nil
	}
	var out []PathMatch
	for _, m := range s.matchers {
		if values, ok := m.Match(path); ok {
			out = append(out, PathMatch{Template: m.template, Params: values})
		}
	}
	return out
}

// Lookup returns the matcher compiled for template.
func (s *PathMatcherSet) Lookup(template string) (*PathMatcher, bool) {
	if s == nil {
		return nil, false
	}
	for _, m := range s.matchers {
		if m.template == template {
			return m, true
		}
	}
	return nil, false
}

// Templates returns the templates in match order.
func (s *PathMatcherSet) Templates() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.matchers))
	for i, m := range s.matchers {
		out[i] = m.template
	}
	return out
}
