package pathutil

import "strings"

// PathBuilder assembles dotted value names from segments. The full string
// is only materialized when String is called.
type PathBuilder struct {
	segments []string
	length   int // bytes needed by String, dots included
}

// Push adds a segment to the path. Empty segments are ignored so that an
// empty base name never produces a leading dot.
func (p *PathBuilder) Push(segment string) {
	if segment == "" {
		return
	}
	if p.length > 0 {
		p.length++
	}
	p.segments = append(p.segments, segment)
	p.length += len(segment)
}

// Reset clears the builder for reuse.
func (p *PathBuilder) Reset() {
	p.segments = p.segments[:0]
	p.length = 0
}

// String returns the segments joined with ".".
func (p *PathBuilder) String() string {
	if p.length == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(p.length)
	for i, seg := range p.segments {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

// Join dot-joins the non-empty parts using a pooled builder.
func Join(parts ...string) string {
	p := Get()
	defer Put(p)
	for _, part := range parts {
		p.Push(part)
	}
	return p.String()
}
