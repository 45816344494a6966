package pathutil

import "sync"

const (
	initialSegments = 8
	// Builders that grew past this are dropped instead of pooled.
	maxPooledSegments = 64
)

var builders = sync.Pool{
	New: func() any {
		return &PathBuilder{segments: make([]string, 0, initialSegments)}
	},
}

// Get returns an empty PathBuilder from the pool.
func Get() *PathBuilder {
	p := builders.Get().(*PathBuilder)
	p.Reset()
	return p
}

// Put hands p back to the pool. Nil and oversized builders are discarded.
func Put(p *PathBuilder) {
	if p == nil || cap(p.segments) > maxPooledSegments {
		return
	}
	builders.Put(p)
}
