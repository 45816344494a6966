package httpvalidator

import (
	"bytes"
	"net/http"
	"sync"
)

// Pool capacities
const (
	bufferInitialCap = 4 << 10
	bufferMaxCap     = 1 << 20
)

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, bufferInitialCap))
	},
}

// getBuffer retrieves an empty buffer from the pool.
func getBuffer() *bytes.Buffer {
	b := bufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// putBuffer returns a buffer to the pool. Oversized buffers are dropped.
func putBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > bufferMaxCap {
		return
	}
	bufferPool.Put(b)
}

// recorder captures the downstream handler's response in a pooled buffer.
type recorder struct {
	header http.Header
	status int
	buf    *bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), buf: getBuffer()}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.buf.Write(p)
}

// result copies the captured response out and releases the buffer.
func (r *recorder) result() *Response {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	resp := &Response{
		StatusCode: status,
		Header:     r.header,
		Body:       bytes.Clone(r.buf.Bytes()),
	}
	putBuffer(r.buf)
	r.buf = nil
	return resp
}
