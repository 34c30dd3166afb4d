package serialize

import "io"

// DefaultChunkSize is the transport chunk size
const DefaultChunkSize = 1 << 20

// ChunkWriter re-buffers small serializer writes into fixed-size chunks
// before forwarding them downstream. A write overflowing the current
// chunk is split, with the remainder carried into the next chunk. Flush
// emits any final undersized chunk.
type ChunkWriter struct {
	w    io.Writer
	size int
	buf  []byte
}

// NewChunkWriter wraps w with chunked buffering; size <= 0 selects the
// default chunk size.
func NewChunkWriter(w io.Writer, size int) *ChunkWriter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &ChunkWriter{w: w, size: size, buf: make([]byte, 0, size)}
}

func (c *ChunkWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		room := c.size - len(c.buf)
		if room > len(p) {
			room = len(p)
		}
		c.buf = append(c.buf, p[:room]...)
		p = p[room:]
		written += room

		if len(c.buf) == c.size {
			if err := c.emit(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush forwards the buffered fragment as a final, possibly undersized,
// chunk.
func (c *ChunkWriter) Flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	return c.emit()
}

func (c *ChunkWriter) emit() error {
	_, err := c.w.Write(c.buf)
	c.buf = c.buf[:0]
	if err != nil {
		return err
	}
	if f, ok := c.w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}
