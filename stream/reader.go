// ABOUTME: Pull-style adapter over Decoder for reading events from an io.Reader.
// ABOUTME: Next returns io.EOF after [DONE] or when the underlying reader is exhausted.
package stream

import (
	"io"

	"github.com/2389-research/sitegen/genevent"
)

const readChunk = 4096

// Reader yields events decoded from r.
type Reader struct {
	r       io.Reader
	dec     Decoder
	pending []genevent.Event
	buf     []byte
	eof     bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, buf: make([]byte, readChunk)}
}

// Next returns the next event. Transport errors are returned as-is.
func (r *Reader) Next() (genevent.Event, error) {
	for {
		if len(r.pending) > 0 {
			e := r.pending[0]
			r.pending = r.pending[1:]
			return e, nil
		}
		if r.eof || r.dec.Done() {
			return nil, io.EOF
		}

		n, err := r.r.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Feed(r.buf[:n])...)
		}
		if err == io.EOF {
			r.eof = true
			r.pending = append(r.pending, r.dec.Flush()...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// Done reports whether the stream ended with the [DONE] sentinel.
func (r *Reader) Done() bool { return r.dec.Done() }

// Dropped returns the number of malformed frames skipped so far.
func (r *Reader) Dropped() int { return r.dec.Dropped() }
