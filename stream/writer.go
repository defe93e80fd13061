// ABOUTME: Producer side of the event stream: serialized frame writes plus a keepalive ticker.
// ABOUTME: The keepalive goroutine stops on Close, on the first write error, or on context cancel.
package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/2389-research/sitegen/genevent"
)

// DefaultKeepalive is well under the 30-60s idle cutoff common to proxies.
const DefaultKeepalive = 10 * time.Second

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("stream: writer closed")

// Writer emits frames to an underlying writer, flushing after each frame when
// the writer is an http.Flusher.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	err     error
	closed  bool

	stop     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}
}

// NewWriter starts a Writer whose keepalive fires every interval. A
// non-positive interval uses DefaultKeepalive.
func NewWriter(ctx context.Context, w io.Writer, interval time.Duration) *Writer {
	if interval <= 0 {
		interval = DefaultKeepalive
	}
	sw := &Writer{
		w:      w,
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	go sw.keepalive(ctx, interval)
	return sw
}

func (sw *Writer) keepalive(ctx context.Context, interval time.Duration) {
	defer close(sw.exited)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stop:
			return
		case <-ticker.C:
			if err := sw.write([]byte(KeepaliveFrame)); err != nil {
				log.Printf("component=stream action=keepalive_failed err=%v", err)
				return
			}
		}
	}
}

// write performs one serialized frame write. The first failure is sticky and
// stops the keepalive.
func (sw *Writer) write(frame []byte) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.closed {
		return ErrClosed
	}
	if sw.err != nil {
		return sw.err
	}
	if _, err := sw.w.Write(frame); err != nil {
		sw.err = err
		sw.signalStop()
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

func (sw *Writer) signalStop() {
	sw.stopOnce.Do(func() { close(sw.stop) })
}

// Send writes one event frame.
func (sw *Writer) Send(e genevent.Event) error {
	frame, err := Encode(e)
	if err != nil {
		return err
	}
	return sw.write(frame)
}

// Done writes the [DONE] sentinel and closes the writer.
func (sw *Writer) Done() error {
	err := sw.write([]byte(DoneFrame))
	sw.Close()
	return err
}

// Err returns the first write error, if any.
func (sw *Writer) Err() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.err
}

// Close stops the keepalive and waits for it to exit. It is safe to call
// more than once.
func (sw *Writer) Close() {
	sw.signalStop()
	<-sw.exited
	sw.mu.Lock()
	sw.closed = true
	sw.mu.Unlock()
}
