// ABOUTME: Tests for the keepalive-emitting stream writer.
// ABOUTME: Covers keepalive cadence, shutdown on close, cancel and write failure.
package stream_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/sitegen/genevent"
	"github.com/2389-research/sitegen/stream"
)

// countingWriter records writes and fails once failAfter writes have succeeded.
type countingWriter struct {
	mu        sync.Mutex
	writes    int
	failAfter int
	buf       strings.Builder
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAfter > 0 && w.writes >= w.failAfter {
		return 0, errors.New("broken pipe")
	}
	w.writes++
	w.buf.Write(p)
	return len(p), nil
}

func (w *countingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

func TestWriter_SendAndDone(t *testing.T) {
	rec := httptest.NewRecorder()
	w := stream.NewWriter(context.Background(), rec, time.Hour)

	if err := w.Send(genevent.StageStart{Stage: genevent.StageConfigAssembly}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := w.Done(); err != nil {
		t.Fatalf("done: %v", err)
	}

	body := rec.Body.String()
	want := "data: {\"type\":\"stage-start\",\"stage\":\"config-assembly\"}\n\n" + stream.DoneFrame
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
	if !rec.Flushed {
		t.Error("expected recorder to be flushed")
	}
	if err := w.Send(genevent.GenerationComplete{}); !errors.Is(err, stream.ErrClosed) {
		t.Errorf("send after done: got %v, want ErrClosed", err)
	}
}

func TestWriter_EmitsKeepalives(t *testing.T) {
	cw := &countingWriter{}
	w := stream.NewWriter(context.Background(), cw, 5*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for cw.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Close()

	if cw.count() < 3 {
		t.Fatalf("got %d keepalives, want at least 3", cw.count())
	}
	if !strings.HasPrefix(cw.buf.String(), stream.KeepaliveFrame) {
		t.Errorf("unexpected frame %q", cw.buf.String())
	}

	after := cw.count()
	time.Sleep(30 * time.Millisecond)
	if cw.count() != after {
		t.Error("keepalive kept writing after Close")
	}
}

func TestWriter_KeepaliveStopsOnWriteError(t *testing.T) {
	cw := &countingWriter{failAfter: 1}
	w := stream.NewWriter(context.Background(), cw, time.Hour)

	if err := w.Send(genevent.ComponentStart{ComponentName: "Hero"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := w.Send(genevent.ComponentStart{ComponentName: "Footer"}); err == nil {
		t.Fatal("expected write error")
	}
	if w.Err() == nil {
		t.Error("Err() should report the write failure")
	}

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after write error")
	}
}

func TestWriter_KeepaliveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cw := &countingWriter{}
	w := stream.NewWriter(ctx, cw, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after cancel")
	}
	after := cw.count()
	time.Sleep(20 * time.Millisecond)
	if cw.count() != after {
		t.Error("keepalive kept writing after cancel")
	}
}

func TestWriter_CloseIdempotent(t *testing.T) {
	w := stream.NewWriter(context.Background(), &countingWriter{}, time.Hour)
	w.Close()
	w.Close()
}
