// ABOUTME: Wire framing for generation events over text/event-stream.
// ABOUTME: Event frames carry one JSON event, plus a keepalive comment and the [DONE] sentinel.
package stream

import (
	"net/http"

	"github.com/2389-research/sitegen/genevent"
)

const (
	// DoneFrame signals a clean end of stream. It is not JSON.
	DoneFrame = "data: [DONE]\n\n"
	// KeepaliveFrame is a comment frame decoders must ignore.
	KeepaliveFrame = ": keepalive\n\n"

	doneSentinel = "[DONE]"
)

// Encode renders e as a single "data:" frame.
func Encode(e genevent.Event) ([]byte, error) {
	body, err := genevent.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+8)
	out = append(out, "data: "...)
	out = append(out, body...)
	out = append(out, '\n', '\n')
	return out, nil
}

// SetHeaders applies the response headers for an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}
