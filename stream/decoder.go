// ABOUTME: Consumer side of the event stream: a push decoder tolerant of arbitrary chunk splits.
// ABOUTME: Buffers partial frames, skips comments and blank lines, and drops malformed frames.
package stream

import (
	"bytes"
	"strings"

	"github.com/2389-research/sitegen/genevent"
)

// Decoder turns a sequence of byte chunks into events. The zero value is
// ready to use.
type Decoder struct {
	buf     []byte
	done    bool
	dropped int
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *Decoder) Done() bool { return d.done }

// Dropped returns the number of frames discarded as malformed.
func (d *Decoder) Dropped() int { return d.dropped }

// Buffered returns the number of undecoded bytes held.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Feed appends chunk and returns every event completed by it.
func (d *Decoder) Feed(chunk []byte) []genevent.Event {
	if d.done {
		return nil
	}
	d.buf = append(d.buf, chunk...)
	// A CR left at the end waits for its LF in the next chunk.
	d.buf = bytes.ReplaceAll(d.buf, []byte("\r\n"), []byte("\n"))

	var out []genevent.Event
	for !d.done {
		idx := bytes.Index(d.buf, []byte("\n\n"))
		if idx < 0 {
			break
		}
		frame := string(d.buf[:idx])
		d.buf = d.buf[idx+2:]
		if e, ok := d.parse(frame); ok {
			out = append(out, e)
		}
	}
	if d.done {
		d.buf = nil
	}
	return out
}

// Flush makes one best-effort parse of any leftover bytes once the
// underlying stream has ended.
func (d *Decoder) Flush() []genevent.Event {
	if d.done || len(d.buf) == 0 {
		d.buf = nil
		return nil
	}
	frame := strings.TrimRight(string(d.buf), "\r\n")
	d.buf = nil
	if e, ok := d.parse(frame); ok {
		return []genevent.Event{e}
	}
	return nil
}

// parse decodes one frame without its terminating blank line.
func (d *Decoder) parse(frame string) (genevent.Event, bool) {
	var data []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value := parseLine(line)
		if field == "data" {
			data = append(data, value)
		}
	}
	if len(data) == 0 {
		return nil, false
	}

	payload := strings.Join(data, "\n")
	if strings.TrimSpace(payload) == doneSentinel {
		d.done = true
		return nil, false
	}
	e, err := genevent.Unmarshal([]byte(payload))
	if err != nil {
		d.dropped++
		return nil, false
	}
	return e, true
}

// parseLine splits a field line at the first colon and strips a single
// leading space from the value.
func parseLine(line string) (field, value string) {
	i := strings.IndexByte(line, ':')
	if i == -1 {
		return line, ""
	}
	field, value = line[:i], line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
