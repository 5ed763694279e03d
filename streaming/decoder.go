// Package streaming decodes the Server-Sent-Events response produced by
// the agent service's /run_sse endpoint into an ordered sequence of text
// deltas.
package streaming

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// DoneSentinel is the payload of the frame that terminates a stream.
const DoneSentinel = "[DONE]"

// deltaPath is the gjson path of the text delta inside a frame payload.
const deltaPath = "content.parts.0.text"

const readChunkSize = 4096

// Decoder incrementally decodes an SSE byte stream into text deltas. It is
// forward-only and not restartable; create a fresh Decoder for every
// response. The usage mirrors bufio.Scanner:
//
//	dec := streaming.NewDecoder(body)
//	defer dec.Close()
//	for dec.Next() {
//	    apply(dec.Delta())
//	}
//	if err := dec.Err(); err != nil { ... }
//
// Chunk boundaries in the underlying stream are irrelevant: bytes are
// buffered until a complete blank-line-delimited frame is available, which
// also keeps multi-byte UTF-8 sequences intact across reads. A frame whose
// payload fails to parse is skipped; one bad frame never aborts the stream.
//
// Decoder is not safe for concurrent use, with one exception: Close may be
// called from another goroutine to abandon the stream, which makes the
// pump's next read fail and Next return false.
type Decoder struct {
	r       io.ReadCloser
	buf     []byte
	chunk   []byte
	delta   string
	err     error
	done    bool
	readErr error

	closeOnce sync.Once
	closeErr  error
}

// NewDecoder creates a Decoder over an SSE response body. The Decoder takes
// ownership of r; Close releases it.
func NewDecoder(r io.ReadCloser) *Decoder {
	return &Decoder{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// Next advances to the next text delta. It returns false when the stream
// terminates — the DoneSentinel frame, end of input, or a read error,
// whichever comes first.
func (d *Decoder) Next() bool {
	if d.done {
		return false
	}

	for {
		for {
			frame, rest, ok := cutFrame(d.buf)
			if !ok {
				break
			}
			d.buf = rest

			payload, ok := framePayload(frame)
			if !ok {
				continue
			}
			if payload == DoneSentinel {
				d.done = true
				return false
			}
			if text, ok := extractDelta(payload); ok {
				d.delta = text
				return true
			}
		}

		if d.readErr != nil {
			d.done = true
			if d.readErr != io.EOF {
				d.err = d.readErr
				return false
			}

			// A final frame is allowed to arrive without its trailing
			// blank line; give the leftover bytes one last chance.
			if payload, ok := framePayload(d.buf); ok && payload != DoneSentinel {
				if text, ok := extractDelta(payload); ok {
					d.buf = nil
					d.delta = text
					return true
				}
			}
			d.buf = nil
			return false
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
		}
		if err != nil {
			d.readErr = err
		}
	}
}

// Delta returns the text delta produced by the last successful call to Next.
func (d *Decoder) Delta() string {
	return d.delta
}

// Err returns the first non-EOF error encountered. A stream that ended via
// the DoneSentinel or a clean EOF reports nil.
func (d *Decoder) Err() error {
	return d.err
}

// Close releases the underlying stream. It is idempotent and safe to call
// while Next is blocked in a read.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.r.Close()
	})
	return d.closeErr
}

// Text drains the remainder of the stream and returns the concatenation of
// all deltas, in order.
func (d *Decoder) Text() (string, error) {
	var b strings.Builder
	for d.Next() {
		b.WriteString(d.delta)
	}
	return b.String(), d.err
}

// cutFrame splits off the first complete frame from buf. Frames are
// delimited by a blank line; both \n\n and \r\n\r\n are accepted.
func cutFrame(buf []byte) (frame, rest []byte, ok bool) {
	i := bytes.Index(buf, []byte("\n\n"))
	j := bytes.Index(buf, []byte("\r\n\r\n"))

	switch {
	case j >= 0 && (i < 0 || j < i):
		return buf[:j], buf[j+4:], true
	case i >= 0:
		return buf[:i], buf[i+2:], true
	default:
		return nil, buf, false
	}
}

// framePayload extracts the data payload of one frame: all "data:" lines,
// joined with \n per the SSE convention. Frames without a data line (such
// as comments or bare event fields) report ok=false.
func framePayload(frame []byte) (string, bool) {
	var lines []string
	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		rest, found := bytes.CutPrefix(line, []byte("data:"))
		if !found {
			continue
		}
		rest = bytes.TrimPrefix(rest, []byte(" "))
		lines = append(lines, string(rest))
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// extractDelta pulls the text delta out of a frame payload. Payloads that
// are not valid JSON or carry no text part are skipped.
func extractDelta(payload string) (string, bool) {
	if !gjson.Valid(payload) {
		return "", false
	}
	res := gjson.Get(payload, deltaPath)
	if !res.Exists() || res.Type != gjson.String {
		return "", false
	}
	return res.String(), true
}
