// Package stream decodes the partner answer stream: newline delimited
// "data: <json>" records pushed by the backend over a long-lived response.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/domain"
)

const (
	dataPrefix = "data: "
	readSize   = 4 * 1024

	// DefaultMaxLine bounds a single record line
	DefaultMaxLine = 1 << 20
)

// ErrStop can be returned by a Decode callback to end decoding early
var ErrStop = errors.New("stream: stop")

// Decoder turns arbitrarily split text chunks into complete frames.
// Chunks need not align with record boundaries; an incomplete trailing line
// is carried over to the next Feed. A Decoder is not safe for concurrent use.
type Decoder struct {
	// MaxLine is the longest line kept, DefaultMaxLine when zero. Longer
	// lines are dropped however they are split across chunks.
	MaxLine int

	buf        []byte
	discarding bool
}

// Feed appends chunk to the buffer and returns every complete data frame
// it now contains, in order. Lines without the data marker are dropped.
func (d *Decoder) Feed(chunk string) []domain.Frame {
	d.buf = append(d.buf, chunk...)
	limit := d.maxLine()

	var frames []domain.Frame
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		line := d.buf[start : start+i]
		start += i + 1

		switch {
		case d.discarding:
			// tail of a line already reported as oversized
			d.discarding = false
		case len(line) > limit:
			log.Warn().Int("bytes", len(line)).Int("limit", limit).Msg("dropping oversized stream line")
		default:
			if f, ok := parseLine(line); ok {
				frames = append(frames, f)
			}
		}
	}

	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
	}

	if len(d.buf) > limit {
		log.Warn().Int("bytes", len(d.buf)).Int("limit", limit).Msg("dropping oversized stream line")
		d.buf = d.buf[:0]
		d.discarding = true
	}
	return frames
}

func (d *Decoder) maxLine() int {
	if d.MaxLine > 0 {
		return d.MaxLine
	}
	return DefaultMaxLine
}

// Flush drops whatever partial line is still buffered and returns its size.
// The far end terminates every record before closing, so a leftover is never
// a frame.
func (d *Decoder) Flush() int {
	n := len(d.buf)
	d.buf = d.buf[:0]
	d.discarding = false
	return n
}

// Buffered returns the number of bytes waiting for a newline
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func parseLine(line []byte) (domain.Frame, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return domain.Frame{}, false
	}
	return domain.Frame{Raw: string(line[len(dataPrefix):])}, true
}

// Decode reads r until EOF and calls fn for every frame in arrival order.
// It returns nil on a clean end of stream or when fn returns ErrStop, the
// context error when ctx is done, and otherwise the first read or callback
// error.
func Decode(ctx context.Context, r io.Reader, fn func(domain.Frame) error) error {
	var dec Decoder
	buf := make([]byte, readSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(string(buf[:n])) {
				if err := fn(f); err != nil {
					if errors.Is(err, ErrStop) {
						return nil
					}
					return err
				}
			}
		}

		if readErr != nil {
			if left := dec.Flush(); left > 0 {
				log.Debug().Int("bytes", left).Msg("discarding unterminated trailing frame")
			}
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			return readErr
		}
	}
}
