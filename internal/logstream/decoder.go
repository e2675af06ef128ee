package logstream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
)

// Decoder splits a byte stream into lines. Chunks do not need to be aligned to
// line boundaries; the tail after the last line feed is kept until more bytes
// arrive or the stream ends.
type Decoder struct {
	pending []byte
}

// Write consumes a chunk and returns every line it completed, without the
// trailing line feed.
func (d *Decoder) Write(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			d.pending = append(d.pending, chunk...)
			break
		}
		d.pending = append(d.pending, chunk[:i]...)
		lines = append(lines, string(d.pending))
		d.pending = d.pending[:0]
		chunk = chunk[i+1:]
	}
	return lines
}

// Flush returns the unterminated tail, if any, and resets the decoder.
func (d *Decoder) Flush() (string, bool) {
	if len(d.pending) == 0 {
		return "", false
	}
	line := string(d.pending)
	d.pending = nil
	return line, true
}

// Pump reads r until EOF and hands every decoded line to emit, in stream order.
// The final unterminated line is emitted when the stream ends. A reader closed
// underneath Pump is treated as end of stream.
func Pump(ctx context.Context, r io.Reader, emit func(line string)) error {
	var dec Decoder
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range dec.Write(buf[:n]) {
				emit(line)
			}
		}
		if err != nil {
			if tail, ok := dec.Flush(); ok {
				emit(tail)
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
