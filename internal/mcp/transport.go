package mcp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMaxMessageBytes bounds a single inbound message.
const DefaultMaxMessageBytes = 16 << 20

// ErrFraming marks an unrecoverable transport error: a malformed header,
// a bad length or a truncated body. The stream cannot be resynchronized
// after one.
var ErrFraming = errors.New("framing error")

const contentLengthHeader = "content-length"

// Reader reads framed messages. Each message is either a header block with a
// Content-Length followed by exactly that many body bytes, or a single line
// of JSON terminated by '\n'.
type Reader struct {
	r   *bufio.Reader
	max int
}

// NewReader wraps r. maxBytes <= 0 selects DefaultMaxMessageBytes.
func NewReader(r io.Reader, maxBytes int) *Reader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMessageBytes
	}
	return &Reader{r: bufio.NewReader(r), max: maxBytes}
}

// ReadMessage returns the next message body. It returns io.EOF when the
// stream ends cleanly between messages and an error wrapping ErrFraming for
// anything that cannot be framed.
func (r *Reader) ReadMessage() ([]byte, error) {
	for {
		line, err := r.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}

		if isHeaderLine(trimmed) {
			if err != nil {
				return nil, fmt.Errorf("%w: stream ended inside header block", ErrFraming)
			}
			return r.readFramed(trimmed)
		}

		return trimmed, nil
	}
}

// readFramed parses the header block starting at first and reads the body.
func (r *Reader) readFramed(first []byte) ([]byte, error) {
	length := -1
	line := first

	for {
		name, value, ok := splitHeader(line)
		if !ok {
			return nil, fmt.Errorf("%w: malformed header %q", ErrFraming, truncate(line))
		}
		if strings.EqualFold(name, contentLengthHeader) {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid Content-Length %q", ErrFraming, value)
			}
			if n < 0 || n > r.max {
				return nil, fmt.Errorf("%w: Content-Length %d outside [0, %d]", ErrFraming, n, r.max)
			}
			length = n
		}

		next, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: stream ended inside header block", ErrFraming)
			}
			return nil, err
		}
		line = bytes.TrimRight(next, "\r\n")
		if len(line) == 0 {
			break
		}
	}

	if length < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", ErrFraming)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return nil, fmt.Errorf("%w: truncated body (want %d bytes): %v", ErrFraming, length, err)
	}
	return body, nil
}

// readLine reads through the next '\n'. The returned error is io.EOF only
// when the stream ends; a final unterminated line is returned with it.
func (r *Reader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > r.max {
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrFraming, r.max)
		}
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return line, io.EOF
		default:
			return nil, fmt.Errorf("failed to read message: %w", err)
		}
	}
}

// isHeaderLine reports whether line opens a header block. Only the headers
// the framing defines are recognized so a stray non-JSON line is handed to
// the parser instead of desynchronizing the stream.
func isHeaderLine(line []byte) bool {
	name, _, ok := splitHeader(line)
	if !ok {
		return false
	}
	return strings.EqualFold(name, contentLengthHeader) || strings.EqualFold(name, "content-type")
}

func splitHeader(line []byte) (name, value string, ok bool) {
	i := bytes.IndexByte(line, ':')
	if i <= 0 {
		return "", "", false
	}
	name = string(line[:i])
	for _, c := range name {
		if !(c == '-' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return "", "", false
		}
	}
	return name, strings.TrimSpace(string(line[i+1:])), true
}

func truncate(b []byte) string {
	const limit = 64
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// Writer writes messages in header form.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteMessage writes one framed message and flushes it.
func (w *Writer) WriteMessage(body []byte) error {
	if _, err := fmt.Fprintf(w.w, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	if _, err := w.w.Write(body); err != nil {
		return err
	}
	return w.w.Flush()
}
