package response

import (
	"fmt"
	"io"
	"time"

	"github.com/Brownie44l1/statichttpd/internal/bufpool"
	"github.com/Brownie44l1/statichttpd/internal/headers"
)

// DefaultServerName is sent in the Server header unless overridden.
const DefaultServerName = "statichttpd/1.0"

// DateFormat is RFC 1123 with a literal GMT zone, as HTTP dates require.
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes a single HTTP response to an io.Writer
type Writer struct {
	// ServerName is the value of the Server header.
	ServerName string

	// Now supplies the time for the Date header.
	Now func() time.Time

	w          io.Writer
	state      writerState
	statusCode StatusCode
	bodyBytes  int64
	hadError   bool
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		ServerName: DefaultServerName,
		Now:        time.Now,
		w:          w,
		state:      stateStart,
	}
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}

	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, StatusText(code))
	if _, err := io.WriteString(w.w, statusLine); err != nil {
		w.hadError = true
		return err
	}

	w.statusCode = code
	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes all header fields followed by the blank line
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("must write status line before headers")
	}

	if _, err := h.WriteTo(w.w); err != nil {
		w.hadError = true
		return err
	}

	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		w.hadError = true
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes the complete response body
func (w *Writer) WriteBody(data []byte) error {
	if w.state != stateHeadersWritten {
		return fmt.Errorf("must write headers before body")
	}

	if len(data) > 0 {
		n, err := w.w.Write(data)
		w.bodyBytes += int64(n)
		if err != nil {
			w.hadError = true
			return err
		}
	}

	w.state = stateBodyWritten
	return nil
}

// StreamBody copies exactly size bytes from r in fixed-size chunks. A
// source that ends early is reported as io.ErrUnexpectedEOF; the peer will
// see a short body since the headers are already out.
func (w *Writer) StreamBody(r io.Reader, size int64) error {
	if w.state != stateHeadersWritten {
		return fmt.Errorf("must write headers before body")
	}

	buf := bufpool.Get(bufpool.ChunkSize)
	defer bufpool.Put(buf)

	src := io.LimitReader(r, size)
	var sent int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, err := w.w.Write(buf[:n])
			sent += int64(wn)
			w.bodyBytes += int64(wn)
			if err != nil {
				w.hadError = true
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			w.hadError = true
			return rerr
		}
	}

	w.state = stateBodyWritten
	if sent != size {
		w.hadError = true
		return fmt.Errorf("sent %d of %d body bytes: %w", sent, size, io.ErrUnexpectedEOF)
	}
	return nil
}

// State tracking methods for logging and metrics

func (w *Writer) HadError() bool {
	return w.hadError
}

func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

// Started reports whether anything has been written yet.
func (w *Writer) Started() bool {
	return w.state != stateStart
}

// BodyBytes returns the number of body bytes written so far.
func (w *Writer) BodyBytes() int64 {
	return w.bodyBytes
}
