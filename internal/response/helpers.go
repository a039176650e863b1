package response

import (
	"fmt"
	"io"
	"strconv"

	"github.com/Brownie44l1/statichttpd/internal/headers"
)

// MethodNotAllowedBody is the plain text body of every 405 reply.
const MethodNotAllowedBody = "Method Not Supported\n"

// baseHeaders returns the header set every reply carries.
func (w *Writer) baseHeaders(contentType string, contentLength int64) *headers.Headers {
	h := headers.NewHeaders()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(contentLength, 10))
	h.Set("Date", w.Now().UTC().Format(DateFormat))
	h.Set("Server", w.ServerName)
	h.Set("Connection", "close")
	return h
}

// BytesResponse writes a response with an in-memory body
func (w *Writer) BytesResponse(code StatusCode, contentType string, body []byte) error {
	if err := w.WriteStatusLine(code); err != nil {
		return err
	}

	if err := w.WriteHeaders(w.baseHeaders(contentType, int64(len(body)))); err != nil {
		return err
	}

	return w.WriteBody(body)
}

// SendFile writes a 200 response and streams size bytes of body after it.
func (w *Writer) SendFile(contentType string, size int64, body io.Reader) error {
	if err := w.WriteStatusLine(StatusOK); err != nil {
		return err
	}

	if err := w.WriteHeaders(w.baseHeaders(contentType, size)); err != nil {
		return err
	}

	return w.StreamBody(body, size)
}

// SendError writes a small HTML page naming the status.
func (w *Writer) SendError(code StatusCode) error {
	body := fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", code, StatusText(code))
	return w.BytesResponse(code, "text/html", []byte(body))
}

// SendMethodNotAllowed writes the fixed 405 reply.
func (w *Writer) SendMethodNotAllowed() error {
	return w.BytesResponse(StatusMethodNotAllowed, "text/plain", []byte(MethodNotAllowedBody))
}
