package request

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Brownie44l1/statichttpd/internal/bufpool"
)

// DefaultMaxLineSize caps how many bytes are read while looking for the end
// of the request line.
const DefaultMaxLineSize = 4096

// ErrEmptyRequest is returned when the peer sent nothing before the read
// ended. No response should be written for it.
var ErrEmptyRequest = errors.New("no request data received")

// Request is the parsed request line. Headers and body are never read.
type Request struct {
	Method   string
	Path     string
	Protocol string
}

// IsRetrieval reports whether the request uses the only supported method.
func (r *Request) IsRetrieval() bool {
	return r.Method == MethodGet
}

// RequestFromReader reads until a line feed shows up, maxBytes have been
// buffered, or the reader fails, then parses the first line of what it got.
// A read error after some data arrived is not fatal: the partial data is
// parsed as is.
func RequestFromReader(reader io.Reader, maxBytes int) (*Request, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxLineSize
	}

	buf := bufpool.Get(maxBytes)
	defer bufpool.Put(buf)
	bufLen := 0

	for bufLen < maxBytes {
		n, err := reader.Read(buf[bufLen:])
		newline := bytes.IndexByte(buf[bufLen:bufLen+n], '\n') != -1
		bufLen += n

		if newline {
			break
		}
		if err != nil {
			if bufLen > 0 {
				break
			}
			if errors.Is(err, io.EOF) {
				return nil, ErrEmptyRequest
			}
			return nil, fmt.Errorf("read request line: %w", err)
		}
	}

	req := ParseRequestLine(buf[:bufLen])
	return &req, nil
}
