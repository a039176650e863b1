package headers

import (
	"fmt"
	"io"
	"strings"
)

// Headers is an ordered set of response header fields. Names match case
// insensitively and are written back in the case they were first set with.
type Headers struct {
	names   map[string]string // lower-case key -> display name
	headers map[string]string
	order   []string
}

func NewHeaders() *Headers {
	return &Headers{
		names:   make(map[string]string),
		headers: make(map[string]string),
	}
}

// Set replaces the value for a header
func (h *Headers) Set(key, value string) {
	lower := h.track(key)
	h.headers[lower] = value
}

// WriteTo writes every field as "Name: value\r\n" in insertion order. It
// does not write the blank line that ends the header block.
func (h *Headers) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, lower := range h.order {
		n, err := fmt.Fprintf(w, "%s: %s\r\n", h.names[lower], h.headers[lower])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (h *Headers) track(key string) string {
	lower := strings.ToLower(key)
	if _, ok := h.names[lower]; !ok {
		h.names[lower] = key
		h.order = append(h.order, lower)
	}
	return lower
}
