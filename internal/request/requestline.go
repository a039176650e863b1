package request

import (
	"bytes"
	"strings"
)

const MethodGet = "GET"

// ParseRequestLine parses: METHOD PATH PROTOCOL
// Only the text before the first line feed is considered. Tokens are
// separated by any whitespace, missing ones stay empty and extra ones are
// dropped.
func ParseRequestLine(data []byte) Request {
	if idx := bytes.IndexByte(data, '\n'); idx != -1 {
		data = data[:idx]
	}

	parts := strings.Fields(string(data))

	var req Request
	if len(parts) > 0 {
		req.Method = parts[0]
	}
	if len(parts) > 1 {
		req.Path = parts[1]
	}
	if len(parts) > 2 {
		req.Protocol = parts[2]
	}
	return req
}
