package httpserver

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

var errMalformedRequestLine = errors.New("httpserver: malformed request line")

// Response is a status line plus headers plus body, encoded on the
// wire exactly as original_source's HttpResponse::encode does.
type Response struct {
	Version string
	Code    int
	Reason  string
	Headers map[string]string
	Body    string
}

// NewResponse builds a Response with the given status, HTTP/1.1, and
// no headers set.
func NewResponse(code int, reason string) *Response {
	return &Response{
		Version: "HTTP/1.1",
		Code:    code,
		Reason:  reason,
		Headers: make(map[string]string),
	}
}

// AddHeader sets a response header.
func (r *Response) AddHeader(key, value string) { r.Headers[key] = value }

// SetBody sets the response body and its Content-Length header.
func (r *Response) SetBody(body string) {
	r.Body = body
	r.Headers["Content-Length"] = strconv.Itoa(len(body))
}

// Encode serializes the response to wire bytes.
func (r *Response) Encode() []byte {
	var b strings.Builder
	b.WriteString(r.Version)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.Code))
	b.WriteByte(' ')
	b.WriteString(r.Reason)
	b.WriteString("\r\n")

	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.Headers[k])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(r.Body)
	return []byte(b.String())
}
