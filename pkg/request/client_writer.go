package request

import (
	"errors"
	"net/http"
)

// ErrInternalServer is returned to the client when a handler fails unexpectedly.
var ErrInternalServer = errors.New("internal server error")

// ClientWriter wraps a response writer and records the status code written to it.
type ClientWriter struct {
	http.ResponseWriter
	statusCode int
}

// NewClientWriter creates a new ClientWriter. The status code defaults to 200.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (c *ClientWriter) WriteHeader(code int) {
	c.statusCode = code
	c.ResponseWriter.WriteHeader(code)
}

// StatusCode returns the status code written to the response.
func (c *ClientWriter) StatusCode() int {
	return c.statusCode
}
