package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/dulo/internal/common"
)

// Request describes one backend call. Body is kept as bytes so the call can
// be replayed after a token refresh.
type Request struct {
	Method      string
	Path        string
	Header      http.Header
	Body        []byte
	ContentType string

	// Credentials sends the stored refresh cookie and captures a new one
	// from the answer.
	Credentials bool

	// Anonymous calls carry no bearer token and never trigger a refresh.
	Anonymous bool

	retry bool
}

// NewJSONRequest builds a request whose body is v encoded as JSON.
func NewJSONRequest(method, path string, v any) (*Request, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return &Request{Method: method, Path: path, Body: b, ContentType: common.ContentTypeJSON}, nil
}

// Response is a fully read backend answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsJSON reports whether the answer declares a JSON content type.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.Header.Get(common.ContentTypeHeaderName), common.ContentTypeJSON)
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v any) error {
	if !r.IsJSON() {
		return fmt.Errorf("unexpected content type %q", r.Header.Get(common.ContentTypeHeaderName))
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *Response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
