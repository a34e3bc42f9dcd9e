package vault

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	// Status is the status line as reported by net/http, e.g. "200 OK".
	Status string
	Header http.Header
	Body   []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("failed to decode response: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// JSON decodes the body as a JSON object.
func (r *Response) JSON() (map[string]any, error) {
	var out map[string]any
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeData unmarshals the "data" field of the standard Vault envelope.
func (r *Response) DecodeData(v any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := r.Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("failed to decode response: no data field")
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// reason returns the reason phrase without the leading status code.
func (r *Response) reason() string {
	if _, phrase, ok := strings.Cut(r.Status, " "); ok && phrase != "" {
		return phrase
	}
	return http.StatusText(r.StatusCode)
}
