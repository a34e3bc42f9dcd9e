package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/getgrowly/vault-lifecycle/pkg/options"
)

// Transit wraps the /v1/transit endpoints.
type Transit struct {
	client *Client
}

// NewTransit creates a Transit service bound to client.
func NewTransit(client *Client) *Transit {
	return &Transit{client: client}
}

// Kind implements Service.
func (t *Transit) Kind() ServiceKind { return ServiceTransit }

func (t *Transit) post(ctx context.Context, path string, body map[string]any) (*Response, error) {
	encoded, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}
	return t.client.Post(ctx, path, encoded)
}

func keyPath(prefix, keyName string) string {
	return "/v1/transit/" + prefix + "/" + url.PathEscape(keyName)
}

// GetKey returns information about the named key.
func (t *Transit) GetKey(ctx context.Context, keyName string) (*Response, error) {
	return t.client.Get(ctx, keyPath("keys", keyName))
}

// CreateKey creates a named encryption key. "type" is required.
func (t *Transit) CreateKey(ctx context.Context, keyName string, params map[string]any) error {
	body, err := options.ResolveRequired(params, []string{"type", "derived", "convergent_encryption"}, "type")
	if err != nil {
		return err
	}
	_, err = t.post(ctx, keyPath("keys", keyName), body)
	return err
}

// RotateKey rotates the named key.
func (t *Transit) RotateKey(ctx context.Context, keyName string) error {
	_, err := t.client.Post(ctx, keyPath("keys", keyName)+"/rotate", nil)
	return err
}

// Encrypt encrypts plaintext and returns the ciphertext.
func (t *Transit) Encrypt(ctx context.Context, keyName string, plaintext []byte, params map[string]any) (string, error) {
	body := options.Resolve(params, "context", "nonce")
	body["plaintext"] = base64.StdEncoding.EncodeToString(plaintext)

	resp, err := t.post(ctx, keyPath("encrypt", keyName), body)
	if err != nil {
		return "", err
	}
	var result struct {
		Ciphertext string `json:"ciphertext"`
	}
	if err := resp.DecodeData(&result); err != nil {
		return "", err
	}
	return result.Ciphertext, nil
}

// Decrypt decrypts ciphertext and returns the plaintext.
func (t *Transit) Decrypt(ctx context.Context, keyName, ciphertext string, params map[string]any) ([]byte, error) {
	body := options.Resolve(params, "context", "nonce")
	body["ciphertext"] = ciphertext

	resp, err := t.post(ctx, keyPath("decrypt", keyName), body)
	if err != nil {
		return nil, err
	}
	var result struct {
		Plaintext string `json:"plaintext"`
	}
	if err := resp.DecodeData(&result); err != nil {
		return nil, err
	}
	plaintext, err := base64.StdEncoding.DecodeString(result.Plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plaintext: %w", err)
	}
	return plaintext, nil
}

// Rewrap re-encrypts ciphertext with the latest version of the key.
func (t *Transit) Rewrap(ctx context.Context, keyName, ciphertext string, params map[string]any) (string, error) {
	body := options.Resolve(params, "context", "nonce")
	body["ciphertext"] = ciphertext

	resp, err := t.post(ctx, keyPath("rewrap", keyName), body)
	if err != nil {
		return "", err
	}
	var result struct {
		Ciphertext string `json:"ciphertext"`
	}
	if err := resp.DecodeData(&result); err != nil {
		return "", err
	}
	return result.Ciphertext, nil
}
