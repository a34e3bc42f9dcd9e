package vault

import (
	"context"
	"strings"
)

// Data reads and writes logical paths such as secret/foo.
type Data struct {
	client *Client
}

// NewData creates a Data service bound to client.
func NewData(client *Client) *Data {
	return &Data{client: client}
}

// Kind implements Service.
func (d *Data) Kind() ServiceKind { return ServiceData }

func dataPath(path string) string {
	return "/v1/" + strings.TrimLeft(path, "/")
}

// Write stores body at path.
func (d *Data) Write(ctx context.Context, path string, body any) (*Response, error) {
	encoded, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}
	return d.client.Put(ctx, dataPath(path), encoded)
}

// Read returns the secret stored at path.
func (d *Data) Read(ctx context.Context, path string) (*Response, error) {
	return d.client.Get(ctx, dataPath(path))
}

// Delete removes the secret at path.
func (d *Data) Delete(ctx context.Context, path string) error {
	_, err := d.client.Delete(ctx, dataPath(path))
	return err
}

// List returns the child keys under path.
func (d *Data) List(ctx context.Context, path string) ([]string, error) {
	resp, err := d.client.List(ctx, dataPath(path))
	if err != nil {
		return nil, err
	}
	var result struct {
		Keys []string `json:"keys"`
	}
	if err := resp.DecodeData(&result); err != nil {
		return nil, err
	}
	return result.Keys, nil
}
