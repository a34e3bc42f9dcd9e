package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/getgrowly/vault-lifecycle/pkg/options"
)

// Sys wraps the /v1/sys endpoints.
type Sys struct {
	client *Client
}

// NewSys creates a Sys service bound to client.
func NewSys(client *Client) *Sys {
	return &Sys{client: client}
}

// Kind implements Service.
func (s *Sys) Kind() ServiceKind { return ServiceSys }

func (s *Sys) putJSON(ctx context.Context, path string, body any) (*Response, error) {
	encoded, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}
	return s.client.Put(ctx, path, encoded)
}

func (s *Sys) postJSON(ctx context.Context, path string, body any) (*Response, error) {
	encoded, err := EncodeBody(body)
	if err != nil {
		return nil, err
	}
	return s.client.Post(ctx, path, encoded)
}

// InitStatus returns the initialization status.
func (s *Sys) InitStatus(ctx context.Context) (*InitStatus, error) {
	resp, err := s.client.Get(ctx, "/v1/sys/init")
	if err != nil {
		return nil, err
	}
	var status InitStatus
	if err := resp.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Init initializes a new Vault. secret_shares and secret_threshold are
// required; pgp_keys is optional.
func (s *Sys) Init(ctx context.Context, params map[string]any) (*InitResponse, error) {
	body, err := options.ResolveRequired(params,
		[]string{"secret_shares", "secret_threshold", "pgp_keys"},
		"secret_shares", "secret_threshold")
	if err != nil {
		return nil, err
	}

	resp, err := s.putJSON(ctx, "/v1/sys/init", body)
	if err != nil {
		return nil, err
	}
	var initResp InitResponse
	if err := resp.Decode(&initResp); err != nil {
		return nil, err
	}
	return &initResp, nil
}

// SealStatus returns the seal status. This endpoint is unauthenticated.
func (s *Sys) SealStatus(ctx context.Context) (*SealStatus, error) {
	resp, err := s.client.Get(ctx, "/v1/sys/seal-status")
	if err != nil {
		return nil, err
	}
	var status SealStatus
	if err := resp.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Sealed reports whether the Vault is sealed.
func (s *Sys) Sealed(ctx context.Context) (bool, error) {
	status, err := s.SealStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.Sealed, nil
}

// Seal seals the Vault. In HA mode only the active node can be sealed.
func (s *Sys) Seal(ctx context.Context) error {
	_, err := s.client.Put(ctx, "/v1/sys/seal", nil)
	return err
}

// Unseal submits a single key share. Either key or reset must be set.
func (s *Sys) Unseal(ctx context.Context, params map[string]any) (*SealStatus, error) {
	resp, err := s.putJSON(ctx, "/v1/sys/unseal", options.Resolve(params, "key", "reset"))
	if err != nil {
		return nil, err
	}
	var status SealStatus
	if err := resp.Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Mounts lists the mounted secret backends keyed by path (with trailing slash).
func (s *Sys) Mounts(ctx context.Context) (map[string]Mount, error) {
	resp, err := s.client.Get(ctx, "/v1/sys/mounts")
	if err != nil {
		return nil, err
	}

	// Newer servers wrap the mounts in "data" and also repeat them at the top
	// level next to request metadata, so decode leniently.
	var raw map[string]json.RawMessage
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}
	if data, ok := raw["data"]; ok && string(data) != "null" {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("failed to decode mounts: %w", err)
		}
		raw = inner
	}

	mounts := make(map[string]Mount)
	for path, value := range raw {
		if !strings.HasSuffix(path, "/") {
			continue
		}
		var m Mount
		if err := json.Unmarshal(value, &m); err != nil {
			return nil, fmt.Errorf("failed to decode mount %s: %w", path, err)
		}
		mounts[path] = m
	}
	return mounts, nil
}

// CreateMount mounts a new secret backend at name.
func (s *Sys) CreateMount(ctx context.Context, name string, params map[string]any) error {
	_, err := s.postJSON(ctx, "/v1/sys/mounts/"+name, options.Resolve(params, "type", "description", "config"))
	return err
}

// DeleteMount unmounts the backend at name.
func (s *Sys) DeleteMount(ctx context.Context, name string) error {
	_, err := s.client.Delete(ctx, "/v1/sys/mounts/"+name)
	return err
}

// Remount moves a backend to a new mount point.
func (s *Sys) Remount(ctx context.Context, from, to string) error {
	_, err := s.postJSON(ctx, "/v1/sys/remount", map[string]string{"from": from, "to": to})
	return err
}

// TuneMount reads the mount tuning when params is empty and updates it
// otherwise.
func (s *Sys) TuneMount(ctx context.Context, name string, params map[string]any) (*Response, error) {
	path := "/v1/sys/mounts/" + name + "/tune"
	if len(params) == 0 {
		return s.client.Get(ctx, path)
	}
	return s.postJSON(ctx, path, options.Resolve(params, "default_lease_ttl", "max_lease_ttl"))
}

// Policies lists all policies.
func (s *Sys) Policies(ctx context.Context) (*Response, error) {
	return s.client.Get(ctx, "/v1/sys/policy")
}

// Policy reads the rules of the named policy.
func (s *Sys) Policy(ctx context.Context, name string) (*Response, error) {
	return s.client.Get(ctx, "/v1/sys/policy/"+name)
}

// PutPolicy adds or updates a policy.
func (s *Sys) PutPolicy(ctx context.Context, name string, rules any) error {
	_, err := s.putJSON(ctx, "/v1/sys/policy/"+name, rules)
	return err
}

// DeletePolicy deletes the named policy.
func (s *Sys) DeletePolicy(ctx context.Context, name string) error {
	_, err := s.client.Delete(ctx, "/v1/sys/policy/"+name)
	return err
}

// Capabilities returns the capabilities of token on path. An empty token
// queries the calling token via capabilities-self.
func (s *Sys) Capabilities(ctx context.Context, path, token string) (*Response, error) {
	body := map[string]string{"path": path}
	if token == "" {
		return s.postJSON(ctx, "/v1/sys/capabilities-self", body)
	}
	body["token"] = token
	return s.postJSON(ctx, "/v1/sys/capabilities", body)
}

// Renew extends a lease. An empty increment uses the server default.
func (s *Sys) Renew(ctx context.Context, leaseID, increment string) (*Response, error) {
	body := map[string]string{}
	if increment != "" {
		body["increment"] = increment
	}
	return s.putJSON(ctx, "/v1/sys/renew/"+leaseID, body)
}

// Revoke revokes a lease immediately.
func (s *Sys) Revoke(ctx context.Context, leaseID string) error {
	_, err := s.client.Put(ctx, "/v1/sys/revoke/"+leaseID, nil)
	return err
}

// RevokePrefix revokes every lease under prefix.
func (s *Sys) RevokePrefix(ctx context.Context, prefix string) error {
	_, err := s.client.Put(ctx, "/v1/sys/revoke-prefix/"+prefix, nil)
	return err
}

// RevokeForce revokes every lease under prefix ignoring backend errors.
func (s *Sys) RevokeForce(ctx context.Context, prefix string) error {
	_, err := s.client.Put(ctx, "/v1/sys/revoke-force/"+prefix, nil)
	return err
}

// Leader returns the HA status and current leader.
func (s *Sys) Leader(ctx context.Context) (*Response, error) {
	return s.client.Get(ctx, "/v1/sys/leader")
}

// StepDown forces the node to give up active status.
func (s *Sys) StepDown(ctx context.Context) error {
	_, err := s.client.Put(ctx, "/v1/sys/step-down", nil)
	return err
}

// KeyStatus returns information about the current encryption key.
func (s *Sys) KeyStatus(ctx context.Context) (*Response, error) {
	return s.client.Get(ctx, "/v1/sys/key-status")
}

// Rotate rotates the backend encryption key.
func (s *Sys) Rotate(ctx context.Context) error {
	_, err := s.client.Put(ctx, "/v1/sys/rotate", nil)
	return err
}

// Raw reads the raw storage value at path.
func (s *Sys) Raw(ctx context.Context, path string) (*Response, error) {
	return s.client.Get(ctx, "/v1/sys/raw/"+path)
}

// PutRaw writes value to the raw storage path.
func (s *Sys) PutRaw(ctx context.Context, path, value string) error {
	_, err := s.putJSON(ctx, "/v1/sys/raw/"+path, map[string]string{"value": value})
	return err
}

// DeleteRaw deletes the raw storage path.
func (s *Sys) DeleteRaw(ctx context.Context, path string) error {
	_, err := s.client.Delete(ctx, "/v1/sys/raw/"+path)
	return err
}

// Health returns the health status. query tunes the status codes the
// endpoint answers with (standbyok, sealedcode, ...).
//
// A server error still carries the response, so degraded nodes can be
// inspected through (*Error).Response.
func (s *Sys) Health(ctx context.Context, query url.Values) (HealthState, error) {
	path := "/v1/sys/health"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var state HealthState
	if err := resp.Decode(&state); err != nil {
		return nil, err
	}
	return state, nil
}
