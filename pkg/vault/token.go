package vault

import (
	"context"

	"github.com/getgrowly/vault-lifecycle/pkg/options"
)

var tokenCreateParams = []string{
	"id", "policies", "meta", "no_parent", "no_default_policy",
	"renewable", "ttl", "explicit_max_ttl", "display_name", "num_uses",
}

var tokenRoleParams = []string{
	"allowed_policies", "orphan", "period", "renewable", "path_suffix", "explicit_max_ttl",
}

// Token wraps the /v1/auth/token endpoints.
type Token struct {
	client *Client
}

// NewToken creates a Token service bound to client.
func NewToken(client *Client) *Token {
	return &Token{client: client}
}

// Kind implements Service.
func (t *Token) Kind() ServiceKind { return ServiceToken }

func (t *Token) post(ctx context.Context, path string, body any) (*Response, error) {
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = EncodeBody(body); err != nil {
			return nil, err
		}
	}
	return t.client.Post(ctx, path, encoded)
}

// Auth is the "auth" block returned by login and token creation endpoints.
type Auth struct {
	ClientToken   string            `json:"client_token"`
	Accessor      string            `json:"accessor"`
	Policies      []string          `json:"policies"`
	Metadata      map[string]string `json:"metadata"`
	LeaseDuration int               `json:"lease_duration"`
	Renewable     bool              `json:"renewable"`
}

func decodeAuth(resp *Response) (*Auth, error) {
	var body struct {
		Auth *Auth `json:"auth"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	if body.Auth == nil {
		return nil, &Error{Kind: KindClient, StatusCode: resp.StatusCode, Response: resp,
			Message: "vault response carried no auth block"}
	}
	return body.Auth, nil
}

// Create creates a new token. Some options require a root token.
func (t *Token) Create(ctx context.Context, params map[string]any) (*Auth, error) {
	resp, err := t.post(ctx, "/v1/auth/token/create", options.Resolve(params, tokenCreateParams...))
	if err != nil {
		return nil, err
	}
	return decodeAuth(resp)
}

// LookupSelf returns information about the calling token.
func (t *Token) LookupSelf(ctx context.Context) (*Response, error) {
	return t.client.Get(ctx, "/v1/auth/token/lookup-self")
}

// Lookup returns information about token.
func (t *Token) Lookup(ctx context.Context, token string) (*Response, error) {
	return t.post(ctx, "/v1/auth/token/lookup", map[string]string{"token": token})
}

// RenewSelf renews the calling token.
func (t *Token) RenewSelf(ctx context.Context, params map[string]any) (*Auth, error) {
	resp, err := t.post(ctx, "/v1/auth/token/renew-self", options.Resolve(params, "increment"))
	if err != nil {
		return nil, err
	}
	return decodeAuth(resp)
}

// Renew renews the token given in params.
func (t *Token) Renew(ctx context.Context, params map[string]any) (*Auth, error) {
	body, err := options.ResolveRequired(params, []string{"token", "increment"}, "token")
	if err != nil {
		return nil, err
	}
	resp, err := t.post(ctx, "/v1/auth/token/renew", body)
	if err != nil {
		return nil, err
	}
	return decodeAuth(resp)
}

// Revoke revokes a token and all its children.
func (t *Token) Revoke(ctx context.Context, params map[string]any) error {
	body, err := options.ResolveRequired(params, []string{"token"}, "token")
	if err != nil {
		return err
	}
	_, err = t.post(ctx, "/v1/auth/token/revoke", body)
	return err
}

// RevokeSelf revokes the calling token and all its children.
func (t *Token) RevokeSelf(ctx context.Context) error {
	_, err := t.post(ctx, "/v1/auth/token/revoke-self", nil)
	return err
}

// RevokeOrphan revokes a token but leaves its children orphaned.
func (t *Token) RevokeOrphan(ctx context.Context, params map[string]any) error {
	body, err := options.ResolveRequired(params, []string{"token"}, "token")
	if err != nil {
		return err
	}
	_, err = t.post(ctx, "/v1/auth/token/revoke-orphan", body)
	return err
}

// DeleteRole deletes the named role.
func (t *Token) DeleteRole(ctx context.Context, role string) error {
	_, err := t.client.Delete(ctx, "/v1/auth/token/roles/"+role)
	return err
}

// GetRole fetches the named role configuration.
func (t *Token) GetRole(ctx context.Context, role string) (*Response, error) {
	return t.client.Get(ctx, "/v1/auth/token/roles/"+role)
}

// ListRoles lists the available roles.
func (t *Token) ListRoles(ctx context.Context) ([]string, error) {
	resp, err := t.client.List(ctx, "/v1/auth/token/roles")
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

// CreateRole creates or replaces the named role.
func (t *Token) CreateRole(ctx context.Context, role string, params map[string]any) error {
	_, err := t.post(ctx, "/v1/auth/token/roles/"+role, options.Resolve(params, tokenRoleParams...))
	return err
}
