package vault

import "context"

// AppRole wraps the /v1/auth/approle endpoints.
type AppRole struct {
	client *Client
}

// NewAppRole creates an AppRole service bound to client.
func NewAppRole(client *Client) *AppRole {
	return &AppRole{client: client}
}

// Kind implements Service.
func (a *AppRole) Kind() ServiceKind { return ServiceAppRole }

// Login issues a token for the given role and secret IDs.
func (a *AppRole) Login(ctx context.Context, roleID, secretID string) (*Auth, error) {
	body, err := EncodeBody(map[string]string{"role_id": roleID, "secret_id": secretID})
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Post(ctx, "/v1/auth/approle/login", body)
	if err != nil {
		return nil, err
	}
	return decodeAuth(resp)
}

// ListRoles lists the defined AppRoles.
func (a *AppRole) ListRoles(ctx context.Context) ([]string, error) {
	resp, err := a.client.List(ctx, "/v1/auth/approle/role")
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

// GetRoleID returns the role_id of the named AppRole.
func (a *AppRole) GetRoleID(ctx context.Context, roleName string) (string, error) {
	resp, err := a.client.Get(ctx, "/v1/auth/approle/role/"+roleName+"/role-id")
	if err != nil {
		return "", err
	}
	var result struct {
		RoleID string `json:"role_id"`
	}
	if err := resp.DecodeData(&result); err != nil {
		return "", err
	}
	return result.RoleID, nil
}
