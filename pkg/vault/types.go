package vault

// SealStatus is the body of /v1/sys/seal-status and /v1/sys/unseal.
type SealStatus struct {
	// Sealed indicates whether the Vault is currently sealed.
	// A sealed Vault cannot process any requests until unsealed.
	Sealed bool `json:"sealed"`

	// Initialized indicates whether the Vault has been initialized.
	Initialized bool `json:"initialized"`

	// Threshold is the number of shares required to unseal.
	Threshold int `json:"t"`

	// Shares is the total number of shares the master key was split into.
	Shares int `json:"n"`

	// Progress is the number of shares submitted so far.
	Progress int    `json:"progress"`
	Version  string `json:"version,omitempty"`
}

// InitStatus is the body of GET /v1/sys/init.
type InitStatus struct {
	Initialized bool `json:"initialized"`
}

// InitResponse represents the response from Vault initialization
type InitResponse struct {
	Keys       []string `json:"keys"`
	KeysBase64 []string `json:"keys_base64"`
	RootToken  string   `json:"root_token"`
}

// HealthState is the decoded body of /v1/sys/health. It is kept as a map so
// that a target state can be compared key by key.
type HealthState map[string]any

// Bool returns the boolean value stored under key.
func (h HealthState) Bool(key string) (value, ok bool) {
	value, ok = h[key].(bool)
	return value, ok
}

// Mount describes one entry of /v1/sys/mounts.
type Mount struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config,omitempty"`
}
