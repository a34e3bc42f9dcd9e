package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Backends is the content of the backends file (vault.yml).
type Backends struct {
	SecretBackends []Backend `yaml:"secret_backends"`
}

// Backend is one secret backend mount.
type Backend struct {
	Path        string         `yaml:"path"`
	Type        string         `yaml:"type"`
	Description string         `yaml:"description,omitempty"`
	Config      BackendConfig  `yaml:"config,omitempty"`
	Secrets     []SecretSeed   `yaml:"secrets,omitempty"`
	Roles       []DatabaseRole `yaml:"roles,omitempty"`
}

// BackendConfig holds type specific settings.
type BackendConfig struct {
	// IniFile is a MySQL client option file holding user and password.
	IniFile string `yaml:"ini_file,omitempty"`
	// Socket is the MySQL socket; defaults to /var/run/mysqld/mysqld.sock.
	Socket string `yaml:"socket,omitempty"`
}

// SecretSeed is a secret written below a generic backend.
type SecretSeed struct {
	Path    string         `yaml:"path"`
	Payload map[string]any `yaml:"payload"`
}

// DatabaseRole is a role of a mysql backend.
type DatabaseRole struct {
	Name string   `yaml:"name"`
	SQL  []string `yaml:"sql"`
}

// LoadBackends reads and validates the backends file.
func LoadBackends(path string) (*Backends, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backends file: %w", err)
	}

	var backends Backends
	if err := yaml.Unmarshal(data, &backends); err != nil {
		return nil, fmt.Errorf("failed to parse backends file %s: %w", path, err)
	}

	for i, b := range backends.SecretBackends {
		if b.Path == "" {
			return nil, fmt.Errorf("backend #%d: path is required", i+1)
		}
		if b.Type == "" {
			return nil, fmt.Errorf("backend %s: type is required", b.Path)
		}
	}
	return &backends, nil
}

// MySQLCredentials are read from a MySQL client option file.
type MySQLCredentials struct {
	User     string
	Password string
}

// LoadMySQLCredentials reads user and password from an INI file. Keys may
// live at the top level or in the [client] section.
func LoadMySQLCredentials(path string) (*MySQLCredentials, error) {
	if path == "" {
		return nil, fmt.Errorf("missing config.ini_file key for mysql backend")
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, fmt.Errorf("ini file does not exist (%s)", path)
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ini file %s: %w", path, err)
	}

	lookup := func(key string) string {
		if v := file.Section("").Key(key).String(); v != "" {
			return v
		}
		return file.Section("client").Key(key).String()
	}

	creds := &MySQLCredentials{User: lookup("user"), Password: lookup("password")}
	if creds.User == "" {
		return nil, fmt.Errorf("ini file %s has no user", path)
	}
	return creds, nil
}
