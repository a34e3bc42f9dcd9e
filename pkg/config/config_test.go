package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Run from an empty directory so no stray .env is picked up
	chdir(t, t.TempDir())

	// Test default values
	cfg := LoadConfig()
	if cfg.VaultNamespace != "vault" {
		t.Errorf("expected default namespace 'vault', got '%s'", cfg.VaultNamespace)
	}
	if cfg.VaultPort != "8200" {
		t.Errorf("expected default port '8200', got '%s'", cfg.VaultPort)
	}
	if cfg.CheckInterval != 10*time.Second {
		t.Errorf("expected default check interval 10s, got %v", cfg.CheckInterval)
	}
	assert.Equal(t, 5, cfg.SecretShares)
	assert.Equal(t, 3, cfg.SecretThreshold)
	assert.Equal(t, int32(1), cfg.Replicas)
	assert.Equal(t, "vault.yml", cfg.BackendsFile)

	// Test custom values
	t.Setenv("VAULT_NAMESPACE", "custom-namespace")
	t.Setenv("VAULT_PORT", "8201")
	t.Setenv("CHECK_INTERVAL", "20")
	t.Setenv("VAULT_KEY_FILE", "/tmp/keys")

	cfg = LoadConfig()
	if cfg.VaultNamespace != "custom-namespace" {
		t.Errorf("expected namespace 'custom-namespace', got '%s'", cfg.VaultNamespace)
	}
	if cfg.VaultPort != "8201" {
		t.Errorf("expected port '8201', got '%s'", cfg.VaultPort)
	}
	if cfg.CheckInterval != 20*time.Second {
		t.Errorf("expected check interval 20s, got %v", cfg.CheckInterval)
	}
	assert.Equal(t, "/tmp/keys", cfg.KeyFile)

	// Test invalid check interval
	t.Setenv("CHECK_INTERVAL", "invalid")
	cfg = LoadConfig()
	if cfg.CheckInterval != 10*time.Second {
		t.Errorf("expected default check interval 10s for invalid input, got %v", cfg.CheckInterval)
	}

	// Test non-positive check intervals
	for _, value := range []string{"0", "-5"} {
		t.Setenv("CHECK_INTERVAL", value)
		cfg = LoadConfig()
		assert.Equal(t, MinCheckInterval, cfg.CheckInterval, "CHECK_INTERVAL=%s", value)
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VAULT_STATEFULSET=vault-dev\nLOG_LEVEL=debug\n"), 0o600))

	// godotenv.Load sets process variables; register cleanup through t.Setenv
	t.Setenv("VAULT_STATEFULSET", "")
	t.Setenv("LOG_LEVEL", "warn")
	os.Unsetenv("VAULT_STATEFULSET")

	cfg := LoadConfig()
	assert.Equal(t, "vault-dev", cfg.StatefulSet)
	assert.Equal(t, "warn", cfg.LogLevel, "real environment wins over .env")
}

func TestLoadBackends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.yml")
	content := `
secret_backends:
  - path: secret
    type: generic
    description: application secrets
    secrets:
      - path: apps/api
        payload:
          password: hunter2
  - path: mysql
    type: mysql
    config:
      ini_file: /etc/mysql/debian.cnf
    roles:
      - name: readonly
        sql:
          - CREATE USER '{{name}}'@'%' IDENTIFIED BY '{{password}}'
          - GRANT SELECT ON *.* TO '{{name}}'@'%'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	backends, err := LoadBackends(path)
	require.NoError(t, err)
	require.Len(t, backends.SecretBackends, 2)

	secret := backends.SecretBackends[0]
	assert.Equal(t, "generic", secret.Type)
	require.Len(t, secret.Secrets, 1)
	assert.Equal(t, "hunter2", secret.Secrets[0].Payload["password"])

	mysql := backends.SecretBackends[1]
	assert.Equal(t, "/etc/mysql/debian.cnf", mysql.Config.IniFile)
	require.Len(t, mysql.Roles, 1)
	assert.Len(t, mysql.Roles[0].SQL, 2)
}

func TestLoadBackendsErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadBackends(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	noType := filepath.Join(dir, "notype.yml")
	require.NoError(t, os.WriteFile(noType, []byte("secret_backends:\n  - path: secret\n"), 0o600))
	_, err = LoadBackends(noType)
	assert.ErrorContains(t, err, "type is required")

	invalid := filepath.Join(dir, "invalid.yml")
	require.NoError(t, os.WriteFile(invalid, []byte("secret_backends: [\n"), 0o600))
	_, err = LoadBackends(invalid)
	assert.Error(t, err)
}

func TestLoadMySQLCredentials(t *testing.T) {
	dir := t.TempDir()

	flat := filepath.Join(dir, "flat.cnf")
	require.NoError(t, os.WriteFile(flat, []byte("user = vault\npassword = s3cret\n"), 0o600))
	creds, err := LoadMySQLCredentials(flat)
	require.NoError(t, err)
	assert.Equal(t, &MySQLCredentials{User: "vault", Password: "s3cret"}, creds)

	sectioned := filepath.Join(dir, "debian.cnf")
	require.NoError(t, os.WriteFile(sectioned, []byte("[client]\nhost = localhost\nuser = debian-sys-maint\npassword = pw\n"), 0o600))
	creds, err = LoadMySQLCredentials(sectioned)
	require.NoError(t, err)
	assert.Equal(t, "debian-sys-maint", creds.User)
	assert.Equal(t, "pw", creds.Password)

	_, err = LoadMySQLCredentials("")
	assert.ErrorContains(t, err, "ini_file")

	_, err = LoadMySQLCredentials(filepath.Join(dir, "absent.cnf"))
	assert.ErrorContains(t, err, "does not exist")
}

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
