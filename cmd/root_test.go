package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getgrowly/vault-lifecycle/pkg/keyfile"
	"github.com/getgrowly/vault-lifecycle/pkg/lifecycle"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func sealStatusServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusCommand(t *testing.T) {
	srv := sealStatusServer(t, `{"initialized":true,"sealed":true,"t":3,"n":5,"progress":1,"version":"1.15.0"}`)
	keyFile := filepath.Join(t.TempDir(), "keys.json")

	out, err := runCommand(t, "status", "--address", srv.URL, "--key-file", keyFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Unseal Progress")
	assert.Contains(t, out, "1/3")
	assert.Contains(t, out, "1.15.0")
	assert.Contains(t, out, `Please run the "unseal" command`)
}

func TestUnsealCommandWithoutKeyFile(t *testing.T) {
	srv := sealStatusServer(t, `{"sealed":true}`)
	keyFile := filepath.Join(t.TempDir(), "keys.json")

	_, err := runCommand(t, "unseal", "--address", srv.URL, "--key-file", keyFile)

	var abort *lifecycle.AbortError
	require.ErrorAs(t, err, &abort)
	assert.Contains(t, abort.Message, keyFile)
}

func TestEnvCommand(t *testing.T) {
	srv := sealStatusServer(t, `{}`)
	keyFile := filepath.Join(t.TempDir(), "keys.json")
	store, err := keyfile.New(keyFile)
	require.NoError(t, err)
	require.NoError(t, store.Save(&keyfile.Keys{RootToken: "s.token"}))

	out, err := runCommand(t, "env", "--address", srv.URL, "--key-file", keyFile)
	require.NoError(t, err)
	assert.Contains(t, out, `VAULT_TOKEN="s.token"`)
	assert.Contains(t, out, srv.URL)
}

func TestWaitForCommand(t *testing.T) {
	srv := sealStatusServer(t, `{"initialized":true,"sealed":false,"standby":false}`)
	keyFile := filepath.Join(t.TempDir(), "keys.json")

	out, err := runCommand(t, "wait-for", "--initialized", "--sealed=false", "--quiet", "--interval", "0s",
		"--address", srv.URL, "--key-file", keyFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Done!")
}

func TestMountsCommandMissingBackendsFile(t *testing.T) {
	srv := sealStatusServer(t, `{}`)
	keyFile := filepath.Join(t.TempDir(), "keys.json")

	_, err := runCommand(t, "mounts", "--address", srv.URL, "--key-file", keyFile,
		"--backends", filepath.Join(os.TempDir(), "does-not-exist.yml"))

	var abort *lifecycle.AbortError
	require.ErrorAs(t, err, &abort)
	assert.Contains(t, abort.Message, "does not exist")
}

func TestAttemptSuffix(t *testing.T) {
	store, err := keyfile.New(filepath.Join(t.TempDir(), "keys.json"))
	require.NoError(t, err)
	orch := lifecycle.New(store)
	orch.MaxAttempts = 7

	suffix := attemptSuffix(map[string]bool{"sealed": false}, 2, orch.WaitLimit())
	assert.Equal(t, " Waiting for health returning map[sealed:false] (attempt 2/7)", suffix)
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
