package lifecycle

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeVault is a minimal in-memory Vault server.
type fakeVault struct {
	mu sync.Mutex

	initialized bool
	sealed      bool
	shares      int
	threshold   int
	progress    int
	standby     bool

	// health, when set, replaces the computed health answer. The last entry
	// is repeated once the script runs out.
	health []healthReply

	requests    int
	healthCalls int
	unsealKeys  []string
	sealCalls   int
	mounts      map[string]map[string]any
	writes      map[string]map[string]any
	tokens      []string
}

const testRootToken = "root-token"

type healthReply struct {
	status int
	body   string
}

func newFakeVault(t *testing.T) (*fakeVault, *httptest.Server) {
	t.Helper()

	fv := &fakeVault{
		sealed: true,
		mounts: map[string]map[string]any{
			"sys/":       {"type": "system"},
			"cubbyhole/": {"type": "cubbyhole"},
		},
		writes: map[string]map[string]any{},
	}
	srv := httptest.NewServer(http.HandlerFunc(fv.serve))
	t.Cleanup(srv.Close)
	return fv, srv
}

func (fv *fakeVault) serve(w http.ResponseWriter, r *http.Request) {
	fv.mu.Lock()
	defer fv.mu.Unlock()

	fv.requests++
	fv.tokens = append(fv.tokens, r.Header.Get("X-Vault-Token"))

	var body map[string]any
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	path := r.URL.Path
	switch {
	case path == "/v1/sys/seal-status" && r.Method == http.MethodGet:
		fv.writeJSON(w, http.StatusOK, fv.sealStatus())

	case path == "/v1/sys/init" && r.Method == http.MethodPut:
		if fv.initialized {
			fv.writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []string{"Vault is already initialized"}})
			return
		}
		fv.shares = int(body["secret_shares"].(float64))
		fv.threshold = int(body["secret_threshold"].(float64))
		fv.initialized = true
		fv.sealed = true
		keys := make([]string, fv.shares)
		for i := range keys {
			keys[i] = fmt.Sprintf("key-%d", i)
		}
		fv.writeJSON(w, http.StatusOK, map[string]any{
			"keys":        keys,
			"keys_base64": keys,
			"root_token":  testRootToken,
		})

	case path == "/v1/sys/unseal" && r.Method == http.MethodPut:
		key, _ := body["key"].(string)
		fv.unsealKeys = append(fv.unsealKeys, key)
		fv.progress++
		if fv.progress >= fv.threshold {
			fv.sealed = false
			fv.progress = 0
		}
		fv.writeJSON(w, http.StatusOK, fv.sealStatus())

	case path == "/v1/sys/seal" && r.Method == http.MethodPut:
		fv.sealCalls++
		fv.sealed = true
		w.WriteHeader(http.StatusNoContent)

	case path == "/v1/sys/health":
		fv.healthCalls++
		if len(fv.health) > 0 {
			reply := fv.health[0]
			if len(fv.health) > 1 {
				fv.health = fv.health[1:]
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(reply.status)
			_, _ = io.WriteString(w, reply.body)
			return
		}
		fv.writeJSON(w, http.StatusOK, map[string]any{
			"initialized": fv.initialized,
			"sealed":      fv.sealed,
			"standby":     fv.standby,
		})

	case path == "/v1/sys/mounts" && r.Method == http.MethodGet:
		fv.writeJSON(w, http.StatusOK, fv.mounts)

	case strings.HasPrefix(path, "/v1/sys/mounts/") && r.Method == http.MethodPost:
		fv.mounts[strings.TrimPrefix(path, "/v1/sys/mounts/")+"/"] = body
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut || r.Method == http.MethodPost:
		fv.writes[strings.TrimPrefix(path, "/v1/")] = body
		w.WriteHeader(http.StatusNoContent)

	default:
		fv.writeJSON(w, http.StatusNotFound, map[string]any{"errors": []string{}})
	}
}

func (fv *fakeVault) sealStatus() map[string]any {
	return map[string]any{
		"initialized": fv.initialized,
		"sealed":      fv.sealed,
		"t":           fv.threshold,
		"n":           fv.shares,
		"progress":    fv.progress,
	}
}

func (fv *fakeVault) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fv *fakeVault) requestCount() int {
	fv.mu.Lock()
	defer fv.mu.Unlock()
	return fv.requests
}
