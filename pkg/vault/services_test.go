package vault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getgrowly/vault-lifecycle/pkg/options"
)

func TestSysInit(t *testing.T) {
	tests := []struct {
		name          string
		params        map[string]any
		statusCode    int
		responseBody  string
		expectError   bool
		expectRequest bool
	}{
		{
			name:          "success",
			params:        map[string]any{"secret_shares": 5, "secret_threshold": 3, "ignored": "x"},
			statusCode:    http.StatusOK,
			responseBody:  `{"keys":["k1","k2","k3","k4","k5"],"keys_base64":["a","b","c","d","e"],"root_token":"s.root"}`,
			expectRequest: true,
		},
		{
			name:        "missing threshold is rejected before the request",
			params:      map[string]any{"secret_shares": 5},
			expectError: true,
		},
		{
			name:          "already initialized",
			params:        map[string]any{"secret_shares": 5, "secret_threshold": 3},
			statusCode:    http.StatusBadRequest,
			responseBody:  `{"errors":["Vault is already initialized"]}`,
			expectError:   true,
			expectRequest: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requested := false
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				requested = true
				assert.Equal(t, "/v1/sys/init", r.URL.Path)
				assert.Equal(t, http.MethodPut, r.Method)

				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]any{"secret_shares": float64(5), "secret_threshold": float64(3)}, body)

				w.WriteHeader(tt.statusCode)
				fmt.Fprint(w, tt.responseBody)
			})

			resp, err := NewSys(client).Init(context.Background(), tt.params)
			assert.Equal(t, tt.expectRequest, requested)
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, IsClientError(err))
				return
			}

			require.NoError(t, err)
			assert.Len(t, resp.Keys, 5)
			assert.Equal(t, "s.root", resp.RootToken)
		})
	}
}

func TestSysInitValidationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := NewSys(client).Init(context.Background(), nil)
	var verr *options.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"secret_shares", "secret_threshold"}, verr.Missing)
}

func TestSysSealStatusAndUnseal(t *testing.T) {
	transport := &mockTransport{
		responses: []*http.Response{
			{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Body:       io.NopCloser(strings.NewReader(`{"sealed":true,"t":3,"n":5,"progress":0,"initialized":true}`)),
			},
			{
				StatusCode: http.StatusOK,
				Status:     "200 OK",
				Body:       io.NopCloser(strings.NewReader(`{"sealed":true,"t":3,"n":5,"progress":1}`)),
			},
		},
	}
	client, err := NewClient(WithAddress("http://test:8200"), WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)
	sys := NewSys(client)

	sealed, err := sys.Sealed(context.Background())
	require.NoError(t, err)
	assert.True(t, sealed)

	status, err := sys.Unseal(context.Background(), map[string]any{"key": "abc", "bogus": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, status.Progress)
	assert.Equal(t, 3, status.Threshold)

	require.Len(t, transport.requests, 2)
	assert.Equal(t, "/v1/sys/seal-status", transport.requests[0].URL.Path)
	assert.Equal(t, http.MethodPut, transport.requests[1].Method)
	body, err := io.ReadAll(transport.requests[1].Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"abc"}`, string(body))
}

func TestSysHealthQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sys/health", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("standbyok"))
		assert.Equal(t, "200", r.URL.Query().Get("sealedcode"))
		fmt.Fprint(w, `{"initialized":true,"sealed":true,"standby":false}`)
	})

	state, err := NewSys(client).Health(context.Background(), map[string][]string{
		"standbyok":  {"true"},
		"sealedcode": {"200"},
	})
	require.NoError(t, err)
	sealed, ok := state.Bool("sealed")
	assert.True(t, ok)
	assert.True(t, sealed)
	_, ok = state.Bool("missing")
	assert.False(t, ok)
}

func TestSysMounts(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "legacy top level",
			body: `{"secret/":{"type":"kv","description":"key/value"},"sys/":{"type":"system"}}`,
		},
		{
			name: "data envelope",
			body: `{"request_id":"1","data":{"secret/":{"type":"kv","description":"key/value"},"sys/":{"type":"system"}},"secret/":{"type":"kv"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			mounts, err := NewSys(client).Mounts(context.Background())
			require.NoError(t, err)
			assert.Len(t, mounts, 2)
			assert.Equal(t, "kv", mounts["secret/"].Type)
			assert.Equal(t, "system", mounts["sys/"].Type)
		})
	}
}

func TestSysCreateMountFiltersParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sys/mounts/mysql", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"type":"mysql","description":""}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	err := NewSys(client).CreateMount(context.Background(), "mysql",
		map[string]any{"type": "mysql", "description": "", "path": "mysql"})
	require.NoError(t, err)
}

func TestSysCapabilities(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, `{"capabilities":["read"]}`)
	})
	sys := NewSys(client)

	_, err := sys.Capabilities(context.Background(), "secret/foo", "")
	require.NoError(t, err)
	_, err = sys.Capabilities(context.Background(), "secret/foo", "s.other")
	require.NoError(t, err)
	assert.Equal(t, []string{"/v1/sys/capabilities-self", "/v1/sys/capabilities"}, paths)
}

func TestDataList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, MethodList, r.Method)
		assert.Equal(t, "/v1/secret/apps", r.URL.Path)
		fmt.Fprint(w, `{"data":{"keys":["api","web/"]}}`)
	})

	keys, err := NewData(client).List(context.Background(), "secret/apps")
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "web/"}, keys)
}

func TestDataWrite(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/secret/apps/api", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"password":"hunter2"}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})

	_, err := NewData(client).Write(context.Background(), "/secret/apps/api", map[string]string{"password": "hunter2"})
	require.NoError(t, err)
}

func TestTokenCreate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/token/create", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"policies":["default"],"ttl":"1h"}`, string(body))
		fmt.Fprint(w, `{"auth":{"client_token":"s.child","policies":["default"],"renewable":true}}`)
	})

	auth, err := NewToken(client).Create(context.Background(),
		map[string]any{"policies": []string{"default"}, "ttl": "1h", "unknown": true})
	require.NoError(t, err)
	assert.Equal(t, "s.child", auth.ClientToken)
	assert.True(t, auth.Renewable)
}

func TestTokenRevokeRequiresToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := NewToken(client).Revoke(context.Background(), map[string]any{})
	assert.True(t, IsClientError(err))
}

func TestAppRoleLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/approle/login", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"role_id":"r","secret_id":"s"}`, string(body))
		fmt.Fprint(w, `{"auth":{"client_token":"s.approle"}}`)
	})

	auth, err := NewAppRole(client).Login(context.Background(), "r", "s")
	require.NoError(t, err)
	assert.Equal(t, "s.approle", auth.ClientToken)
}

func TestAppRoleLoginWithoutAuthBlock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"warnings":["nope"]}`)
	})

	_, err := NewAppRole(client).Login(context.Background(), "r", "s")
	assert.True(t, IsClientError(err))
}

type fakeIdentityFetcher struct {
	document string
	err      error
	path     string
}

func (f *fakeIdentityFetcher) GetDynamicData(_ context.Context, params *imds.GetDynamicDataInput, _ ...func(*imds.Options)) (*imds.GetDynamicDataOutput, error) {
	f.path = params.Path
	if f.err != nil {
		return nil, f.err
	}
	return &imds.GetDynamicDataOutput{Content: io.NopCloser(strings.NewReader(f.document))}, nil
}

func TestAwsEc2LoginWithInstanceIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/aws-ec2/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "MIIabcdef", body["pkcs7"])
		assert.Equal(t, "nonce-1", body["nonce"])
		assert.Equal(t, "web", body["role"])
		fmt.Fprint(w, `{"auth":{"client_token":"s.ec2"}}`)
	})

	fetcher := &fakeIdentityFetcher{document: "MIIabc\ndef\n"}
	auth, err := NewAwsEc2(client, "aws-ec2").LoginWithInstanceIdentity(context.Background(), fetcher, "nonce-1", "web")
	require.NoError(t, err)
	assert.Equal(t, "s.ec2", auth.ClientToken)
	assert.Equal(t, "instance-identity/pkcs7", fetcher.path)
}

func TestAwsEc2IdentityFailure(t *testing.T) {
	client, err := NewClient(WithAddress("http://test:8200"))
	require.NoError(t, err)

	fetcher := &fakeIdentityFetcher{err: errors.New("imds unreachable")}
	_, err = NewAwsEc2(client, "").LoginWithInstanceIdentity(context.Background(), fetcher, "", "")
	assert.ErrorContains(t, err, "imds unreachable")
}

func TestTransitEncryptDecrypt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/v1/transit/encrypt/orders":
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), body["plaintext"])
			assert.Equal(t, "ctx", body["context"])
			fmt.Fprint(w, `{"data":{"ciphertext":"vault:v1:xyz"}}`)
		case "/v1/transit/decrypt/orders":
			assert.Equal(t, "vault:v1:xyz", body["ciphertext"])
			fmt.Fprintf(w, `{"data":{"plaintext":%q}}`, base64.StdEncoding.EncodeToString([]byte("hello")))
		case "/v1/transit/rewrap/orders":
			fmt.Fprint(w, `{"data":{"ciphertext":"vault:v2:xyz"}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	transit := NewTransit(client)
	ctx := context.Background()

	ciphertext, err := transit.Encrypt(ctx, "orders", []byte("hello"), map[string]any{"context": "ctx", "other": 1})
	require.NoError(t, err)
	assert.Equal(t, "vault:v1:xyz", ciphertext)

	plaintext, err := transit.Decrypt(ctx, "orders", ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), plaintext)

	rewrapped, err := transit.Rewrap(ctx, "orders", ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, "vault:v2:xyz", rewrapped)
}

func TestTransitCreateKeyRequiresType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transit/keys/orders", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	transit := NewTransit(client)

	err := transit.CreateKey(context.Background(), "orders", map[string]any{"derived": true})
	assert.True(t, IsClientError(err))

	err = transit.CreateKey(context.Background(), "orders", map[string]any{"type": "aes256-gcm96"})
	assert.NoError(t, err)
}
