package vault

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Option configures the client.
type Option func(*clientOptions) error

type clientOptions struct {
	address    string
	token      string
	headers    http.Header
	timeout    time.Duration
	tlsConfig  *tls.Config
	httpClient *http.Client
}

// WithAddress sets the Vault address. It takes precedence over VAULT_ADDR.
func WithAddress(addr string) Option {
	return func(o *clientOptions) error {
		o.address = addr
		return nil
	}
}

// WithToken sends token in the X-Vault-Token header on every request.
// An empty token leaves the header unset.
func WithToken(token string) Option {
	return func(o *clientOptions) error {
		o.token = token
		return nil
	}
}

// WithHeader adds a default header. It overrides a built-in header of the
// same name.
func WithHeader(key, value string) Option {
	return func(o *clientOptions) error {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		o.headers.Set(key, value)
		return nil
	}
}

// WithTimeout sets the HTTP client timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) error {
		if d < 0 {
			return fmt.Errorf("negative timeout %s", d)
		}
		o.timeout = d
		return nil
	}
}

// WithTLSConfig provides a custom TLS configuration.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *clientOptions) error {
		o.tlsConfig = cfg
		return nil
	}
}

// WithCACert adds a PEM-encoded CA certificate file to the root pool.
func WithCACert(path string) Option {
	return func(o *clientOptions) error {
		pem, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read CA cert file: %w", err)
		}
		if o.tlsConfig == nil {
			o.tlsConfig = &tls.Config{}
		}
		if o.tlsConfig.RootCAs == nil {
			pool, err := x509.SystemCertPool()
			if err != nil {
				pool = x509.NewCertPool()
			}
			o.tlsConfig.RootCAs = pool
		}
		if !o.tlsConfig.RootCAs.AppendCertsFromPEM(pem) {
			return fmt.Errorf("failed to parse CA certificate PEM")
		}
		return nil
	}
}

// WithHTTPClient provides a fully custom *http.Client. When set,
// WithTimeout and the TLS options are ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) error {
		o.httpClient = client
		return nil
	}
}
