package vault

import (
	"errors"
	"fmt"
	"strings"
)

// ServiceKind names an endpoint group.
type ServiceKind int

const (
	ServiceSys ServiceKind = iota
	ServiceData
	ServiceToken
	ServiceAppRole
	ServiceAwsEc2
	ServiceTransit
)

var serviceNames = []string{
	ServiceSys:     "sys",
	ServiceData:    "data",
	ServiceToken:   "auth/token",
	ServiceAppRole: "auth/approle",
	ServiceAwsEc2:  "auth/awsEc2",
	ServiceTransit: "transit",
}

// String returns the logical service name.
func (k ServiceKind) String() string {
	if k < 0 || int(k) >= len(serviceNames) {
		return fmt.Sprintf("ServiceKind(%d)", int(k))
	}
	return serviceNames[k]
}

// ServiceNames returns every registered service name.
func ServiceNames() []string {
	return append([]string(nil), serviceNames...)
}

// ParseServiceKind maps a logical name such as "auth/token" to its kind.
func ParseServiceKind(name string) (ServiceKind, error) {
	for i, n := range serviceNames {
		if n == name {
			return ServiceKind(i), nil
		}
	}
	return 0, fmt.Errorf(`%w: the service %q is not available, pick one among "%s"`,
		ErrInvalidArgument, name, strings.Join(serviceNames, `", "`))
}

// Service is implemented by every endpoint wrapper.
type Service interface {
	Kind() ServiceKind
}

// Registry builds endpoint wrappers around one shared Client.
//
// Every call constructs a fresh wrapper; wrappers hold nothing but the
// client, so there is no shared state between them.
type Registry struct {
	client *Client
}

// NewRegistry creates a registry. client is required.
func NewRegistry(client *Client) (*Registry, error) {
	if client == nil {
		return nil, errors.New("vault: registry requires a client")
	}
	return &Registry{client: client}, nil
}

// Client returns the shared transport.
func (r *Registry) Client() *Client {
	return r.client
}

// New constructs the wrapper for kind. Only ServiceAwsEc2 accepts an extra
// argument: the auth backend mount point.
func (r *Registry) New(kind ServiceKind, args ...string) (Service, error) {
	if kind != ServiceAwsEc2 && len(args) > 0 {
		return nil, fmt.Errorf("%w: service %q takes no arguments", ErrInvalidArgument, kind)
	}

	switch kind {
	case ServiceSys:
		return r.Sys(), nil
	case ServiceData:
		return r.Data(), nil
	case ServiceToken:
		return r.Token(), nil
	case ServiceAppRole:
		return r.AppRole(), nil
	case ServiceAwsEc2:
		if len(args) > 1 {
			return nil, fmt.Errorf("%w: service %q takes at most one argument", ErrInvalidArgument, kind)
		}
		mount := ""
		if len(args) == 1 {
			mount = args[0]
		}
		return r.AwsEc2(mount), nil
	case ServiceTransit:
		return r.Transit(), nil
	default:
		return nil, fmt.Errorf("%w: unknown service kind %d", ErrInvalidArgument, int(kind))
	}
}

// Get constructs the wrapper registered under name.
func (r *Registry) Get(name string, args ...string) (Service, error) {
	kind, err := ParseServiceKind(name)
	if err != nil {
		return nil, err
	}
	return r.New(kind, args...)
}

// Sys returns a new Sys service.
func (r *Registry) Sys() *Sys { return NewSys(r.client) }

// Data returns a new Data service.
func (r *Registry) Data() *Data { return NewData(r.client) }

// Token returns a new Token service.
func (r *Registry) Token() *Token { return NewToken(r.client) }

// AppRole returns a new AppRole service.
func (r *Registry) AppRole() *AppRole { return NewAppRole(r.client) }

// AwsEc2 returns a new AwsEc2 service for the given mount point.
func (r *Registry) AwsEc2(mountPoint string) *AwsEc2 { return NewAwsEc2(r.client, mountPoint) }

// Transit returns a new Transit service.
func (r *Registry) Transit() *Transit { return NewTransit(r.client) }
