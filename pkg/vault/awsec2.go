package vault

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

const (
	defaultAwsMount = "aws"
	pkcs7Path       = "instance-identity/pkcs7"
)

// InstanceIdentityFetcher reads dynamic data from the EC2 instance metadata
// service. *imds.Client satisfies it.
type InstanceIdentityFetcher interface {
	GetDynamicData(ctx context.Context, params *imds.GetDynamicDataInput, optFns ...func(*imds.Options)) (*imds.GetDynamicDataOutput, error)
}

// AwsEc2 wraps the login endpoint of the AWS auth backend.
type AwsEc2 struct {
	client     *Client
	mountPoint string
}

// NewAwsEc2 creates an AwsEc2 service bound to client. An empty mountPoint
// means "aws".
func NewAwsEc2(client *Client, mountPoint string) *AwsEc2 {
	if mountPoint == "" {
		mountPoint = defaultAwsMount
	}
	return &AwsEc2{client: client, mountPoint: strings.Trim(mountPoint, "/")}
}

// Kind implements Service.
func (a *AwsEc2) Kind() ServiceKind { return ServiceAwsEc2 }

// MountPoint returns the auth backend mount.
func (a *AwsEc2) MountPoint() string { return a.mountPoint }

// Login issues a token from a signed PKCS7 instance identity document.
func (a *AwsEc2) Login(ctx context.Context, pkcs7, nonce, role string) (*Auth, error) {
	body, err := EncodeBody(map[string]string{"pkcs7": pkcs7, "nonce": nonce, "role": role})
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Post(ctx, "/v1/auth/"+a.mountPoint+"/login", body)
	if err != nil {
		return nil, err
	}
	return decodeAuth(resp)
}

// LoginWithInstanceIdentity fetches the PKCS7 document from the instance
// metadata service and logs in with it. A nil fetcher uses the default IMDS
// client.
func (a *AwsEc2) LoginWithInstanceIdentity(ctx context.Context, fetcher InstanceIdentityFetcher, nonce, role string) (*Auth, error) {
	if fetcher == nil {
		fetcher = imds.New(imds.Options{})
	}

	out, err := fetcher.GetDynamicData(ctx, &imds.GetDynamicDataInput{Path: pkcs7Path})
	if err != nil {
		return nil, fmt.Errorf("failed to read instance identity: %w", err)
	}
	defer out.Content.Close()

	raw, err := io.ReadAll(out.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read instance identity: %w", err)
	}

	// Vault expects the signature without PEM line breaks.
	pkcs7 := strings.ReplaceAll(strings.TrimSpace(string(raw)), "\n", "")
	return a.Login(ctx, pkcs7, nonce, role)
}
