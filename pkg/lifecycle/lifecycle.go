// Package lifecycle drives a single Vault server through its operational
// lifecycle: start, initialize, wait for health, unseal, seal, configure
// secret backends and reset.
//
// Every operation builds a fresh client so that a root token written to the
// key file by a previous step is picked up by the next one.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getgrowly/vault-lifecycle/pkg/keyfile"
	"github.com/getgrowly/vault-lifecycle/pkg/vault"
)

const logSubsystem = "Lifecycle"

const (
	// MaxWaitAttempts bounds the number of health observations made by WaitFor.
	MaxWaitAttempts = 120
	// DefaultInterval is the pause between two health observations.
	DefaultInterval = time.Second
	// DefaultSecretShares and DefaultSecretThreshold are used by create.
	DefaultSecretShares    = 5
	DefaultSecretThreshold = 3
)

var (
	// ErrInsufficientKeys is returned when every cached key share has been
	// submitted and Vault is still sealed.
	ErrInsufficientKeys = errors.New("not enough unseal keys")

	// ErrNoProcessController is returned by start, stop, restart and reset
	// when no process controller is configured.
	ErrNoProcessController = errors.New("no process controller configured")
)

// AbortError stops an operation for a reason the operator can fix. The CLI
// prints it without further detail.
type AbortError struct {
	Message    string
	Suggestion string
}

func (e *AbortError) Error() string {
	if e.Suggestion == "" {
		return e.Message
	}
	return e.Message + " - " + e.Suggestion
}

// ProcessController starts and stops the Vault server process.
type ProcessController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Orchestrator runs lifecycle operations against one Vault address.
type Orchestrator struct {
	// Keys is the key file holding the root token and unseal shares.
	Keys *keyfile.Store

	// Process starts and stops Vault. Optional.
	Process ProcessController

	// Interval between health observations. Zero or less means no pause.
	Interval time.Duration

	// MaxAttempts bounds WaitFor; defaults to MaxWaitAttempts.
	MaxAttempts int

	// OnAttempt, when set, is called after every health observation.
	OnAttempt func(attempt int, observed vault.HealthState)

	clientOptions []vault.Option
}

// New returns an orchestrator using keys. clientOptions configure every
// client it builds (address, TLS, timeout).
func New(keys *keyfile.Store, clientOptions ...vault.Option) *Orchestrator {
	return &Orchestrator{
		Keys:          keys,
		Interval:      DefaultInterval,
		MaxAttempts:   MaxWaitAttempts,
		clientOptions: clientOptions,
	}
}

// Registry builds a service registry whose client carries the cached root
// token, if any.
func (o *Orchestrator) Registry() (*vault.Registry, error) {
	token, err := o.Keys.Token()
	if err != nil {
		return nil, err
	}
	return o.registryWithToken(token)
}

func (o *Orchestrator) registryWithToken(token string) (*vault.Registry, error) {
	opts := append([]vault.Option{}, o.clientOptions...)
	opts = append(opts, vault.WithToken(token))

	client, err := vault.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	return vault.NewRegistry(client)
}

func (o *Orchestrator) sys() (*vault.Sys, error) {
	reg, err := o.Registry()
	if err != nil {
		return nil, err
	}
	return reg.Sys(), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
