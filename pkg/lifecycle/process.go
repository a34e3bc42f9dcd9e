package lifecycle

import (
	"context"
	"fmt"
	"io"

	"github.com/getgrowly/vault-lifecycle/pkg/config"
	"github.com/getgrowly/vault-lifecycle/pkg/logging"
)

// Start ensures Vault is running.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.Process == nil {
		return ErrNoProcessController
	}
	logging.Info(logSubsystem, "Ensure Vault is running")
	return o.Process.Start(ctx)
}

// Stop ensures Vault is stopped.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if o.Process == nil {
		return ErrNoProcessController
	}
	logging.Info(logSubsystem, "Ensure Vault is stopped")
	return o.Process.Stop(ctx)
}

// Restart stops and starts Vault.
func (o *Orchestrator) Restart(ctx context.Context) error {
	if err := o.Stop(ctx); err != nil {
		return err
	}
	return o.Start(ctx)
}

// Reset stops Vault, deletes the key file and starts Vault again. Wiping
// the storage backend itself is left to the process controller.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.Stop(ctx); err != nil {
		return err
	}
	if err := o.Keys.Remove(); err != nil {
		return err
	}
	logging.Info(logSubsystem, "Removed key file %s", o.Keys.Path)
	return o.Start(ctx)
}

// Env writes shell export lines for the vault CLI.
func (o *Orchestrator) Env(w io.Writer) error {
	token, err := o.Keys.Token()
	if err != nil {
		return err
	}
	if token == "" {
		return &AbortError{
			Message:    "Token file does not exist",
			Suggestion: `call "create" first`,
		}
	}

	reg, err := o.Registry()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "export VAULT_ADDR=%q VAULT_TOKEN=%q;\n", reg.Client().Address(), token)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, `echo "You can now execute Vault commands using the \"vault\" CLI tool";`)
	return err
}

// Bootstrap brings Vault from stopped to unsealed and configured: start,
// create, wait until initialized, unseal, wait until active and apply
// backends. Start is skipped without a process controller and backends may
// be nil.
func (o *Orchestrator) Bootstrap(ctx context.Context, shares, threshold int, backends *config.Backends) error {
	if o.Process != nil {
		if err := o.Start(ctx); err != nil {
			return err
		}
	}

	logging.Info(logSubsystem, "Ensure Vault is initialized")
	if _, err := o.Create(ctx, shares, threshold); err != nil {
		return err
	}
	if err := o.waitUntil(ctx, map[string]bool{"initialized": true}); err != nil {
		return err
	}

	logging.Info(logSubsystem, "Ensure Vault is unsealed")
	if err := o.Unseal(ctx); err != nil {
		return err
	}
	if err := o.waitUntil(ctx, map[string]bool{"sealed": false, "standby": false}); err != nil {
		return err
	}

	if backends == nil {
		return nil
	}
	logging.Info(logSubsystem, "Writing mount-points")
	return o.ApplyBackends(ctx, backends)
}

func (o *Orchestrator) waitUntil(ctx context.Context, target map[string]bool) error {
	result, err := o.WaitFor(ctx, target)
	if err != nil {
		return err
	}
	if result.Outcome == Exhausted {
		return &AbortError{
			Message: fmt.Sprintf("Vault did not report %v after %d attempts", target, result.Attempts),
		}
	}
	return nil
}
