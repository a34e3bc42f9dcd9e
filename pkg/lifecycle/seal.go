package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/getgrowly/vault-lifecycle/pkg/keyfile"
	"github.com/getgrowly/vault-lifecycle/pkg/logging"
)

// Status is the initialization and seal state of Vault.
type Status struct {
	Initialized bool
	Sealed      bool
	Threshold   int
	Shares      int
	Progress    int
	Version     string
}

// Status reads the seal status endpoint.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	sys, err := o.sys()
	if err != nil {
		return nil, err
	}
	st, err := sys.SealStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Initialized: st.Initialized,
		Sealed:      st.Sealed,
		Threshold:   st.Threshold,
		Shares:      st.Shares,
		Progress:    st.Progress,
		Version:     st.Version,
	}, nil
}

// SealStatus reports whether Vault is sealed.
func (o *Orchestrator) SealStatus(ctx context.Context) (bool, error) {
	sys, err := o.sys()
	if err != nil {
		return false, err
	}
	return sys.Sealed(ctx)
}

// Initialize initializes Vault and writes the returned keys and root token to
// the key file.
func (o *Orchestrator) Initialize(ctx context.Context, shares, threshold int) (*keyfile.Keys, error) {
	sys, err := o.sys()
	if err != nil {
		return nil, err
	}

	resp, err := sys.Init(ctx, map[string]any{
		"secret_shares":    shares,
		"secret_threshold": threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	keys := &keyfile.Keys{
		Keys:       resp.Keys,
		KeysBase64: resp.KeysBase64,
		RootToken:  resp.RootToken,
	}
	if err := o.Keys.Save(keys); err != nil {
		return nil, err
	}

	logging.Info(logSubsystem, "Vault is initialized, keys have been written to %s", o.Keys.Path)
	return keys, nil
}

// Create initializes Vault unless it already is. It reports whether an
// initialization took place.
func (o *Orchestrator) Create(ctx context.Context, shares, threshold int) (bool, error) {
	status, err := o.Status(ctx)
	if err != nil {
		return false, err
	}
	if status.Initialized {
		logging.Info(logSubsystem, "Vault already initialized")
		return false, nil
	}

	if _, err := o.Initialize(ctx, shares, threshold); err != nil {
		return false, err
	}
	return true, nil
}

// Unseal submits cached key shares, last share first, until Vault reports
// unsealed. The seal status is read again after every submission.
func (o *Orchestrator) Unseal(ctx context.Context) error {
	keys, err := o.Keys.Load()
	if err != nil {
		if errors.Is(err, keyfile.ErrNotExist) {
			return &AbortError{
				Message:    o.Keys.Path + " does not exist",
				Suggestion: `call "create" first`,
			}
		}
		return err
	}

	reg, err := o.registryWithToken(keys.RootToken)
	if err != nil {
		return err
	}
	sys := reg.Sys()

	status, err := sys.SealStatus(ctx)
	if err != nil {
		return err
	}
	if !status.Sealed {
		logging.Info(logSubsystem, "Vault is unsealed")
		return nil
	}

	shares := slices.Clone(keys.Keys)
	cursor := len(shares) - 1
	submitted := 0

	for status.Sealed {
		if cursor < 0 {
			return fmt.Errorf("%w: submitted %d key(s), progress %d of %d",
				ErrInsufficientKeys, submitted, status.Progress, status.Threshold)
		}

		logging.Info(logSubsystem, "Unsealing with key ...")
		if _, err := sys.Unseal(ctx, map[string]any{"key": shares[cursor]}); err != nil {
			return fmt.Errorf("failed to submit unseal key: %w", err)
		}
		cursor--
		submitted++

		if status, err = sys.SealStatus(ctx); err != nil {
			return err
		}
	}

	logging.Info(logSubsystem, "Vault has been unsealed successfully")
	return nil
}

// Seal seals Vault. Sealing an already sealed Vault does nothing.
func (o *Orchestrator) Seal(ctx context.Context) error {
	sys, err := o.sys()
	if err != nil {
		return err
	}

	sealed, err := sys.Sealed(ctx)
	if err != nil {
		return err
	}
	if sealed {
		logging.Info(logSubsystem, "Vault is already sealed")
		return nil
	}

	if err := sys.Seal(ctx); err != nil {
		return fmt.Errorf("failed to seal vault: %w", err)
	}
	logging.Info(logSubsystem, "Vault has been sealed")
	return nil
}
