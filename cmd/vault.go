package cmd

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/getgrowly/vault-lifecycle/pkg/config"
	"github.com/getgrowly/vault-lifecycle/pkg/lifecycle"
)

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Initialize Vault and store the secrets safely",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(false)
			if err != nil {
				return err
			}

			created, err := orch.Create(cmd.Context(), cfg.SecretShares, cfg.SecretThreshold)
			if err != nil {
				return err
			}
			if !created {
				success(cmd, "Vault already initialized")
				return nil
			}
			success(cmd, "Vault is initialized, keys have been written to %s", orch.Keys.Path)
			success(cmd, `Please run "unseal" to start working with Vault`)
			return nil
		},
	}
}

func newSealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Seal the Vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(false)
			if err != nil {
				return err
			}
			if err := orch.Seal(cmd.Context()); err != nil {
				return err
			}
			success(cmd, `Vault has been sealed. Call "unseal" to unseal it again.`)
			return nil
		},
	}
}

func newUnsealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unseal",
		Short: "Unseal the Vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(false)
			if err != nil {
				return err
			}
			if err := orch.Unseal(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "Vault is unsealed")
			return nil
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Export the ENV variables for using the vault CLI tool directly",
		Long: `Export the ENV variables for using the vault CLI tool directly.
Please run: eval $(vaultctl env)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(false)
			if err != nil {
				return err
			}
			return orch.Env(cmd.OutOrStdout())
		},
	}
}

func newMountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mounts",
		Short: "Create the mounts required for global operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(false)
			if err != nil {
				return err
			}
			backends, err := loadBackends(true)
			if err != nil {
				return err
			}
			if err := orch.ApplyBackends(cmd.Context(), backends); err != nil {
				return err
			}
			success(cmd, "Mount-points written")
			return nil
		},
	}
}

// loadBackends reads the backends file. A missing file is an abort when
// required and nil otherwise.
func loadBackends(required bool) (*config.Backends, error) {
	backends, err := config.LoadBackends(cfg.BackendsFile)
	if err == nil {
		return backends, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &lifecycle.AbortError{
			Message:    "Backends file " + cfg.BackendsFile + " does not exist",
			Suggestion: "pass --backends or set VAULT_BACKENDS_FILE",
		}
	}
	return nil, err
}
