package cmd

import (
	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start Vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(true)
			if err != nil {
				return err
			}
			if err := orch.Start(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "Vault is running")
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop Vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(true)
			if err != nil {
				return err
			}
			if err := orch.Stop(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "Vault is stopped")
			return nil
		},
	}
}

func newRestartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart Vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(true)
			if err != nil {
				return err
			}
			if err := orch.Restart(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "Vault has been restarted")
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe Vault and all its configuration",
		Long: `Stop Vault, delete the key file and start Vault again.

The storage backend must be wiped by the StatefulSet (for example an
ephemeral volume) for Vault to come back uninitialized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(true)
			if err != nil {
				return err
			}
			if err := orch.Reset(cmd.Context()); err != nil {
				return err
			}
			success(cmd, "Vault has been reset")
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	var noStart bool

	cmd := &cobra.Command{
		Use:   "all",
		Short: `Same as "start" + "create" + "unseal" + "mounts"`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(!noStart)
			if err != nil {
				return err
			}

			backends, err := loadBackends(false)
			if err != nil {
				return err
			}

			heading(cmd, "Bootstrapping Vault")
			if err := orch.Bootstrap(cmd.Context(), cfg.SecretShares, cfg.SecretThreshold, backends); err != nil {
				return err
			}
			success(cmd, "Vault is initialized, unsealed and configured")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noStart, "no-start", false, "do not scale up the Vault StatefulSet first")
	return cmd
}
