package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getgrowly/vault-lifecycle/pkg/controller"
	"github.com/getgrowly/vault-lifecycle/pkg/kubernetes"
	"github.com/getgrowly/vault-lifecycle/pkg/server"
)

func newControllerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "controller",
		Short: "Keep every Vault pod in the namespace initialized and unsealed",
		Long: `Run the auto-unseal controller. Every CHECK_INTERVAL seconds the Vault
pods matching VAULT_POD_SELECTOR in VAULT_NAMESPACE are initialized if needed
and unsealed with the key file. /health, /ready and /metrics are served on
LISTEN_PORT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			k8sClient, err := kubernetes.NewClient()
			if err != nil {
				return err
			}
			store, err := keyStore()
			if err != nil {
				return err
			}

			ctrl := controller.New(k8sClient, store, cfg, clientOptions()...)
			srv := server.NewServer(k8sClient, cfg)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Start(ctx) })
			g.Go(func() error { return ctrl.Run(ctx) })

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
