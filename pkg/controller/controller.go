// Package controller keeps every Vault pod of a Kubernetes namespace
// initialized and unsealed. Each reconciliation discovers the pods, then runs
// create and unseal against each of them with the shared key file.
package controller

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/getgrowly/vault-lifecycle/pkg/config"
	"github.com/getgrowly/vault-lifecycle/pkg/keyfile"
	"github.com/getgrowly/vault-lifecycle/pkg/kubernetes"
	"github.com/getgrowly/vault-lifecycle/pkg/lifecycle"
	"github.com/getgrowly/vault-lifecycle/pkg/logging"
	"github.com/getgrowly/vault-lifecycle/pkg/vault"
)

const logSubsystem = "Controller"

// Controller is the auto-unseal loop.
type Controller struct {
	k8sClient     *kubernetes.Client
	keys          *keyfile.Store
	cfg           *config.Config
	clientOptions []vault.Option
}

// New creates a controller. clientOptions apply to every per-pod client.
func New(k8sClient *kubernetes.Client, keys *keyfile.Store, cfg *config.Config, clientOptions ...vault.Option) *Controller {
	return &Controller{
		k8sClient:     k8sClient,
		keys:          keys,
		cfg:           cfg,
		clientOptions: clientOptions,
	}
}

// PodAddress returns the Vault address of a pod.
func PodAddress(pod kubernetes.Pod, port string) string {
	return "http://" + net.JoinHostPort(pod.IP, port)
}

// Run reconciles every CheckInterval until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	logging.Info(logSubsystem, "Starting Vault auto-unseal controller with config: namespace=%s, port=%s, interval=%v",
		c.cfg.VaultNamespace, c.cfg.VaultPort, c.cfg.CheckInterval)

	interval := c.cfg.CheckInterval
	if interval <= 0 {
		interval = config.MinCheckInterval
	}

	for {
		if err := c.Reconcile(ctx); err != nil {
			logging.Error(logSubsystem, err, "Reconciliation failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Reconcile makes one pass over the Vault pods. Errors of individual pods are
// logged and do not stop the pass; only failing to list pods is returned.
func (c *Controller) Reconcile(ctx context.Context) error {
	pods, err := c.k8sClient.VaultPods(ctx, c.cfg.VaultNamespace, c.cfg.PodSelector)
	if err != nil {
		return fmt.Errorf("error getting Vault pods: %w", err)
	}

	if len(pods) == 0 {
		logging.Info(logSubsystem, "No Vault pods found")
		return nil
	}

	for _, pod := range pods {
		if err := c.reconcilePod(ctx, pod); err != nil {
			logging.Error(logSubsystem, err, "Error reconciling Vault pod %s", pod.Name)
		}
	}
	return nil
}

func (c *Controller) reconcilePod(ctx context.Context, pod kubernetes.Pod) error {
	addr := PodAddress(pod, c.cfg.VaultPort)
	opts := append([]vault.Option{}, c.clientOptions...)
	orch := lifecycle.New(c.keys, append(opts, vault.WithAddress(addr))...)

	status, err := orch.Status(ctx)
	if err != nil {
		return fmt.Errorf("error checking Vault status: %w", err)
	}

	if !status.Initialized {
		// The key file belongs to the first initialized pod; others are
		// expected to join its cluster instead of being initialized.
		if c.keys.Exists() {
			logging.Warn(logSubsystem, "Vault pod %s is not initialized. Waiting for it to join the cluster...", pod.Name)
			return nil
		}
		logging.Info(logSubsystem, "Initializing Vault pod %s", pod.Name)
		if _, err := orch.Initialize(ctx, c.cfg.SecretShares, c.cfg.SecretThreshold); err != nil {
			return err
		}
		status.Sealed = true
	}

	if !status.Sealed {
		logging.Debug(logSubsystem, "Vault pod %s is unsealed and healthy", pod.Name)
		return nil
	}

	logging.Info(logSubsystem, "Vault pod %s is sealed. Attempting to unseal...", pod.Name)
	if err := orch.Unseal(ctx); err != nil {
		return err
	}
	logging.Info(logSubsystem, "Successfully unsealed Vault pod %s!", pod.Name)
	return nil
}
