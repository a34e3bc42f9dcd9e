package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getgrowly/vault-lifecycle/pkg/config"
	"github.com/getgrowly/vault-lifecycle/pkg/controller"
	"github.com/getgrowly/vault-lifecycle/pkg/kubernetes"
	"github.com/getgrowly/vault-lifecycle/pkg/logging"
	"github.com/getgrowly/vault-lifecycle/pkg/vault"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 30 * time.Second
	shutdownTimeout     = 5 * time.Second

	logSubsystem = "Server"
)

// StatusChecker returns the seal status of the Vault at addr.
type StatusChecker func(ctx context.Context, addr string) (*vault.SealStatus, error)

// Server represents the HTTP server for health, readiness and metrics
type Server struct {
	k8sClient *kubernetes.Client
	cfg       *config.Config

	// CheckStatus defaults to querying the pod's seal-status endpoint.
	CheckStatus StatusChecker
}

// NewServer creates a new HTTP server
func NewServer(k8sClient *kubernetes.Client, cfg *config.Config) *Server {
	return &Server{
		k8sClient:   k8sClient,
		cfg:         cfg,
		CheckStatus: sealStatus,
	}
}

func sealStatus(ctx context.Context, addr string) (*vault.SealStatus, error) {
	client, err := vault.NewClient(vault.WithAddress(addr), vault.WithTimeout(defaultReadTimeout))
	if err != nil {
		return nil, err
	}
	return vault.NewSys(client).SealStatus(ctx)
}

// Handler returns the routes served by the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.ListenPort),
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(logSubsystem, "Starting HTTP server on port %s", s.cfg.ListenPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logging.Debug(logSubsystem, "Health check request received from %s", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
}

// handleReady reports ready only when Vault pods exist and every one of them
// is initialized and unsealed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logging.Debug(logSubsystem, "Readiness check request received from %s", r.RemoteAddr)

	pods, err := s.k8sClient.VaultPods(r.Context(), s.cfg.VaultNamespace, s.cfg.PodSelector)
	if err != nil {
		logging.Error(logSubsystem, err, "Error getting Vault pods")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	allReady := len(pods) > 0
	for _, pod := range pods {
		addr := controller.PodAddress(pod, s.cfg.VaultPort)

		status, err := s.CheckStatus(r.Context(), addr)
		if err != nil {
			logging.Error(logSubsystem, err, "Error checking Vault status for %s", addr)
			allReady = false
			continue
		}

		if !status.Initialized || status.Sealed {
			allReady = false
		}
	}

	if !allReady {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}
