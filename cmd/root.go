package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/getgrowly/vault-lifecycle/pkg/config"
	"github.com/getgrowly/vault-lifecycle/pkg/keyfile"
	"github.com/getgrowly/vault-lifecycle/pkg/kubernetes"
	"github.com/getgrowly/vault-lifecycle/pkg/lifecycle"
	"github.com/getgrowly/vault-lifecycle/pkg/logging"
	"github.com/getgrowly/vault-lifecycle/pkg/vault"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

var (
	cfg *config.Config

	flagAddress  string
	flagKeyFile  string
	flagLogLevel string
	flagBackends string
	flagCACert   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "Manage the lifecycle of a Vault server",
	Long: `vaultctl starts, initializes, unseals, seals and configures a HashiCorp
Vault server. Keys and the root token returned by initialization are kept in a
key file in the home directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		if cmd.Flags().Changed("address") {
			cfg.VaultAddr = flagAddress
		}
		if cmd.Flags().Changed("key-file") {
			cfg.KeyFile = flagKeyFile
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if cmd.Flags().Changed("backends") {
			cfg.BackendsFile = flagBackends
		}

		logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr)
		vault.InitMetrics()
		return nil
	},
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command and exits with a non-zero code on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "vaultctl version %s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(err)
		os.Exit(ExitCodeError)
	}
}

// printError prints aborts as a plain message and suggestion, everything
// else prefixed with "Error:".
func printError(err error) {
	var abort *lifecycle.AbortError
	if errors.As(err, &abort) {
		fmt.Fprintln(os.Stderr, text.FgRed.Sprint(abort.Message))
		if abort.Suggestion != "" {
			fmt.Fprintln(os.Stderr, text.FgYellow.Sprint(abort.Suggestion))
		}
		return
	}
	fmt.Fprintln(os.Stderr, text.FgRed.Sprint("Error: "+err.Error()))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddress, "address", "", "Vault address (default $VAULT_ADDR or http://127.0.0.1:8200)")
	rootCmd.PersistentFlags().StringVar(&flagKeyFile, "key-file", "", "key file path (default $HOME/"+keyfile.DefaultName+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagBackends, "backends", "vault.yml", "secret backends definition file")
	rootCmd.PersistentFlags().StringVar(&flagCACert, "ca-cert", "", "PEM bundle used to verify the Vault server certificate")

	rootCmd.AddCommand(
		newAllCmd(),
		newStartCmd(),
		newStopCmd(),
		newRestartCmd(),
		newResetCmd(),
		newStatusCmd(),
		newCreateCmd(),
		newEnvCmd(),
		newMountsCmd(),
		newSealCmd(),
		newUnsealCmd(),
		newWaitForCmd(),
		newControllerCmd(),
	)
}

// clientOptions returns the options shared by every Vault client.
func clientOptions() []vault.Option {
	var opts []vault.Option
	if cfg.VaultAddr != "" {
		opts = append(opts, vault.WithAddress(cfg.VaultAddr))
	}
	if flagCACert != "" {
		opts = append(opts, vault.WithCACert(flagCACert))
	}
	return opts
}

func keyStore() (*keyfile.Store, error) {
	return keyfile.New(cfg.KeyFile)
}

// newOrchestrator builds an orchestrator. withProcess attaches the
// StatefulSet process controller, which needs cluster access.
func newOrchestrator(withProcess bool) (*lifecycle.Orchestrator, error) {
	store, err := keyStore()
	if err != nil {
		return nil, err
	}
	orch := lifecycle.New(store, clientOptions()...)

	if withProcess {
		k8sClient, err := kubernetes.NewClient()
		if err != nil {
			return nil, err
		}
		orch.Process = &kubernetes.StatefulSetProcess{
			Client:    k8sClient,
			Namespace: cfg.VaultNamespace,
			Name:      cfg.StatefulSet,
			Replicas:  cfg.Replicas,
		}
	}
	return orch, nil
}

func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), text.FgGreen.Sprintf(format, args...))
}

func warn(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), text.FgYellow.Sprintf(format, args...))
}

func heading(cmd *cobra.Command, title string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, text.Bold.Sprint(title))
}
