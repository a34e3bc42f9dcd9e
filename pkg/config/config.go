package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// VaultAddr is the Vault address; empty defers to the client default.
	VaultAddr string
	// VaultNamespace is the Kubernetes namespace where Vault is running
	VaultNamespace string
	// VaultPort is the port number where Vault pods are listening
	VaultPort string
	// StatefulSet is the name of the Vault StatefulSet used to start and stop Vault
	StatefulSet string
	// PodSelector selects the Vault server pods
	PodSelector string
	// Replicas is the replica count restored by start
	Replicas int32
	// CheckInterval is the interval between controller reconciliations
	CheckInterval time.Duration
	// KeyFile is the path of the cached key file; empty means the default
	KeyFile string
	// BackendsFile lists the secret backends created by the mounts command
	BackendsFile string
	// LogLevel is one of debug, info, warn, error
	LogLevel string
	// ListenPort is the port of the controller health server
	ListenPort string
	// SecretShares and SecretThreshold are used when initializing Vault
	SecretShares    int
	SecretThreshold int
}

// MinCheckInterval is the shortest pause between controller reconciliations.
const MinCheckInterval = time.Second

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first; real environment variables win.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		VaultAddr:       os.Getenv("VAULT_ADDR"),
		VaultNamespace:  getEnvOrDefault("VAULT_NAMESPACE", "vault"),
		VaultPort:       getEnvOrDefault("VAULT_PORT", "8200"),
		StatefulSet:     getEnvOrDefault("VAULT_STATEFULSET", "vault"),
		PodSelector:     getEnvOrDefault("VAULT_POD_SELECTOR", "app.kubernetes.io/name=vault,component=server"),
		Replicas:        int32(getEnvAsIntOrDefault("VAULT_REPLICAS", 1)),
		CheckInterval:   time.Duration(getEnvAsIntOrDefault("CHECK_INTERVAL", 10)) * time.Second,
		KeyFile:         os.Getenv("VAULT_KEY_FILE"),
		BackendsFile:    getEnvOrDefault("VAULT_BACKENDS_FILE", "vault.yml"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		ListenPort:      getEnvOrDefault("LISTEN_PORT", "8080"),
		SecretShares:    getEnvAsIntOrDefault("VAULT_SECRET_SHARES", 5),
		SecretThreshold: getEnvAsIntOrDefault("VAULT_SECRET_THRESHOLD", 3),
	}
	if cfg.CheckInterval < MinCheckInterval {
		cfg.CheckInterval = MinCheckInterval
	}

	return cfg
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the value of an environment variable as an integer or a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
