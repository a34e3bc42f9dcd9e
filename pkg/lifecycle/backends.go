package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/getgrowly/vault-lifecycle/pkg/config"
	"github.com/getgrowly/vault-lifecycle/pkg/logging"
	"github.com/getgrowly/vault-lifecycle/pkg/vault"
)

const defaultMySQLSocket = "/var/run/mysqld/mysqld.sock"

// ApplyBackends mounts every backend missing from Vault and writes its
// configuration. Existing mounts are left in place and their configuration
// is written again.
func (o *Orchestrator) ApplyBackends(ctx context.Context, backends *config.Backends) error {
	reg, err := o.Registry()
	if err != nil {
		return err
	}
	sys := reg.Sys()
	data := reg.Data()

	mounts, err := sys.Mounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}

	for _, backend := range backends.SecretBackends {
		mountPath := strings.Trim(backend.Path, "/")
		logging.Info(logSubsystem, "Backend: %s", mountPath)

		if _, ok := mounts[mountPath+"/"]; ok {
			logging.Info(logSubsystem, "  Already exist")
		} else {
			logging.Info(logSubsystem, "  Creating ...")
			err := sys.CreateMount(ctx, mountPath, map[string]any{
				"type":        backend.Type,
				"description": backend.Description,
			})
			if err != nil {
				return fmt.Errorf("failed to mount %s: %w", mountPath, err)
			}
		}

		switch backend.Type {
		case "mysql":
			err = applyMySQLBackend(ctx, data, mountPath, backend)
		default:
			err = applySecretBackend(ctx, data, mountPath, backend)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applySecretBackend(ctx context.Context, data *vault.Data, mountPath string, backend config.Backend) error {
	for _, secret := range backend.Secrets {
		logging.Info(logSubsystem, "  %s", secret.Path)
		path := mountPath + "/" + strings.TrimLeft(secret.Path, "/")
		if _, err := data.Write(ctx, path, secret.Payload); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func applyMySQLBackend(ctx context.Context, data *vault.Data, mountPath string, backend config.Backend) error {
	creds, err := config.LoadMySQLCredentials(backend.Config.IniFile)
	if err != nil {
		return &AbortError{Message: err.Error()}
	}

	dsn := mysql.NewConfig()
	dsn.User = creds.User
	dsn.Passwd = creds.Password
	dsn.Net = "unix"
	dsn.Addr = backend.Config.Socket
	if dsn.Addr == "" {
		dsn.Addr = defaultMySQLSocket
	}

	logging.Info(logSubsystem, "  Writing connection string")
	_, err = data.Write(ctx, mountPath+"/config/connection", map[string]any{
		"connection_url":       dsn.FormatDSN(),
		"max_open_connections": 10,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s connection: %w", mountPath, err)
	}

	logging.Info(logSubsystem, "  Writing lease configuration")
	_, err = data.Write(ctx, mountPath+"/config/lease", map[string]any{
		"lease":     "1h",
		"lease_max": "24h",
	})
	if err != nil {
		return fmt.Errorf("failed to write %s lease: %w", mountPath, err)
	}

	logging.Info(logSubsystem, "  Writing role configuration(s)")
	for _, role := range backend.Roles {
		logging.Info(logSubsystem, "    %s", role.Name)
		_, err := data.Write(ctx, mountPath+"/roles/"+role.Name, map[string]any{
			"sql": strings.Join(role.SQL, ";"),
		})
		if err != nil {
			return fmt.Errorf("failed to write role %s: %w", role.Name, err)
		}
	}
	return nil
}
