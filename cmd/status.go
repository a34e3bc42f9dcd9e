package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/getgrowly/vault-lifecycle/pkg/lifecycle"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get the status of the Vault instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := newOrchestrator(false)
			if err != nil {
				return err
			}

			status, err := orch.Status(cmd.Context())
			if err != nil {
				return err
			}

			renderStatus(cmd, status)

			switch {
			case !status.Initialized:
				warn(cmd, `Vault is not initialized. Please run the "create" command`)
			case status.Sealed:
				warn(cmd, `Vault is not unsealed. Please run the "unseal" command`)
			default:
				success(cmd, "Vault is initialized and unsealed")
			}
			return nil
		},
	}
}

func renderStatus(cmd *cobra.Command, status *lifecycle.Status) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Key", "Value"})
	t.AppendRows([]table.Row{
		{"Initialized", strconv.FormatBool(status.Initialized)},
		{"Sealed", strconv.FormatBool(status.Sealed)},
		{"Key Shares", status.Shares},
		{"Key Threshold", status.Threshold},
		{"Unseal Progress", fmt.Sprintf("%d/%d", status.Progress, status.Threshold)},
	})
	if status.Version != "" {
		t.AppendRow(table.Row{"Version", status.Version})
	}
	t.Render()
}
