package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"replay/internal/daemon"
	"replay/internal/ipc"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print CLI and daemon versions",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "replay %s\n", daemon.Version)

			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				return nil
			}
			defer client.Close()
			if status, err := client.Status(); err == nil && status != nil {
				fmt.Fprintf(stdout, "daemon %s (pid %d)\n", status.Version, status.PID)
			}
			return nil
		},
	}
}
