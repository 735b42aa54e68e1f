package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"replay/internal/ipc"
)

func newSaveCommand(ctx *commandContext) *cobra.Command {
	var seconds int
	var title string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the last N seconds of the buffer as a clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Save(ipc.SaveRequest{Seconds: seconds, Title: title})
				if err != nil {
					return fmt.Errorf("queue save: %w", err)
				}
				if resp == nil {
					return errors.New("save response missing")
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if resp.Title != "" {
					fmt.Fprintf(stdout, "Save queued: %ds clip %q (request %s)\n", resp.Seconds, resp.Title, resp.RequestID)
				} else {
					fmt.Fprintf(stdout, "Save queued: %ds clip (request %s)\n", resp.Seconds, resp.RequestID)
				}
				fmt.Fprintln(stdout, "Run `replay clips` to check the result")
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&seconds, "seconds", "s", 0, "Clip length in seconds (0 uses the configured default)")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Clip title (default: active window title)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the save acknowledgement as JSON")
	return cmd
}
