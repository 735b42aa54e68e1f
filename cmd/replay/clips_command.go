package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"replay/internal/catalog"
	"replay/internal/ipc"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "clips",
		Short: "List saved clips, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Clips(limit)
				if err != nil {
					return fmt.Errorf("list clips: %w", err)
				}
				if resp == nil {
					return errors.New("clips response missing")
				}
				if asJSON {
					return writeJSON(cmd, resp.Clips)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Clips) == 0 {
					fmt.Fprintln(stdout, "No clips saved yet")
					return nil
				}
				rows := make([][]string, 0, len(resp.Clips))
				for _, clip := range resp.Clips {
					rows = append(rows, clipRow(clip))
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Created", "Status", "Length", "Size", "Title", "Output"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of clips to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the clip list as JSON")
	return cmd
}

func clipRow(clip catalog.Clip) []string {
	length := fmt.Sprintf("%ds", clip.RequestedSeconds)
	if clip.ActualSeconds > 0 {
		length = fmt.Sprintf("%.1fs", clip.ActualSeconds)
	}
	size := ""
	if clip.SizeBytes > 0 {
		size = formatBytes(clip.SizeBytes)
	}
	output := clip.OutputPath
	if clip.Status == catalog.StatusFailed && clip.ErrorMessage != "" {
		output = clip.ErrorMessage
	}
	return []string{
		strconv.FormatInt(clip.ID, 10),
		clip.CreatedAt.Local().Format(time.DateTime),
		string(clip.Status),
		length,
		size,
		clip.Title,
		output,
	}
}
