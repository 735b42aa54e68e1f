package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"replay/internal/ipc"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Control the background capture process",
	}

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause buffering without stopping the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PauseCapture()
				if err != nil {
					return fmt.Errorf("pause capture: %w", err)
				}
				if resp == nil {
					return errors.New("pause response missing")
				}
				return printCapturePhase(cmd, resp.Phase)
			})
		},
	}

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume buffering after a pause",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ResumeCapture()
				if err != nil {
					return fmt.Errorf("resume capture: %w", err)
				}
				if resp == nil {
					return errors.New("resume response missing")
				}
				return printCapturePhase(cmd, resp.Phase)
			})
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the capture process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RestartCapture()
				if err != nil {
					return fmt.Errorf("restart capture: %w", err)
				}
				if resp == nil {
					return errors.New("restart response missing")
				}
				return printCapturePhase(cmd, resp.Phase)
			})
		},
	}

	captureCmd.AddCommand(pauseCmd, resumeCmd, restartCmd)
	return captureCmd
}

func printCapturePhase(cmd *cobra.Command, phase string) error {
	if phase == "" {
		return errors.New("capture phase missing from response")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Capture is %s\n", phase)
	return nil
}
