package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/claude/repcounter/internal/upload"
)

func newPushCommand(ctx *commandContext) *cobra.Command {
	var serverURL string
	var apiKey string
	var exercise string
	var realtime bool

	cmd := &cobra.Command{
		Use:   "push <trace>",
		Short: "Stream a recorded trace to a running repcounter server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				apiKey = os.Getenv("REPCOUNTER_AUTH_API_KEY")
			}
			poses, err := readTrace(cmd, args[0])
			if err != nil {
				return err
			}

			p := upload.NewPusher(upload.NewClient(serverURL, apiKey), ctx.logger(cmd))
			p.Realtime = realtime
			sum, err := p.Push(cmd.Context(), exercise, poses)
			if err != nil {
				return err
			}

			if ctx.json() {
				return writeJSON(cmd, sum)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d reps (session %s)\n", sum.Exercise, sum.RepCount, sum.SessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "http://127.0.0.1:8080", "Base URL of the repcounter server")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (defaults to $REPCOUNTER_AUTH_API_KEY)")
	cmd.Flags().StringVarP(&exercise, "exercise", "e", "", "Exercise to count")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Pace frames by their recorded timestamps")
	_ = cmd.MarkFlagRequired("exercise")

	return cmd
}
