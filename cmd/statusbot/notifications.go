package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/statusbot/internal/command"
)

func notificationsCmd() *cobra.Command {
	var (
		channel   string
		serverURL string
	)
	cmd := &cobra.Command{
		Use:       "notifications <active|disable>",
		Short:     "Switch scheduled notifications on a running server",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{command.ActionActive, command.ActionDisable},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			msg, err := newAPIClient(serverURL).SetNotifications(ctx, args[0], channel)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "channel that receives notifications")
	cmd.Flags().StringVar(&serverURL, "server", defaultServerURL, "address of a running statusbot server")
	return cmd
}
