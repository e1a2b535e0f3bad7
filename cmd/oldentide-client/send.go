package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lcx/oldentide-client/net"
)

var sendCmd = &cobra.Command{
	Use:   "send <command>",
	Short: "Connect, send one player command and print the server's echo",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cm, err := setup(cmd)
		if err != nil {
			return err
		}
		defer cm.Close()

		out := cmd.OutOrStdout()
		client, err := net.NewClient(cmd.Context(), cfg, net.WithDisplay(net.DisplayFunc(func(text string) {
			fmt.Fprintln(out, text)
		})))
		if err != nil {
			return err
		}
		defer client.Close()

		if _, err := client.Connect(cmd.Context()); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		echo, err := client.Broadcast(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		fmt.Fprintln(out, echo)
		return nil
	},
}
