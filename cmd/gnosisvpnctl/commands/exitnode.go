package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnosisvpn/gnosisvpnd/internal/control"
)

func exitNodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exit-node <peer-id>",
		Short: "Configure the mixnet exit node (WireGuard peer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := client.ExitNode(control.ExitNodeInput{PeerID: args[0]}); err != nil {
				return fmt.Errorf("exit-node: %w", err)
			}

			fmt.Println("Exit node configured.")

			return nil
		},
	}
}
