package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's current tunnel state",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			status, err := client.Status()
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			fmt.Println(status)

			return nil
		},
	}
}
