// Package commands implements the gnosisvpnctl subcommand tree: status,
// entry-node and exit-node talk to a running daemon over its UNIX control
// socket. Grounded on the teacher's cmd/gobfdctl/commands/root.go cobra
// layout, adapted from a ConnectRPC/TCP client to the control package's
// UNIX-socket JSON client.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnosisvpn/gnosisvpnd/internal/control"
)

var (
	client     *control.Client
	socketPath string
)

var rootCmd = &cobra.Command{
	Use:   "gnosisvpnctl",
	Short: "CLI client for the gnosisvpnd daemon",
	Long:  "gnosisvpnctl communicates with the gnosisvpnd daemon over its UNIX control socket to inspect and reconfigure the mixnet tunnel.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = control.NewClient(socketPath)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", control.SocketPath(), "gnosisvpnd control socket path")
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(entryNodeCmd())
	rootCmd.AddCommand(exitNodeCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command, printing any error to stderr and exiting
// non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
