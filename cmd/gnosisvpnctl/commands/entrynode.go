package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gnosisvpn/gnosisvpnd/internal/config"
	"github.com/gnosisvpn/gnosisvpnd/internal/control"
)

var errInvalidHop = errors.New("--hop must be an integer in 0..3")

func entryNodeCmd() *cobra.Command {
	var (
		endpoint     string
		apiToken     string
		listenHost   string
		hop          string
		intermediate string
	)

	cmd := &cobra.Command{
		Use:   "entry-node",
		Short: "Configure the mixnet entry node",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			in := control.EntryNodeInput{
				Endpoint: endpoint,
				APIToken: apiToken,
			}

			if listenHost != "" {
				if err := config.ValidateListenHost(listenHost); err != nil {
					return fmt.Errorf("--listen-host: %w", err)
				}

				in.ListenHost = &listenHost
			}

			if hop != "" && intermediate != "" {
				return errors.New("--hop and --intermediate are mutually exclusive")
			}

			if hop != "" {
				n, err := strconv.ParseUint(hop, 10, 8)
				if err != nil || n > 3 {
					return errInvalidHop
				}

				v := uint8(n)
				in.Hop = &v
			}

			if intermediate != "" {
				in.IntermediateID = &intermediate
			}

			if err := client.EntryNode(in); err != nil {
				return fmt.Errorf("entry-node: %w", err)
			}

			fmt.Println("Entry node configured.")

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&endpoint, "endpoint", "", "entry node REST API endpoint (required)")
	flags.StringVar(&apiToken, "api-token", "", "entry node REST API token (required)")
	flags.StringVar(&listenHost, "listen-host", "", "local WireGuard listen host:port override")
	flags.StringVar(&hop, "hop", "", "mixnet hop count, 0..3")
	flags.StringVar(&intermediate, "intermediate", "", "explicit intermediate peer id")
	cmd.MarkFlagRequired("endpoint")
	cmd.MarkFlagRequired("api-token")

	return cmd
}
