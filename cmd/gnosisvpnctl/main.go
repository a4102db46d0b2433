// Command gnosisvpnctl is the CLI client for gnosisvpnd.
package main

import "github.com/gnosisvpn/gnosisvpnd/cmd/gnosisvpnctl/commands"

func main() {
	commands.Execute()
}
