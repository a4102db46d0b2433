package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// dialTimeout bounds how long Client.send waits to connect to the socket.
const dialTimeout = 3 * time.Second

// Client sends Commands to a running daemon's control socket and reads the
// Response back. One connection per call, mirroring the teacher's
// ConnectRPC unary-call client (cmd/gobfdctl/commands/root.go).
type Client struct {
	path string
}

// NewClient returns a Client dialing path.
func NewClient(path string) *Client {
	return &Client{path: path}
}

// Status requests the daemon's current Status text.
func (c *Client) Status() (string, error) {
	resp, err := c.send(Command{Kind: KindStatus})
	if err != nil {
		return "", err
	}

	return resp.Status, nil
}

// EntryNode sends an EntryNode command.
func (c *Client) EntryNode(in EntryNodeInput) error {
	_, err := c.send(Command{Kind: KindEntryNode, EntryNode: &in})
	return err
}

// ExitNode sends an ExitNode command.
func (c *Client) ExitNode(in ExitNodeInput) error {
	_, err := c.send(Command{Kind: KindExitNode, ExitNode: &in})
	return err
}

func (c *Client) send(cmd Command) (Response, error) {
	conn, err := net.DialTimeout("unix", c.path, dialTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("control: dial %s: %w", c.path, err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return Response{}, fmt.Errorf("control: encode request: %w", err)
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return Response{}, fmt.Errorf("control: half-close request: %w", err)
		}
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("control: decode response: %w", err)
	}

	if !resp.OK {
		return Response{}, errors.New(resp.Error)
	}

	return resp, nil
}
