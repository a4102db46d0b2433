package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/gnosisvpn/gnosisvpnd/internal/config"
	"github.com/gnosisvpn/gnosisvpnd/internal/engine"
	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
)

// DefaultSocketPath is the default control socket location (spec.md §6).
const DefaultSocketPath = "/var/run/gnosis-vpn.sock"

// SocketPathEnv overrides DefaultSocketPath when set.
const SocketPathEnv = "GNOSISVPN_SOCKET_PATH"

// SocketPath resolves the control socket path from the environment,
// falling back to DefaultSocketPath.
func SocketPath() string {
	if p := os.Getenv(SocketPathEnv); p != "" {
		return p
	}

	return DefaultSocketPath
}

// socketPerm is the listen socket's file mode (spec.md §6: readable and
// writable by any local user, matching the teacher's local-only gRPC
// listener trust model translated to filesystem permissions).
const socketPerm = 0o666

// requestTimeout bounds how long the server waits for a Status reply from
// the reducer before answering with an error, guarding against a wedged
// reducer goroutine.
const requestTimeout = 5 * time.Second

// Server accepts control connections and translates each Command into an
// engine.EventEnvelope posted onto the reducer's Inbound channel. Grounded
// on the teacher's cmd/gobfd/main.go gRPC listener lifecycle, adapted to a
// UNIX socket accept loop.
type Server struct {
	path     string
	listener net.Listener
	reducer  *engine.Reducer
	logger   *slog.Logger
}

// NewServer creates a Server bound to path. Listen must be called to start
// accepting connections.
func NewServer(path string, reducer *engine.Reducer, logger *slog.Logger) *Server {
	return &Server{path: path, reducer: reducer, logger: logger}
}

// Listen removes any stale socket file left by a prior unclean shutdown,
// binds the listener and sets its permissions (spec.md §6).
func (s *Server) Listen() error {
	if err := removeStale(s.path); err != nil {
		return fmt.Errorf("control: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("control: listen %s: %w", s.path, err)
	}

	if err := os.Chmod(s.path, socketPerm); err != nil {
		ln.Close()
		return fmt.Errorf("control: chmod %s: %w", s.path, err)
	}

	s.listener = ln

	return nil
}

// removeStale unlinks a pre-existing socket file at path so a crashed
// daemon's leftover socket doesn't block a fresh bind.
func removeStale(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	return os.Remove(path)
}

// Serve accepts connections until the listener is closed. Each connection
// carries exactly one request/response exchange.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("control: accept: %w", err)
		}

		go s.handle(conn)
	}
}

// Close closes the listener and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}

	err := s.listener.Close()
	_ = os.Remove(s.path)

	return err
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	var cmd Command
	if err := json.NewDecoder(conn).Decode(&cmd); err != nil {
		s.reply(conn, Response{Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	s.logger.Debug("control request", "command", cmd.Redacted())

	resp, err := s.dispatch(cmd)
	if err != nil {
		s.reply(conn, Response{Error: err.Error()})
		return
	}

	s.reply(conn, resp)
}

func (s *Server) reply(conn net.Conn, resp Response) {
	if resp.Error != "" {
		resp.OK = false
	} else {
		resp.OK = true
	}

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn("control: write response", "error", err)
	}
}

func (s *Server) dispatch(cmd Command) (Response, error) {
	switch cmd.Kind {
	case KindStatus:
		return s.dispatchStatus()
	case KindEntryNode:
		return Response{}, s.dispatchEntryNode(cmd.EntryNode)
	case KindExitNode:
		return Response{}, s.dispatchExitNode(cmd.ExitNode)
	default:
		return Response{}, fmt.Errorf("control: unknown command kind %q", cmd.Kind)
	}
}

func (s *Server) dispatchStatus() (Response, error) {
	result := make(chan string, 1)
	s.reducer.Inbound <- engine.EventEnvelope{
		Command: &engine.CommandEvent{Kind: engine.CommandStatus, Result: result},
	}

	select {
	case status := <-result:
		return Response{Status: status}, nil
	case <-time.After(requestTimeout):
		return Response{}, errors.New("control: status request timed out")
	}
}

func (s *Server) dispatchEntryNode(in *EntryNodeInput) error {
	if in == nil {
		return errors.New("control: entry_node command missing payload")
	}

	intermediate, err := parseIntermediate(in.IntermediateID)
	if err != nil {
		return fmt.Errorf("control: intermediate_id: %w", err)
	}

	var listenHost string
	if in.ListenHost != nil {
		listenHost = *in.ListenHost
	}

	if listenHost != "" {
		if err := config.ValidateListenHost(listenHost); err != nil {
			return fmt.Errorf("control: listen_host: %w", err)
		}
	}

	s.reducer.Inbound <- engine.EventEnvelope{
		Command: &engine.CommandEvent{
			Kind: engine.CommandEntryNode,
			EntryNode: engine.EntryNodeParams{
				Endpoint:       in.Endpoint,
				APIToken:       in.APIToken,
				ListenHost:     listenHost,
				Hop:            in.Hop,
				IntermediateID: intermediate,
			},
		},
	}

	return nil
}

func (s *Server) dispatchExitNode(in *ExitNodeInput) error {
	if in == nil {
		return errors.New("control: exit_node command missing payload")
	}

	id, err := peerid.Parse(in.PeerID)
	if err != nil {
		return fmt.Errorf("control: peer_id: %w", err)
	}

	s.reducer.Inbound <- engine.EventEnvelope{
		Command: &engine.CommandEvent{Kind: engine.CommandExitNode, ExitNodeID: id},
	}

	return nil
}
