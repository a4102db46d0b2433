package wireguard

import "context"

// UserspaceFlavor targets a userspace WireGuard implementation (e.g.
// wireguard-go) reachable via its UAPI socket. Mirrors the original's
// wireguard/userspace.rs, which never got past an availability stub either;
// this expansion keeps that honest rather than inventing a UAPI client.
type UserspaceFlavor struct {
	// SocketDir is where userspace WireGuard implementations place their
	// UAPI control sockets (typically /var/run/wireguard).
	SocketDir string
}

// Name implements Capability.
func (UserspaceFlavor) Name() string { return "userspace" }

// Available implements Capability. A real probe would stat SocketDir for a
// named UAPI socket matching the target interface; without a concrete
// interface name to probe for at capability-selection time (the interface
// name is chosen only once a variant is selected), this always reports
// unavailable, matching the original's own stub behavior.
func (UserspaceFlavor) Available(context.Context) (bool, error) {
	return false, nil
}

// GenerateKey implements Capability.
func (UserspaceFlavor) GenerateKey() (string, error) { return GenerateKey() }

// PublicKey implements Capability.
func (UserspaceFlavor) PublicKey(privateKey string) (string, error) { return PublicKey(privateKey) }

// ConnectSession implements Capability.
func (UserspaceFlavor) ConnectSession(context.Context, ConnectSession) error {
	return ErrProgrammingNotSupported
}
