// Package wireguard implements the capability interface for programming a
// local WireGuard interface, with three interchangeable back-end variants
// probed in order at startup (spec.md §4.5).
package wireguard

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// ErrProgrammingNotSupported is returned by a variant's ConnectSession when
// that variant can probe availability but cannot itself program an
// interface (spec.md §4.5: the original's kernel.rs/userspace.rs are
// themselves unimplemented stubs; only the tooling variant programs an
// interface here).
var ErrProgrammingNotSupported = errors.New("wireguard: variant does not support interface programming")

// Interface describes the local WireGuard interface parameters of a
// ConnectSession, spec.md §4.5.
type Interface struct {
	PrivateKey string
	Address    string
	// AllowedIPs, if empty, defaults to the /24 of Address (tooling variant
	// only — see tooling.go).
	AllowedIPs string
}

// Peer describes the remote WireGuard peer parameters of a ConnectSession.
type Peer struct {
	PublicKey string
	Endpoint  string
}

// ConnectSession is the programming request passed to Capability.ConnectSession.
type ConnectSession struct {
	Interface Interface
	Peer      Peer
}

// Capability is the WireGuard programming interface every back-end variant
// implements (spec.md §4.5).
type Capability interface {
	// Name identifies the variant for logging ("kernel", "userspace", "tooling").
	Name() string
	// Available probes whether this variant can be used on the current host.
	// Returns false and a diagnostic error on a failed (non-fatal) probe.
	Available(ctx context.Context) (bool, error)
	// GenerateKey returns a new base64-encoded Curve25519 private key.
	GenerateKey() (string, error)
	// PublicKey derives the base64-encoded public key for a base64-encoded
	// private key.
	PublicKey(privateKey string) (string, error)
	// ConnectSession programs the local interface described by cs. Returns
	// an error if this variant cannot program an interface at all (e.g.
	// userspace, which is a stub — see userspace.go).
	ConnectSession(ctx context.Context, cs ConnectSession) error
}

// GenerateKey returns a new base64-encoded Curve25519 private key, clamped
// per RFC 7748 §5 the same way wg(8) and every WireGuard implementation
// does. Shared by all three variants since key generation does not depend
// on which back-end programs the interface.
func GenerateKey() (string, error) {
	var priv [32]byte

	if _, err := rand.Read(priv[:]); err != nil {
		return "", fmt.Errorf("wireguard: generate key: %w", err)
	}

	clamp(&priv)

	return base64.StdEncoding.EncodeToString(priv[:]), nil
}

// PublicKey derives the base64-encoded public key for a base64-encoded
// Curve25519 private key via scalar multiplication against the curve's
// base point, exactly as wg(8)'s `wg pubkey` does.
func PublicKey(privateKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("wireguard: decode private key: %w", err)
	}

	if len(raw) != curve25519.ScalarSize {
		return "", fmt.Errorf("wireguard: private key must be %d bytes, got %d", curve25519.ScalarSize, len(raw))
	}

	pub, err := curve25519.X25519(raw, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("wireguard: derive public key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(pub), nil
}

func clamp(key *[32]byte) {
	key[0] &= 248
	key[31] &= 127
	key[31] |= 64
}
