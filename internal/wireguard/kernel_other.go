//go:build !linux

package wireguard

import "context"

// KernelFlavor is unavailable on non-Linux hosts: there is no generic-netlink
// "wireguard" family to probe for outside the Linux kernel module.
type KernelFlavor struct{}

// Name implements Capability.
func (KernelFlavor) Name() string { return "kernel" }

// Available implements Capability; always false off Linux.
func (KernelFlavor) Available(context.Context) (bool, error) { return false, nil }

// GenerateKey implements Capability.
func (KernelFlavor) GenerateKey() (string, error) { return GenerateKey() }

// PublicKey implements Capability.
func (KernelFlavor) PublicKey(privateKey string) (string, error) { return PublicKey(privateKey) }

// ConnectSession implements Capability.
func (KernelFlavor) ConnectSession(context.Context, ConnectSession) error {
	return ErrProgrammingNotSupported
}
