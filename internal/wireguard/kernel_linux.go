//go:build linux

package wireguard

import (
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// KernelFlavor probes for native in-kernel WireGuard support by querying
// the generic-netlink controller for a "wireguard" family, the same
// AF_NETLINK/syscall style internal/netio's raw-socket code uses for BFD
// (SOL_SOCKET option plumbing via golang.org/x/sys/unix). It cannot program
// an interface itself — IFLA_WGPEER/IFLA_WGDEVICE attribute encoding is a
// substantial undertaking of its own — so ConnectSession always returns
// ErrProgrammingNotSupported; it does not hand off to the tooling variant.
type KernelFlavor struct{}

// Name implements Capability.
func (KernelFlavor) Name() string { return "kernel" }

// Available implements Capability by asking the kernel's generic-netlink
// controller whether a "wireguard" family is registered.
func (KernelFlavor) Available(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_GENERIC)
	if err != nil {
		return false, fmt.Errorf("wireguard: open generic-netlink socket: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		return false, fmt.Errorf("wireguard: bind generic-netlink socket: %w", err)
	}

	req := familyLookupRequest("wireguard")
	if err := unix.Sendto(fd, req, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		return false, fmt.Errorf("wireguard: send genl family lookup: %w", err)
	}

	buf := make([]byte, 4096)

	n, _, err := unix.Recvfrom(fd, buf, 0)
	if err != nil {
		return false, fmt.Errorf("wireguard: receive genl family lookup reply: %w", err)
	}

	return replyIndicatesFamily(buf[:n]), nil
}

// GenerateKey implements Capability.
func (KernelFlavor) GenerateKey() (string, error) { return GenerateKey() }

// PublicKey implements Capability.
func (KernelFlavor) PublicKey(privateKey string) (string, error) { return PublicKey(privateKey) }

// ConnectSession implements Capability. Programming the interface via
// netlink IFLA_WGDEVICE/IFLA_WGPEER attributes is not implemented (the
// original's kernel.rs is itself an unimplemented stub); it always returns
// ErrProgrammingNotSupported and brings no interface up.
func (KernelFlavor) ConnectSession(context.Context, ConnectSession) error {
	return ErrProgrammingNotSupported
}

const (
	genlCtrlFamilyID  = unix.GENL_ID_CTRL
	genlCtrlCmdGetFam = 3  // CTRL_CMD_GETFAMILY
	ctrlAttrFamilyName = 2 // CTRL_ATTR_FAMILY_NAME
)

// familyLookupRequest builds a CTRL_CMD_GETFAMILY netlink request asking
// for the family registered under name.
func familyLookupRequest(name string) []byte {
	attr := nlAttr(ctrlAttrFamilyName, append([]byte(name), 0))

	genlHeader := []byte{genlCtrlCmdGetFam, 1, 0, 0} // cmd, version, pad(2)
	payload := append(genlHeader, attr...)

	header := make([]byte, unix.NLMSG_HDRLEN)
	binary.LittleEndian.PutUint32(header[0:4], uint32(unix.NLMSG_HDRLEN+len(payload)))
	binary.LittleEndian.PutUint16(header[4:6], genlCtrlFamilyID)
	binary.LittleEndian.PutUint16(header[6:8], unix.NLM_F_REQUEST|unix.NLM_F_ACK)
	binary.LittleEndian.PutUint32(header[8:12], 1)
	binary.LittleEndian.PutUint32(header[12:16], 0)

	return append(header, payload...)
}

// nlAttr encodes a single netlink attribute (type, length-prefixed value,
// padded to a 4-byte boundary).
func nlAttr(attrType uint16, value []byte) []byte {
	const attrHdrLen = 4

	length := attrHdrLen + len(value)
	padded := (length + 3) &^ 3

	out := make([]byte, padded)
	binary.LittleEndian.PutUint16(out[0:2], uint16(length))
	binary.LittleEndian.PutUint16(out[2:4], attrType)
	copy(out[4:], value)

	return out
}

// replyIndicatesFamily reports whether a CTRL_CMD_GETFAMILY reply describes
// a resolved family rather than a netlink error message.
func replyIndicatesFamily(reply []byte) bool {
	if len(reply) < unix.NLMSG_HDRLEN {
		return false
	}

	msgType := binary.LittleEndian.Uint16(reply[4:6])

	return msgType != unix.NLMSG_ERROR
}
