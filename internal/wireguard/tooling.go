package wireguard

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolingFlavor programs a WireGuard interface by rendering a wg-quick(8)
// style INI configuration file and invoking "wg-quick up" against it,
// grounded on the exec.Command/config-render pattern the pack's
// other_examples WireGuard connector uses (shell out to ip/wg rather than
// a netlink library). This is the only variant that actually brings up an
// interface, per spec.md §4.5 and the original's own wireguard/tooling.rs.
type ToolingFlavor struct {
	// LookPath resolves the wg-quick binary; overridable in tests.
	LookPath func(string) (string, error)
	// CacheDir returns the directory rendered config files are written to;
	// overridable in tests. Defaults to os.UserCacheDir()/gnosisvpn.
	CacheDir func() (string, error)
}

// NewToolingFlavor returns a ToolingFlavor using the real exec.LookPath and
// os.UserCacheDir.
func NewToolingFlavor() *ToolingFlavor {
	return &ToolingFlavor{
		LookPath: exec.LookPath,
		CacheDir: defaultCacheDir,
	}
}

func defaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("wireguard: resolve user cache dir: %w", err)
	}

	return filepath.Join(dir, "gnosisvpn"), nil
}

// Name implements Capability.
func (*ToolingFlavor) Name() string { return "tooling" }

// Available implements Capability by checking that both wg-quick and wg are
// on PATH.
func (t *ToolingFlavor) Available(context.Context) (bool, error) {
	if _, err := t.LookPath("wg-quick"); err != nil {
		return false, fmt.Errorf("wireguard: wg-quick not found: %w", err)
	}

	if _, err := t.LookPath("wg"); err != nil {
		return false, fmt.Errorf("wireguard: wg not found: %w", err)
	}

	return true, nil
}

// GenerateKey implements Capability.
func (*ToolingFlavor) GenerateKey() (string, error) { return GenerateKey() }

// PublicKey implements Capability.
func (*ToolingFlavor) PublicKey(privateKey string) (string, error) { return PublicKey(privateKey) }

// ConnectSession renders cs as a wg-quick INI file under CacheDir and runs
// "wg-quick up <file>" against it.
func (t *ToolingFlavor) ConnectSession(ctx context.Context, cs ConnectSession) error {
	dir, err := t.CacheDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("wireguard: create config dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, "gnosisvpn-wg0.conf")

	if err := os.WriteFile(path, []byte(renderConfig(cs)), 0o600); err != nil {
		return fmt.Errorf("wireguard: write config %s: %w", path, err)
	}

	cmd := exec.CommandContext(ctx, "wg-quick", "up", path)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("wireguard: wg-quick up %s: %w (%s)", path, err, strings.TrimSpace(string(out)))
	}

	return nil
}

// renderConfig renders cs as an INI file with [Interface] and [Peer]
// sections, per spec.md §4.5.
func renderConfig(cs ConnectSession) string {
	var b strings.Builder

	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", cs.Interface.PrivateKey)
	fmt.Fprintf(&b, "Address = %s\n", cs.Interface.Address)

	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", cs.Peer.PublicKey)
	fmt.Fprintf(&b, "Endpoint = %s\n", cs.Peer.Endpoint)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", allowedIPs(cs.Interface))
	b.WriteString("PersistentKeepalive = 30\n")

	return b.String()
}

// allowedIPs returns iface.AllowedIPs if set, else the /24 containing
// iface.Address (spec.md §4.5).
func allowedIPs(iface Interface) string {
	if iface.AllowedIPs != "" {
		return iface.AllowedIPs
	}

	ip, _, err := net.ParseCIDR(iface.Address)
	if err != nil {
		ip = net.ParseIP(strings.SplitN(iface.Address, "/", 2)[0])
	}

	if ip == nil {
		return iface.Address
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return iface.Address
	}

	network := net.IPNet{IP: ip4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}

	return network.String()
}
