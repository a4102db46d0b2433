package wireguard

import "context"

// Issue records a non-fatal availability-probe failure for one variant,
// collected by Select so the caller can log why earlier variants were
// skipped (spec.md §4.5).
type Issue struct {
	Variant string
	Err     error
}

// Select probes candidates in order and returns the first one whose
// Available call reports true, along with the issues recorded for any
// variants skipped along the way. If no variant is available, Select
// returns a nil Capability and the caller must operate without WireGuard
// programming, per spec.md §4.5.
func Select(ctx context.Context, candidates []Capability) (Capability, []Issue) {
	var issues []Issue

	for _, c := range candidates {
		ok, err := c.Available(ctx)
		if err != nil {
			issues = append(issues, Issue{Variant: c.Name(), Err: err})
		}

		if ok {
			return c, issues
		}
	}

	return nil, issues
}

// DefaultCandidates returns the three variants in the probe order fixed by
// spec.md §4.5: kernel, userspace, tooling.
func DefaultCandidates() []Capability {
	return []Capability{
		KernelFlavor{},
		UserspaceFlavor{SocketDir: "/var/run/wireguard"},
		NewToolingFlavor(),
	}
}
