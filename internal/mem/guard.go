package mem

import "sync"

// GuardStatus reports the outcome of the one-time process hardening.
type GuardStatus struct {
	// PrctlSucceeded: prctl(PR_SET_DUMPABLE, 0) applied. Blocks ptrace
	// attachment from unprivileged peers and core dumps. Reversible by
	// other code in the process.
	PrctlSucceeded bool

	// RlimitSucceeded: setrlimit(RLIMIT_CORE, 0) applied. Redundant core
	// dump prevention; does not block ptrace.
	RlimitSucceeded bool
}

var (
	guardOnce   sync.Once
	guardResult GuardStatus
)

// GuardProcess applies best-effort, process-wide hardening against core
// dumps and debugger attachment. The syscalls run once; later calls
// return the cached status. Failure of either call is advisory only.
func GuardProcess() GuardStatus {
	guardOnce.Do(func() {
		guardResult = guardPlatform()
	})
	return guardResult
}
