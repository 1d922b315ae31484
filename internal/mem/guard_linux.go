//go:build linux

package mem

import "golang.org/x/sys/unix"

func guardPlatform() GuardStatus {
	var s GuardStatus
	s.PrctlSucceeded = unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0) == nil
	s.RlimitSucceeded = unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{Cur: 0, Max: 0}) == nil
	return s
}
