//go:build linux

package memalloc

import "golang.org/x/sys/unix"

func madviseDontDump(b []byte) error {
	return unix.Madvise(b, unix.MADV_DONTDUMP)
}
