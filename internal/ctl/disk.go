package ctl

import "syscall"

// Rough size of one CSV row of a dump, used to warn before a dump that
// cannot fit.
const approxRowBytes = 180

// diskAvailable returns the bytes available to unprivileged users on the
// filesystem holding path. ok is false when the filesystem can't be queried.
func diskAvailable(path string) (avail uint64, ok bool) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, false
	}
	return stat.Bavail * uint64(stat.Bsize), true
}
