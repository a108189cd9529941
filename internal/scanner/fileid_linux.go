//go:build linux

package scanner

import (
	"os"
	"syscall"
)

// fileID identifies a directory across symlinks and bind mounts.
type fileID struct {
	dev uint64
	ino uint64
}

func identify(path string) (fileID, bool) {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return fileID{}, false
	}
	return fileID{dev: uint64(st.Dev), ino: st.Ino}, true
}

func inodeOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
