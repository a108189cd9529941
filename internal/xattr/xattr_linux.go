//go:build linux

package xattr

import (
	"errors"

	"golang.org/x/sys/unix"
)

// supported probes the volume by listing attributes on the path itself.
// ENOTSUP (and EPERM on some kernel/filesystem combinations) marks the
// volume as unsupported; other errors, including a missing file, do not.
func supported(path string) bool {
	_, err := unix.Listxattr(path, nil)
	if err == nil {
		return true
	}
	return !errors.Is(err, unix.ENOTSUP) && !errors.Is(err, unix.EPERM)
}

func get(path, name string) ([]byte, error) {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func set(path, name string, value []byte) error {
	return unix.Setxattr(path, name, value, 0)
}

func remove(path, name string) error {
	err := unix.Removexattr(path, name)
	if err != nil && errors.Is(err, unix.ENODATA) {
		return nil
	}
	return err
}
