//go:build !linux

package xattr

import "errors"

var errUnsupported = errors.New("xattr: not supported on this platform")

func supported(string) bool { return false }

func get(string, string) ([]byte, error) { return nil, errUnsupported }

func set(string, string, []byte) error { return errUnsupported }

func remove(string, string) error { return errUnsupported }
