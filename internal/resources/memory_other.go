//go:build !linux

package resources

import "errors"

// SystemMemory is only implemented on Linux; elsewhere memory_gb must be set.
func SystemMemory() (uint64, error) {
	return 0, errors.New("system memory probe unsupported on this platform")
}
