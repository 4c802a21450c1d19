//go:build unix

package container

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Lock takes an advisory exclusive lock on the container file so a
// second engine process cannot open the same container concurrently —
// the engine itself still serializes mutations through one worker
// (spec §5), this guards against a second *process*.
func (cf *File) Lock() error {
	if err := unix.Flock(int(cf.f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("container.File.Lock: %w", err)
	}
	return nil
}

func (cf *File) Unlock() error {
	if err := unix.Flock(int(cf.f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("container.File.Unlock: %w", err)
	}
	return nil
}
