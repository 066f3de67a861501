//go:build linux

package shm

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// shmDir is where glibc's shm_open places named segments.
const shmDir = "/dev/shm"

func shmOpen(name string, flags int, mode uint32) (int, error) {
	return unix.Open(filepath.Join(shmDir, name), flags|unix.O_CLOEXEC|unix.O_NOFOLLOW, mode)
}

func shmUnlink(name string) error {
	return unix.Unlink(filepath.Join(shmDir, name))
}
