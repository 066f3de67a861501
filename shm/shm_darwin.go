//go:build darwin

package shm

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

var (
	fnShmOpen   func(name *byte, oflag int32, mode uint16) int32
	fnShmUnlink func(name *byte) int32
	loadOnce    sync.Once
	loadErr     error
)

// shm_open is a libc function on macOS, so it is called through purego
// instead of a raw syscall.
func loadSyscalls() error {
	loadOnce.Do(func() {
		lib, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY)
		if err != nil {
			loadErr = fmt.Errorf("dlopen libSystem: %w", err)
			return
		}
		purego.RegisterLibFunc(&fnShmOpen, lib, "shm_open")
		purego.RegisterLibFunc(&fnShmUnlink, lib, "shm_unlink")
	})
	return loadErr
}

func cString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

func shmOpen(name string, flags int, mode uint32) (int, error) {
	if err := loadSyscalls(); err != nil {
		return -1, err
	}
	// shm_open names must start with /
	shmName := "/" + name
	fd := fnShmOpen(cString(shmName), int32(flags), uint16(mode))
	if fd < 0 {
		return -1, fmt.Errorf("shm_open(%q) returned %d", shmName, fd)
	}
	return int(fd), nil
}

func shmUnlink(name string) error {
	if err := loadSyscalls(); err != nil {
		return err
	}
	shmName := "/" + name
	if ret := fnShmUnlink(cString(shmName)); ret < 0 {
		return fmt.Errorf("shm_unlink(%q) returned %d", shmName, ret)
	}
	return nil
}
