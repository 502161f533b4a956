//go:build linux

package serialport

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// lockDevice берёт эксклюзивный flock на устройство: вторая копия демона
// на той же шине испортила бы тайминги обеим.
func lockDevice(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, err
	}
	return f, nil
}
