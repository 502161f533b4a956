//go:build !linux

package serialport

import "io"

type noLock struct{}

func (noLock) Close() error { return nil }

// lockDevice — заглушка на не-Linux (блокировка не выполняется).
func lockDevice(path string) (io.Closer, error) {
	_ = path
	return noLock{}, nil
}
