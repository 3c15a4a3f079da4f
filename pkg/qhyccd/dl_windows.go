//go:build windows

package qhyccd

import (
	"fmt"
	"syscall"
)

type dllModule struct {
	handle syscall.Handle
}

func openModule(path string) (module, error) {
	handle, err := syscall.LoadLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("LoadLibrary: %w", err)
	}
	return &dllModule{handle: handle}, nil
}

func (m *dllModule) Symbol(name string) (uintptr, error) {
	return syscall.GetProcAddress(m.handle, name)
}

func (m *dllModule) Close() error {
	if m.handle == 0 {
		return nil
	}
	err := syscall.FreeLibrary(m.handle)
	m.handle = 0
	return err
}
