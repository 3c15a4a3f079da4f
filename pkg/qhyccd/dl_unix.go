//go:build !windows

package qhyccd

import (
	"errors"

	"github.com/ebitengine/purego"
)

type dlModule struct {
	handle uintptr
}

func openModule(path string) (module, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}
	if handle == 0 {
		return nil, errors.New("dlopen returned a null handle")
	}
	return &dlModule{handle: handle}, nil
}

func (m *dlModule) Symbol(name string) (uintptr, error) {
	return purego.Dlsym(m.handle, name)
}

func (m *dlModule) Close() error {
	if m.handle == 0 {
		return nil
	}
	err := purego.Dlclose(m.handle)
	m.handle = 0
	return err
}
