package qhyccd

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by optional calls whose symbol the loaded
	// library does not export.
	ErrUnsupported = errors.New("qhyccd: symbol not exported by library")
	// ErrUnloaded is returned when a call is made after Unload.
	ErrUnloaded = errors.New("qhyccd: library unloaded")
)

// LoadError reports that the native module could not be opened.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("qhyccd: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SymbolError reports the first required symbol that could not be resolved.
// The module has already been closed when this error is returned.
type SymbolError struct {
	Name string
	Path string
	Err  error
}

func (e *SymbolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qhyccd: resolve %s in %s: %v", e.Name, e.Path, e.Err)
	}
	return fmt.Sprintf("qhyccd: resolve %s in %s: symbol not found", e.Name, e.Path)
}

func (e *SymbolError) Unwrap() error { return e.Err }

// CallError reports a non-success return code from an SDK call.
type CallError struct {
	Name string
	Code uint32
}

func (e *CallError) Error() string {
	return fmt.Sprintf("qhyccd: %s returned %#x", e.Name, e.Code)
}
