// Package qhyccd binds the QHYCCD camera SDK at runtime.
//
// The vendor library is opened by path with [Load] and every entry point the
// capture protocol needs is resolved up front. Loading is all-or-nothing: if a
// single required symbol is missing the native module is closed again and no
// [Library] is returned, so callers never hold a partially bound table.
//
// Binding uses github.com/ebitengine/purego, so no cgo toolchain is required
// on the build host. On Windows the module is opened with LoadLibrary and the
// same typed slots are registered from GetProcAddress results.
//
// A loaded [Library] is read-only and may be shared between goroutines. The
// SDK itself is not safe for concurrent use on a single camera; callers must
// serialize capture sessions.
//
// Locating the library:
//
//	path := qhyccd.DefaultPath()   // <exe>/../../sdk/x64/libqhyccd.so
//	lib, err := qhyccd.Load(path)
//	if err != nil {
//		return err
//	}
//	defer lib.Unload()
package qhyccd
