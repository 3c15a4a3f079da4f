// Package camera drives a single-frame capture against a QHYCCD-style SDK.
//
// A [Session] walks the vendor protocol one call at a time and keeps an
// explicit teardown stack, so the device handle is always closed before the
// SDK resource context is released, on success and on every failure path.
// [Capturer] builds on a Session to size the frame buffer, read the frame and
// validate its metadata.
//
// Everything here is synchronous. A capture blocks for at least the exposure
// time and must not be run concurrently against the same device.
package camera

import "github.com/smazurov/qhynode/pkg/qhyccd"

// SDK is the set of vendor calls a capture session needs. *qhyccd.Library
// implements it against the native library; the sim package provides a
// scriptable implementation for tests and hardware-less runs.
type SDK interface {
	InitResource() uint32
	ReleaseResource() uint32
	Scan() uint32
	CameraID(index uint32) (string, uint32)
	Open(id string) qhyccd.Handle
	Close(h qhyccd.Handle) uint32
	SetStreamMode(h qhyccd.Handle, mode uint8) uint32
	Init(h qhyccd.Handle) uint32
	SetBinMode(h qhyccd.Handle, wbin, hbin uint32) uint32
	SetResolution(h qhyccd.Handle, x, y, width, height uint32) uint32
	SetParam(h qhyccd.Handle, control qhyccd.ControlID, value float64) uint32
	ExposeSingleFrame(h qhyccd.Handle) uint32
	MemLength(h qhyccd.Handle) uint32
	SingleFrame(h qhyccd.Handle, buf []byte) (qhyccd.FrameInfo, uint32)
}

var _ SDK = (*qhyccd.Library)(nil)
