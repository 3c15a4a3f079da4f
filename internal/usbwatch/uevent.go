// Package usbwatch reports QHYCCD cameras being plugged in and removed by
// listening to kernel uevents over netlink.
package usbwatch

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Actions reported for cameras.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// QHYCCDVendorID is the USB vendor id of QHYCCD cameras.
const QHYCCDVendorID = "1618"

const (
	subsystemUSB  = "usb"
	devTypeDevice = "usb_device"
)

// Event is a parsed kernel uevent.
type Event struct {
	Action    string
	KObj      string
	Subsystem string
	DevType   string
	DevName   string
	DevPath   string
	Env       map[string]string
}

// USBID returns the vendor and product id from the PRODUCT variable,
// zero-padded to four hex digits.
func (e Event) USBID() (vendor, product string, ok bool) {
	parts := strings.Split(e.Env["PRODUCT"], "/")
	if len(parts) < 2 {
		return "", "", false
	}
	vendor, ok = hexID(parts[0])
	if !ok {
		return "", "", false
	}
	product, ok = hexID(parts[1])
	if !ok {
		return "", "", false
	}
	return vendor, product, true
}

func hexID(s string) (string, bool) {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04x", v), true
}

// IsCamera reports whether e is an add or remove of a whole QHYCCD USB
// device. Interface events of the same device are ignored.
func (e Event) IsCamera() bool {
	if e.Subsystem != subsystemUSB || e.DevType != devTypeDevice {
		return false
	}
	if e.Action != ActionAdd && e.Action != ActionRemove {
		return false
	}
	vendor, _, ok := e.USBID()
	return ok && vendor == QHYCCDVendorID
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0...". Messages rebroadcast by udevd start with
// a binary "libudev" header and carry ACTION and DEVPATH as properties.
func ParseUEvent(data []byte) *Event {
	if len(data) == 0 {
		return nil
	}

	parts := bytes.Split(data, []byte{0})
	var event *Event

	if bytes.HasPrefix(data, []byte("libudev")) {
		event = &Event{Env: make(map[string]string)}
		event.parseEnv(parts[1:])
		event.Action = event.Env["ACTION"]
		event.KObj = event.Env["DEVPATH"]
		if event.Action == "" {
			return nil
		}
		return event
	}

	action, kobj, ok := strings.Cut(string(parts[0]), "@")
	if !ok || action == "" {
		return nil
	}
	event = &Event{
		Action: action,
		KObj:   kobj,
		Env:    make(map[string]string),
	}
	event.parseEnv(parts[1:])
	return event
}

// parseEnv reads KEY=VALUE parts. Parts whose key is not an upper-case
// identifier, such as binary header bytes, are skipped.
func (e *Event) parseEnv(parts [][]byte) {
	for _, part := range parts {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || !envKey(key) {
			continue
		}
		e.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			e.Subsystem = value
		case "DEVTYPE":
			e.DevType = value
		case "DEVNAME":
			e.DevName = value
		case "DEVPATH":
			e.DevPath = value
		}
	}
}

func envKey(key string) bool {
	if key == "" {
		return false
	}
	for _, c := range key {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}
