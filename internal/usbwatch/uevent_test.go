package usbwatch

import (
	"strings"
	"testing"
)

func uevent(header string, env ...string) []byte {
	return []byte(header + "\x00" + strings.Join(env, "\x00") + "\x00")
}

func TestParseUEvent(t *testing.T) {
	data := uevent("add@/devices/platform/usb1/1-1",
		"ACTION=add",
		"DEVPATH=/devices/platform/usb1/1-1",
		"SUBSYSTEM=usb",
		"DEVTYPE=usb_device",
		"DEVNAME=bus/usb/001/004",
		"PRODUCT=1618/c179/0",
		"SEQNUM=4321")

	ev := ParseUEvent(data)
	if ev == nil {
		t.Fatal("Expected event, got nil")
	}
	if ev.Action != "add" {
		t.Errorf("Expected action add, got %q", ev.Action)
	}
	if ev.KObj != "/devices/platform/usb1/1-1" {
		t.Errorf("Expected kobj path, got %q", ev.KObj)
	}
	if ev.Subsystem != "usb" || ev.DevType != "usb_device" {
		t.Errorf("Expected usb/usb_device, got %s/%s", ev.Subsystem, ev.DevType)
	}
	if ev.DevName != "bus/usb/001/004" {
		t.Errorf("Expected devname, got %q", ev.DevName)
	}
	if ev.Env["SEQNUM"] != "4321" {
		t.Errorf("Expected SEQNUM in env, got %q", ev.Env["SEQNUM"])
	}
}

func TestParseUEvent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no at", []byte("garbage\x00KEY=VALUE")},
		{"empty action", []byte("@/devices/x\x00")},
		{"leading null", []byte("\x00add@/devices/x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ev := ParseUEvent(tt.data); ev != nil {
				t.Errorf("Expected nil, got %+v", ev)
			}
		})
	}
}

func TestParseUEvent_LibudevHeader(t *testing.T) {
	header := []byte("libudev\x00\xfe\xed\xca\xfe\x28\x00\x00\x00")
	data := append(header, []byte("ACTION=remove\x00DEVPATH=/devices/usb1/1-1\x00SUBSYSTEM=usb\x00")...)
	ev := ParseUEvent(data)
	if ev == nil {
		t.Fatal("Expected event, got nil")
	}
	if ev.Action != "remove" || ev.Subsystem != "usb" {
		t.Errorf("Expected remove/usb, got %s/%s", ev.Action, ev.Subsystem)
	}
	if ev.KObj != "/devices/usb1/1-1" {
		t.Errorf("Expected kobj from DEVPATH, got %q", ev.KObj)
	}

	if ev := ParseUEvent([]byte("libudev\x00\xfe\xed\x00SUBSYSTEM=usb\x00")); ev != nil {
		t.Errorf("Expected nil without ACTION, got %+v", ev)
	}
}

func TestEventUSBID(t *testing.T) {
	tests := []struct {
		product     string
		wantVendor  string
		wantProduct string
		wantOK      bool
	}{
		{"1618/c179/0", "1618", "c179", true},
		{"1618/6c1/100", "1618", "06c1", true},
		{"46d/825/12", "046d", "0825", true},
		{"", "", "", false},
		{"1618", "", "", false},
		{"zzzz/c179/0", "", "", false},
		{"123456/1/0", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.product, func(t *testing.T) {
			ev := Event{Env: map[string]string{"PRODUCT": tt.product}}
			vendor, product, ok := ev.USBID()
			if ok != tt.wantOK || vendor != tt.wantVendor || product != tt.wantProduct {
				t.Errorf("Expected %q %q %v, got %q %q %v", tt.wantVendor, tt.wantProduct, tt.wantOK, vendor, product, ok)
			}
		})
	}
}

func TestEventIsCamera(t *testing.T) {
	camera := func(action, devType, product string) Event {
		return Event{
			Action:    action,
			Subsystem: "usb",
			DevType:   devType,
			Env:       map[string]string{"PRODUCT": product},
		}
	}

	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"qhy add", camera("add", "usb_device", "1618/c179/0"), true},
		{"qhy remove", camera("remove", "usb_device", "1618/c179/0"), true},
		{"qhy bind", camera("bind", "usb_device", "1618/c179/0"), false},
		{"qhy interface", camera("add", "usb_interface", "1618/c179/0"), false},
		{"other vendor", camera("add", "usb_device", "46d/825/12"), false},
		{"other subsystem", Event{Action: "add", Subsystem: "video4linux", DevType: "usb_device", Env: map[string]string{"PRODUCT": "1618/c179/0"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.IsCamera(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
