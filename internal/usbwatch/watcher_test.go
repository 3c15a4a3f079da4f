package usbwatch

import (
	"context"
	"testing"
	"time"

	"github.com/smazurov/qhynode/internal/events"
)

func TestWatcherPublishesCameraEvents(t *testing.T) {
	bus := events.New()
	received := make(chan events.DeviceDiscoveryEvent, 4)
	unsub := bus.Subscribe(func(e events.DeviceDiscoveryEvent) {
		received <- e
	})
	defer unsub()

	ch := make(chan Event, 4)
	ch <- Event{Action: "add", Subsystem: "usb", DevType: "usb_interface", Env: map[string]string{"PRODUCT": "1618/c179/0"}}
	ch <- Event{Action: "add", Subsystem: "usb", DevType: "usb_device", Env: map[string]string{"PRODUCT": "46d/825/12"}}
	ch <- Event{Action: "add", Subsystem: "usb", DevType: "usb_device", DevName: "bus/usb/001/004", Env: map[string]string{"PRODUCT": "1618/c179/0"}}
	close(ch)

	w := NewWatcher(bus, nil)
	w.Watch(context.Background(), ch)

	select {
	case e := <-received:
		if e.Action != "add" || e.VendorID != "1618" || e.ProductID != "c179" {
			t.Errorf("Unexpected event: %+v", e)
		}
		if e.DevPath != "/dev/bus/usb/001/004" {
			t.Errorf("Expected /dev/bus/usb/001/004, got %q", e.DevPath)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for device event")
	}

	select {
	case e := <-received:
		t.Errorf("Expected only the camera event, also got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Event)
	done := make(chan struct{})

	w := NewWatcher(events.New(), nil)
	go func() {
		w.Watch(ctx, ch)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
