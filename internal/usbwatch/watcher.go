package usbwatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/qhynode/internal/events"
)

// Watcher publishes a DeviceDiscoveryEvent for every QHYCCD camera plugged
// in or removed.
type Watcher struct {
	bus    *events.Bus
	logger *slog.Logger
}

// NewWatcher creates a watcher publishing to bus.
func NewWatcher(bus *events.Bus, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{bus: bus, logger: logger}
}

// Run opens a netlink monitor and watches it until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	mon, err := NewMonitor()
	if err != nil {
		return err
	}
	defer mon.Close()

	ch := make(chan Event, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- mon.Run(ctx, ch)
	}()

	w.logger.Info("Watching for QHYCCD cameras", "vendor_id", QHYCCDVendorID)
	w.Watch(ctx, ch)

	if err := <-errCh; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Watch publishes camera events read from ch until ch closes or ctx ends.
func (w *Watcher) Watch(ctx context.Context, ch <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			w.handle(ev)
		}
	}
}

func (w *Watcher) handle(ev Event) {
	if !ev.IsCamera() {
		return
	}
	vendor, product, _ := ev.USBID()
	devPath := ev.DevName
	if devPath != "" {
		devPath = "/dev/" + devPath
	}

	w.logger.Info("QHYCCD camera "+actionVerb(ev.Action),
		"vendor_id", vendor,
		"product_id", product,
		"dev_path", devPath)
	w.bus.Publish(events.DeviceDiscoveryEvent{
		Action:    ev.Action,
		VendorID:  vendor,
		ProductID: product,
		DevPath:   devPath,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func actionVerb(action string) string {
	if action == ActionAdd {
		return "connected"
	}
	return "disconnected"
}
