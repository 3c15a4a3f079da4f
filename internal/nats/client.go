package nats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/qhynode/internal/capture"
	"github.com/smazurov/qhynode/internal/events"
)

// CaptureFunc runs one capture for a control command.
type CaptureFunc func(ctx context.Context, opts capture.Options) (*capture.Result, error)

// Publisher forwards capture, device and library events from the event bus
// to NATS and serves capture commands on the control subject.
// Gracefully degrades when NATS is unavailable.
type Publisher struct {
	url            string
	eventBus       *events.Bus
	conn           *nats.Conn
	sub            *nats.Subscription
	unsubscribers  []func()
	logger         *slog.Logger
	mu             sync.RWMutex
	onCapture      CaptureFunc
	captureTimeout time.Duration
	connected      bool
}

// NewPublisher creates a publisher for the NATS server at url.
func NewPublisher(url string, eventBus *events.Bus, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		url:      url,
		eventBus: eventBus,
		logger:   logger.With("component", "nats-publisher"),
	}
}

// Start subscribes to the event bus and connects to NATS. Events are dropped
// while disconnected; a failed connect is returned but leaves the publisher
// usable.
func (p *Publisher) Start() error {
	p.mu.Lock()
	p.unsubscribers = []func(){
		p.eventBus.Subscribe(p.handleStarted),
		p.eventBus.Subscribe(p.handleSuccess),
		p.eventBus.Subscribe(p.handleError),
		p.eventBus.Subscribe(p.handleDevice),
		p.eventBus.Subscribe(p.handleLibrary),
	}
	p.mu.Unlock()

	return p.Connect()
}

// Connect establishes a connection to the NATS server.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := []nats.Option{
		nats.Name("qhynode"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.mu.Lock()
			p.connected = false
			p.mu.Unlock()
			if err != nil {
				p.logger.Warn("NATS disconnected", "error", err)
			} else {
				p.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.mu.Lock()
			p.connected = true
			p.mu.Unlock()
			p.logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(p.url, opts...)
	if err != nil {
		p.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	p.conn = conn
	p.connected = true
	p.logger.Info("Connected to NATS", "url", p.url)

	p.subscribeControlLocked()
	return nil
}

// OnCapture serves capture commands on the control subject with fn. Each
// command waits at most timeout; zero means no limit.
func (p *Publisher) OnCapture(fn CaptureFunc, timeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCapture = fn
	p.captureTimeout = timeout

	if p.conn != nil && p.connected {
		p.subscribeControlLocked()
	}
}

// subscribeControlLocked subscribes to capture commands (must hold lock).
// The client library restores subscriptions after a reconnect.
func (p *Publisher) subscribeControlLocked() {
	if p.conn == nil || p.onCapture == nil || p.sub != nil {
		return
	}

	sub, err := p.conn.Subscribe(SubjectControlCapture(), p.handleControl)
	if err != nil {
		p.logger.Warn("Failed to subscribe to capture commands", "error", err)
		return
	}
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("Failed to flush capture command subscription", "error", err)
	}
	p.sub = sub
}

func (p *Publisher) handleControl(msg *nats.Msg) {
	p.mu.RLock()
	fn := p.onCapture
	timeout := p.captureTimeout
	p.mu.RUnlock()

	reply := CaptureReply{}
	cmd, err := UnmarshalCommand(msg.Data)
	if err != nil {
		p.logger.Warn("Failed to unmarshal capture command", "error", err)
		reply.Error = capture.MsgInvalidOptions
		reply.Kind = "INVALID_REQUEST"
		p.respond(msg, reply)
		return
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.logger.Info("Received capture command", "subject", msg.Subject)
	res, err := fn(ctx, capture.Options{
		ExposureMs:  cmd.ExposureMs,
		ExposureUs:  cmd.ExposureUs,
		Gain:        cmd.Gain,
		Offset:      cmd.Offset,
		Width:       cmd.Width,
		Height:      cmd.Height,
		DeviceIndex: cmd.DeviceIndex,
	})
	if err != nil {
		reply.Error = capture.Message(err)
		reply.Kind = capture.Kind(err)
	} else {
		reply.OK = true
		reply.Capture = resultMessage(res)
	}
	p.respond(msg, reply)
}

func (p *Publisher) respond(msg *nats.Msg, reply CaptureReply) {
	if msg.Reply == "" {
		return
	}
	reply.Timestamp = time.Now().Format(time.RFC3339)
	data, err := reply.Marshal()
	if err != nil {
		p.logger.Warn("Failed to marshal capture reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		p.logger.Warn("Failed to send capture reply", "error", err)
	}
}

func resultMessage(res *capture.Result) *CaptureMessage {
	return &CaptureMessage{
		CaptureID:  res.ID,
		Timestamp:  res.CapturedAt.Format(time.RFC3339),
		Status:     "success",
		CameraID:   res.CameraID,
		Width:      res.Width,
		Height:     res.Height,
		BPP:        res.BPP,
		Channels:   res.Channels,
		Bytes:      len(res.Data),
		ExposureUs: res.ExposureUs,
		DurationMs: res.Duration.Milliseconds(),
		Stored:     res.Stored,
	}
}

func (p *Publisher) handleStarted(e events.CaptureStartedEvent) {
	p.publish(SubjectCaptureStarted(e.CaptureID), CaptureMessage{
		CaptureID:  e.CaptureID,
		Timestamp:  e.Timestamp,
		Status:     "started",
		Width:      e.Width,
		Height:     e.Height,
		ExposureUs: e.ExposureUs,
	})
}

func (p *Publisher) handleSuccess(e events.CaptureSuccessEvent) {
	p.publish(SubjectCaptureSuccess(e.CaptureID), CaptureMessage{
		CaptureID:  e.CaptureID,
		Timestamp:  e.Timestamp,
		Status:     "success",
		CameraID:   e.CameraID,
		Width:      e.Width,
		Height:     e.Height,
		BPP:        e.BitDepth,
		Channels:   e.Channels,
		Bytes:      e.Bytes,
		DurationMs: e.DurationMs,
		Stored:     e.Stored,
	})
}

func (p *Publisher) handleError(e events.CaptureErrorEvent) {
	p.publish(SubjectCaptureError(e.CaptureID), ErrorMessage{
		CaptureID: e.CaptureID,
		Timestamp: e.Timestamp,
		Kind:      e.Kind,
		Step:      e.Step,
		Message:   e.Message,
	})
}

func (p *Publisher) handleDevice(e events.DeviceDiscoveryEvent) {
	p.publish(SubjectDevice(e.Action), DeviceMessage{
		Action:    e.Action,
		Timestamp: e.Timestamp,
		VendorID:  e.VendorID,
		ProductID: e.ProductID,
		DevPath:   e.DevPath,
	})
}

func (p *Publisher) handleLibrary(e events.LibraryStateEvent) {
	p.publish(SubjectLibraryState, LibraryMessage{
		Timestamp: e.Timestamp,
		Loaded:    e.Loaded,
		Path:      e.Path,
		Error:     e.Error,
	})
}

type marshaler interface {
	Marshal() ([]byte, error)
}

// publish sends m on subject.
// No-op if not connected (graceful degradation).
func (p *Publisher) publish(subject string, m marshaler) {
	p.mu.RLock()
	conn := p.conn
	connected := p.connected
	p.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := m.Marshal()
	if err != nil {
		p.logger.Warn("Failed to marshal message", "subject", subject, "error", err)
		return
	}

	if err := conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish message", "subject", subject, "error", err)
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.conn != nil
}

// Close unsubscribes from the event bus and closes the NATS connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, unsub := range p.unsubscribers {
		unsub()
	}
	p.unsubscribers = nil

	if p.sub != nil {
		_ = p.sub.Unsubscribe()
		p.sub = nil
	}

	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}

	p.connected = false
	p.logger.Debug("NATS publisher closed")
}
