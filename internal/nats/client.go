package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher forwards alerts and state to the remote server and receives
// control commands. It degrades to a no-op when NATS is unavailable.
type Publisher struct {
	url       string
	device    string
	conn      *nats.Conn
	sub       *nats.Subscription
	logger    *slog.Logger
	mu        sync.RWMutex
	onRestart func(reason string)
	connected bool
}

// NewPublisher creates a publisher for one device.
func NewPublisher(url, device string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		url:    url,
		device: device,
		logger: logger.With("component", "nats-publisher", "device", device),
	}
}

// Connect establishes a connection to the NATS server. A failed connection
// leaves the publisher in offline mode; the error is informational.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := []nats.Option{
		nats.Name("camrelay-" + p.device),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
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
			defer p.mu.Unlock()
			p.connected = true
			p.logger.Info("NATS reconnected")
			p.subscribeControlLocked()
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

// subscribeControlLocked subscribes to control commands (must hold lock).
func (p *Publisher) subscribeControlLocked() {
	if p.conn == nil || p.onRestart == nil {
		return
	}

	onRestart := p.onRestart
	sub, err := p.conn.Subscribe(SubjectControl(p.device), func(msg *nats.Msg) {
		ctrl, err := UnmarshalControl(msg.Data)
		if err != nil {
			p.logger.Warn("Failed to unmarshal control message", "error", err)
			return
		}

		p.logger.Info("Received control command", "action", ctrl.Action, "reason", ctrl.Reason)

		switch ctrl.Action {
		case ActionRestart:
			onRestart(ctrl.Reason)
		default:
			p.logger.Warn("Ignoring unknown control action", "action", ctrl.Action)
		}
	})
	if err != nil {
		p.logger.Warn("Failed to subscribe to control commands", "error", err)
		return
	}

	if p.sub != nil {
		_ = p.sub.Unsubscribe()
	}
	p.sub = sub
}

// OnRestart sets the callback for restart commands.
func (p *Publisher) OnRestart(fn func(reason string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRestart = fn

	if fn == nil && p.sub != nil {
		_ = p.sub.Unsubscribe()
		p.sub = nil
		return
	}

	if p.conn != nil && p.connected {
		p.subscribeControlLocked()
	}
}

// PublishAlert publishes an alert. No-op when offline.
func (p *Publisher) PublishAlert(m AlertMessage) {
	p.publish(SubjectAlerts(p.device), "alert", m.Marshal)
}

// PublishState publishes a state change. No-op when offline.
func (p *Publisher) PublishState(m StateMessage) {
	p.publish(SubjectState(p.device), "state", m.Marshal)
}

func (p *Publisher) publish(subject, kind string, marshal func() ([]byte, error)) {
	p.mu.RLock()
	conn := p.conn
	connected := p.connected
	p.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := marshal()
	if err != nil {
		p.logger.Warn("Failed to marshal "+kind, "error", err)
		return
	}

	if err := conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish "+kind, "error", err)
	}
}

// Device returns the device name used in subjects.
func (p *Publisher) Device() string {
	return p.device
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.conn != nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sub != nil {
		_ = p.sub.Unsubscribe()
		p.sub = nil
	}

	if p.conn != nil {
		// Flush so alerts published just before shutdown are not lost.
		_ = p.conn.FlushTimeout(time.Second)
		p.conn.Close()
		p.conn = nil
	}

	p.connected = false
	p.logger.Debug("NATS publisher closed")
}
