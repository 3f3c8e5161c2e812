package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Resolver maps a device name to its current network address. Backed by the
// state store in production; resolution happens at execution time so a
// device that moved since the action was created is still reached.
type Resolver interface {
	Resolve(ctx context.Context, device string) (address string, err error)
}

// ResponseHandler receives the body of each successful device response.
type ResponseHandler func(device, body string)

// ErrorHandler receives every contained dispatch failure: bad responses,
// exhausted retries, resolution failures and saturated queues.
type ErrorHandler func(device string, err error)

// Config tunes the dispatcher.
type Config struct {
	// Timeout bounds each network operation.
	Timeout time.Duration

	// Retries is how many extra attempts a transport failure gets.
	Retries int

	// QueueSize bounds each per-address queue.
	QueueSize int
}

// Dispatcher delivers actions to devices without blocking the caller and
// without one unreachable device affecting others. It owns one connection
// actor per distinct device address, created lazily on first use.
type Dispatcher struct {
	resolver Resolver
	cfg      Config
	log      *slog.Logger

	onResponse ResponseHandler
	onError    ErrorHandler

	mu     sync.Mutex
	conns  map[string]*connection
	closed bool
}

// New creates a Dispatcher.
//
// Parameters:
//   - resolver: Device name to address resolution
//   - cfg: Timeout, retry budget and queue size
//   - log: Structured logger
func New(resolver Resolver, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Dispatcher{
		resolver: resolver,
		cfg:      cfg,
		log:      log,
		conns:    make(map[string]*connection),
	}
}

// SetOnResponse installs the response handler. Must be called before the
// first Submit.
func (d *Dispatcher) SetOnResponse(fn ResponseHandler) {
	d.onResponse = fn
}

// SetOnError installs the error handler. Must be called before the first
// Submit.
func (d *Dispatcher) SetOnError(fn ErrorHandler) {
	d.onError = fn
}

// Submit hands an action to the dispatcher. Request actions are enqueued on
// the device's connection actor and return immediately. ClearDevice actions
// block until the actor has drained its queue and exited.
//
// All delivery failures are forwarded to the error handler; the only error
// Submit itself returns is ErrClosed.
func (d *Dispatcher) Submit(ctx context.Context, a Action) error {
	address, err := d.resolver.Resolve(ctx, a.Device)
	if err != nil {
		d.forwardError(a.Device, fmt.Errorf("resolving device address: %w", err))
		return nil
	}

	switch a.Type {
	case ActionRequest:
		conn, err := d.connectionFor(address)
		if err != nil {
			return err
		}
		conn.enqueue(a)
		return nil

	case ActionClearDevice:
		conn, err := d.takeConnection(address)
		if err != nil {
			return err
		}
		if conn != nil {
			conn.close()
			d.log.Debug("connection torn down", "device", a.Device, "address", address)
		}
		return nil
	}

	d.forwardError(a.Device, fmt.Errorf("dispatch: unknown action type %q", a.Type))
	return nil
}

// connectionFor returns the actor for an address, starting one if needed.
func (d *Dispatcher) connectionFor(address string) (*connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	conn, ok := d.conns[address]
	if !ok {
		conn = d.newConnection(address)
		d.conns[address] = conn
		d.log.Debug("connection actor started", "address", address)
	}
	return conn, nil
}

// takeConnection removes the actor for an address from the map, if any.
// Requests submitted after this point get a fresh actor.
func (d *Dispatcher) takeConnection(address string) (*connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	conn := d.conns[address]
	delete(d.conns, address)
	return conn, nil
}

// Close tears down every connection actor, letting each drain its pending
// requests first, and rejects all further submissions.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	conns := d.conns
	d.conns = nil
	d.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}

func (d *Dispatcher) forwardResponse(device, body string) {
	if d.onResponse != nil {
		d.onResponse(device, body)
	}
}

func (d *Dispatcher) forwardError(device string, err error) {
	d.log.Error("dispatch failed", "device", device, "error", err)
	if d.onError != nil {
		d.onError(device, err)
	}
}
