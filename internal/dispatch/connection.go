package dispatch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// job is one queued unit of work for a connection actor. A poison job shuts
// the worker down after everything queued before it has drained.
type job struct {
	action Action
	poison bool
	done   chan struct{}
}

// connection is the per-address actor: one worker goroutine draining a FIFO
// queue against one keep-alive HTTP client. Requests to the same address
// are therefore executed strictly in submission order; a slow device blocks
// only its own worker.
type connection struct {
	address string
	queue   chan job
	client  *http.Client
	d       *Dispatcher
}

func (d *Dispatcher) newConnection(address string) *connection {
	c := &connection{
		address: address,
		queue:   make(chan job, d.cfg.QueueSize),
		client: &http.Client{
			Timeout:   d.cfg.Timeout,
			Transport: &http.Transport{},
		},
		d: d,
	}
	go c.run()
	return c
}

// enqueue submits without blocking. A full queue is a dispatch error for
// that one action, not a stall for the caller.
func (c *connection) enqueue(a Action) {
	select {
	case c.queue <- job{action: a}:
	default:
		c.d.forwardError(a.Device, fmt.Errorf("%w: %s", ErrQueueFull, c.address))
	}
}

// close enqueues a poison job and blocks until the worker has drained
// everything ahead of it and exited.
func (c *connection) close() {
	done := make(chan struct{})
	c.queue <- job{poison: true, done: done}
	<-done
}

func (c *connection) run() {
	for j := range c.queue {
		if j.poison {
			c.client.CloseIdleConnections()
			close(j.done)
			return
		}
		c.execute(j.action)
	}
}

// execute issues the request, retrying transport failures within the
// bounded budget. Errors are forwarded, never returned: the worker
// survives a failed request and moves on to the next one.
func (c *connection) execute(a Action) {
	url := "http://" + c.address + a.Path

	var lastErr error
	for attempt := 0; attempt <= c.d.cfg.Retries; attempt++ {
		body, err := c.attempt(url)
		if err == nil {
			c.d.forwardResponse(a.Device, body)
			return
		}

		var bad *BadResponseError
		if errors.As(err, &bad) {
			// The device answered; retrying would not change its mind.
			c.d.forwardError(a.Device, err)
			return
		}

		// Transport failure: drop the possibly-broken connection and let
		// the next attempt dial fresh.
		lastErr = err
		c.client.CloseIdleConnections()
	}

	c.d.forwardError(a.Device, fmt.Errorf(
		"dispatch: %d attempts against %s failed: %w",
		c.d.cfg.Retries+1, c.address, lastErr))
}

func (c *connection) attempt(url string) (string, error) {
	resp, err := c.client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &BadResponseError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
