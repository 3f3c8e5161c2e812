package executor

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/petersohn/home-automation/internal/dispatch"
)

// Client sends dispatch actions to the executor socket. Datagrams preserve
// message boundaries, so each action is one self-contained write and no
// framing is needed.
type Client struct {
	conn net.Conn
}

// Dial connects to the executor socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unixgram", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dialing executor socket: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Send serializes one action onto the socket. Delivery is fire-and-forget:
// a slow device must never block the request-handling path, so there is no
// acknowledgement to wait for.
func (c *Client) Send(a dispatch.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding action: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("sending action: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
