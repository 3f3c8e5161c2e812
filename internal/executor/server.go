package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/petersohn/home-automation/internal/dispatch"
)

// maxDatagramSize bounds one serialized action. Actions are tiny; this is
// generous.
const maxDatagramSize = 64 << 10

// Handler receives each decoded action.
type Handler func(action dispatch.Action)

// Server owns the executor socket: it decodes each datagram into an action
// and hands it to the handler. Undecodable datagrams are logged and
// dropped; the channel is at-least-once, not validated end to end.
type Server struct {
	socketPath string
	handler    Handler
	log        *slog.Logger

	conn *net.UnixConn
	wg   sync.WaitGroup
}

// NewServer creates a Server.
//
// Parameters:
//   - socketPath: Filesystem path of the unix datagram socket
//   - handler: Callback invoked for every decoded action
//   - log: Structured logger
func NewServer(socketPath string, handler Handler, log *slog.Logger) *Server {
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		log:        log,
	}
}

// Start binds the socket and begins serving in the background. A stale
// socket file from a previous run is removed first. The socket is owner-only:
// anything that can write to it can actuate the whole fleet.
func (s *Server) Start() error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", s.socketPath)
	if err != nil {
		return fmt.Errorf("resolving socket address: %w", err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return fmt.Errorf("binding executor socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		conn.Close()
		return fmt.Errorf("restricting socket permissions: %w", err)
	}

	s.conn = conn
	s.log.Info("executor socket listening", "path", s.socketPath)

	s.wg.Add(1)
	go s.serve()
	return nil
}

func (s *Server) serve() {
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Error("executor socket read failed", "error", err)
			}
			return
		}

		var action dispatch.Action
		if err := json.Unmarshal(buf[:n], &action); err != nil {
			s.log.Warn("dropping undecodable datagram", "error", err, "bytes", n)
			continue
		}
		s.handler(action)
	}
}

// Close shuts the socket down, waits for the serve loop to exit and removes
// the socket file.
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.wg.Wait()
	if rmErr := os.Remove(s.socketPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}
