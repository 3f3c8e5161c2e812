package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mapResolver resolves devices from a fixed table.
type mapResolver struct {
	addresses map[string]string
}

func (r *mapResolver) Resolve(_ context.Context, device string) (string, error) {
	address, ok := r.addresses[device]
	if !ok {
		return "", fmt.Errorf("device %q not found", device)
	}
	return address, nil
}

// testServer wraps an httptest server that records request paths and counts
// accepted TCP connections.
type testServer struct {
	*httptest.Server

	mu    sync.Mutex
	paths []string
	conns atomic.Int32
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.paths = append(ts.paths, r.URL.Path)
		ts.mu.Unlock()
		handler(w, r)
	}))
	ts.Server.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			ts.conns.Add(1)
		}
	}
	ts.Server.Start()
	t.Cleanup(ts.Server.Close)
	return ts
}

func (ts *testServer) address() string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func (ts *testServer) requestPaths() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.paths...)
}

type recorder struct {
	responses chan string
	errors    chan error
}

func newRecorder() *recorder {
	return &recorder{
		responses: make(chan string, 16),
		errors:    make(chan error, 16),
	}
}

func (r *recorder) await(t *testing.T, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case body := <-r.responses:
			got = append(got, body)
		case err := <-r.errors:
			t.Fatalf("unexpected dispatch error: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for response %d of %d", i+1, n)
		}
	}
	return got
}

func (r *recorder) awaitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errors:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch error")
		return nil
	}
}

func newTestDispatcher(t *testing.T, resolver Resolver) (*Dispatcher, *recorder) {
	t.Helper()
	d := New(resolver, Config{Timeout: 5 * time.Second, Retries: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := newRecorder()
	d.SetOnResponse(func(_, body string) { rec.responses <- body })
	d.SetOnError(func(_ string, err error) { rec.errors <- err })
	t.Cleanup(d.Close)
	return d, rec
}

func TestSubmitOrderAndConnectionReuse(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Path)
	})
	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{"dev": ts.address()}})

	ctx := context.Background()
	if err := d.Submit(ctx, SetPin("dev", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := d.Submit(ctx, SetPin("dev", "fan", false)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	rec.await(t, 2)

	want := []string{"/lamp/1", "/fan/0"}
	got := ts.requestPaths()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("request order = %v, want %v", got, want)
	}
	if n := ts.conns.Load(); n != 1 {
		t.Errorf("connections accepted = %d, want 1 (keep-alive reuse)", n)
	}
}

func TestClearDeviceForcesFreshConnection(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{"dev": ts.address()}})

	ctx := context.Background()
	if err := d.Submit(ctx, SetPin("dev", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	rec.await(t, 1)

	// ClearDevice blocks until the old actor has exited.
	if err := d.Submit(ctx, NewClearDevice("dev")); err != nil {
		t.Fatalf("Submit(clear) error = %v", err)
	}

	if err := d.Submit(ctx, SetPin("dev", "lamp", false)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	rec.await(t, 1)

	if n := ts.conns.Load(); n != 2 {
		t.Errorf("connections accepted = %d, want 2 (teardown forces a fresh connection)", n)
	}
}

func TestClearDeviceDrainsQueuedRequests(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{"dev": ts.address()}})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := d.Submit(ctx, SetPin("dev", "lamp", true)); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	// Teardown must deliver the queued requests before completing.
	if err := d.Submit(ctx, NewClearDevice("dev")); err != nil {
		t.Fatalf("Submit(clear) error = %v", err)
	}

	if got := len(ts.requestPaths()); got != 3 {
		t.Errorf("requests delivered before teardown = %d, want 3", got)
	}
	rec.await(t, 3)
}

func TestTransportFailureRetriesOnce(t *testing.T) {
	var attempts atomic.Int32
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			// Kill the connection without answering: a transport error,
			// not a bad response.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer is not a hijacker")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack failed: %v", err)
				return
			}
			conn.Close()
			return
		}
		fmt.Fprint(w, "ok")
	})
	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{"dev": ts.address()}})

	if err := d.Submit(context.Background(), SetPin("dev", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got := rec.await(t, 1)
	if got[0] != "ok" {
		t.Errorf("response = %q, want ok", got[0])
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2 (one failure, one retry)", n)
	}
	// Exactly one response handler invocation, no duplicates.
	select {
	case body := <-rec.responses:
		t.Errorf("duplicate response %q", body)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestExhaustedRetries(t *testing.T) {
	var attempts atomic.Int32
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		hj, _ := w.(http.Hijacker)
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack failed: %v", err)
			return
		}
		conn.Close()
	})
	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{"dev": ts.address()}})

	if err := d.Submit(context.Background(), SetPin("dev", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := rec.awaitError(t); err == nil {
		t.Fatal("expected an error after exhausted retries")
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", n)
	}
}

func TestBadResponseNotRetried(t *testing.T) {
	var attempts atomic.Int32
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "no such pin", http.StatusNotFound)
	})
	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{"dev": ts.address()}})

	if err := d.Submit(context.Background(), SetPin("dev", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	err := rec.awaitError(t)
	var bad *BadResponseError
	if !errors.As(err, &bad) {
		t.Fatalf("error = %v, want BadResponseError", err)
	}
	if bad.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", bad.StatusCode)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1 (bad responses are not retried)", n)
	}
}

func TestResolutionFailureForwarded(t *testing.T) {
	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{}})

	if err := d.Submit(context.Background(), SetPin("ghost", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := rec.awaitError(t); err == nil {
		t.Fatal("expected resolution error to be forwarded")
	}
}

func TestIndependentDevices(t *testing.T) {
	// A stalled device must not delay another device's delivery.
	release := make(chan struct{})
	slow := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, "slow")
	})
	fast := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "fast")
	})
	defer close(release)

	d, rec := newTestDispatcher(t, &mapResolver{addresses: map[string]string{
		"slow": slow.address(),
		"fast": fast.address(),
	}})

	ctx := context.Background()
	if err := d.Submit(ctx, SetPin("slow", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := d.Submit(ctx, SetPin("fast", "lamp", true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case body := <-rec.responses:
		if body != "fast" {
			t.Errorf("first response = %q, want fast", body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fast device blocked behind slow device")
	}
}

func TestSubmitAfterClose(t *testing.T) {
	d, _ := newTestDispatcher(t, &mapResolver{addresses: map[string]string{"dev": "127.0.0.1:1"}})
	d.Close()

	if err := d.Submit(context.Background(), SetPin("dev", "lamp", true)); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after close error = %v, want ErrClosed", err)
	}
}
