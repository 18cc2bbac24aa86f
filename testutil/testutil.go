package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// RandomString generates a random string of the specified length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// IsolateHome points PEERSYNC_HOME at a fresh temp directory for the test.
func IsolateHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PEERSYNC_HOME", dir)
	return dir
}

// FakeHub is an in-process websocket hub that records frames it receives.
type FakeHub struct {
	Server *httptest.Server

	upgrader websocket.Upgrader
	rejects  atomic.Bool
	accepted atomic.Int32

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	frames   [][]byte
	headers  []http.Header
	received chan []byte
}

// NewFakeHub starts a hub and registers its shutdown with t.Cleanup.
func NewFakeHub(t *testing.T) *FakeHub {
	t.Helper()
	h := &FakeHub{
		conns:    make(map[*websocket.Conn]struct{}),
		received: make(chan []byte, 64),
	}
	h.Server = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(func() {
		h.DropAll()
		h.Server.Close()
	})
	return h
}

// URL returns the ws:// address of the hub.
func (h *FakeHub) URL() string {
	return "ws" + strings.TrimPrefix(h.Server.URL, "http")
}

// Reject makes the hub refuse (true) or accept (false) new handshakes.
func (h *FakeHub) Reject(reject bool) {
	h.rejects.Store(reject)
}

// Accepted returns how many handshakes have succeeded.
func (h *FakeHub) Accepted() int {
	return int(h.accepted.Load())
}

// Received delivers each data frame as it arrives.
func (h *FakeHub) Received() <-chan []byte {
	return h.received
}

// Frames returns a copy of every data frame received so far.
func (h *FakeHub) Frames() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.frames))
	copy(out, h.frames)
	return out
}

// Headers returns the handshake headers of every accepted connection.
func (h *FakeHub) Headers() []http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]http.Header, len(h.headers))
	copy(out, h.headers)
	return out
}

// Broadcast writes a text frame to every live connection and returns how
// many connections received it.
func (h *FakeHub) Broadcast(data []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err == nil {
			n++
		}
	}
	return n
}

// DropAll closes every live connection from the hub side.
func (h *FakeHub) DropAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func (h *FakeHub) serve(w http.ResponseWriter, r *http.Request) {
	if h.rejects.Load() {
		http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.headers = append(h.headers, r.Header.Clone())
	h.mu.Unlock()
	h.accepted.Add(1)

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.mu.Lock()
		h.frames = append(h.frames, data)
		h.mu.Unlock()
		select {
		case h.received <- data:
		default:
		}
	}
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, msg)
}
