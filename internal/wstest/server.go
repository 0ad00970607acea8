// Package wstest runs an in-process stand-in for the simulation websocket.
package wstest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"intersection/viewer/internal/protocol"
)

// ChannelPath matches the route the real simulation serves.
const ChannelPath = "/ws/simulation"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts viewer connections, records inbound commands and lets tests push frames.
type Server struct {
	httpServer *httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn

	connected chan struct{}
	received  chan []byte
	closeOnce sync.Once
}

// NewServer starts a server that is closed automatically when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		connected: make(chan struct{}, 16),
		received:  make(chan []byte, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(ChannelPath, s.serveWS)
	s.httpServer = httptest.NewServer(mux)
	tb.Cleanup(s.Close)
	return s
}

// URL returns the ws:// endpoint of the simulation channel.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + ChannelPath
}

// Origin returns the http:// origin of the server.
func (s *Server) Origin() string { return s.httpServer.URL }

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	select {
	case s.connected <- struct{}{}:
	default:
	}

	go func() {
		defer conn.Close()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case s.received <- msg:
			default:
			}
		}
	}()
}

// WaitConnected blocks until a viewer connects or the timeout elapses.
func (s *Server) WaitConnected(timeout time.Duration) bool {
	select {
	case <-s.connected:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Send writes one text frame to every connected viewer.
func (s *Server) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return errors.New("no connected viewers")
	}
	for _, conn := range s.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

// SendSnapshot encodes and broadcasts a snapshot.
func (s *Server) SendSnapshot(snapshot *protocol.Snapshot) error {
	payload, err := protocol.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	return s.Send(payload)
}

// Received exposes inbound frames in arrival order.
func (s *Server) Received() <-chan []byte { return s.received }

// NextCommand waits for the next inbound frame and decodes it as a command.
func (s *Server) NextCommand(timeout time.Duration) (protocol.Command, bool) {
	select {
	case raw := <-s.received:
		cmd, err := protocol.DecodeCommand(raw)
		return cmd, err == nil
	case <-time.After(timeout):
		return protocol.Command{}, false
	}
}

// DropConnections closes every viewer socket with a normal close frame.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.conns = nil
}

// Close drops viewers and stops the listener.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.DropConnections()
		s.httpServer.CloseClientConnections()
		s.httpServer.Close()
	})
}

// DialIgnoringPongs connects a raw client that never answers pings, for
// tests that need an unresponsive peer.
func DialIgnoringPongs(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	conn.SetPingHandler(func(string) error { return nil })
	conn.SetPongHandler(func(string) error { return nil })
	return conn, resp, nil
}
