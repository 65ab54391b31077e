package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/valerio/go-pacer/pacer/backend"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 2 * time.Second

	// readLimit caps client messages, which are only read to notice a close.
	readLimit = 512
)

// Server exposes the most recent Report over HTTP and streams every
// published Report to websocket subscribers. Slow subscribers only ever see
// the newest report.
type Server struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu          sync.RWMutex
	latest      Report
	hasLatest   bool
	subscribers map[*subscriber]struct{}

	closing   chan struct{}
	closeOnce sync.Once
}

type subscriber struct {
	updates chan Report
}

// New creates a telemetry server listening on bind once ListenAndServe is
// called.
func New(bind string) *Server {
	r := mux.NewRouter()
	s := &Server{
		httpServer: &http.Server{
			Addr:              bind,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subscribers: make(map[*subscriber]struct{}),
		closing:     make(chan struct{}),
	}
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/ws", s.handleWS).Methods("GET")
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }
func (s *Server) Addr() string          { return s.httpServer.Addr }

func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

// Shutdown stops accepting requests and ends every websocket stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpServer.Shutdown(ctx)
}

// Publish converts frame to a Report and hands it to every subscriber.
func (s *Server) Publish(frame *backend.Frame) {
	s.PublishReport(NewReport(frame))
}

// PublishReport stores r as the latest report and queues it for every
// subscriber, replacing any report a subscriber has not sent yet.
func (s *Server) PublishReport(r Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = r
	s.hasLatest = true
	for sub := range s.subscribers {
		sub.offer(r)
	}
}

// Latest returns the most recently published report.
func (s *Server) Latest() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// Subscribers returns the number of connected websocket clients.
func (s *Server) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// offer must be called with the server lock held, it is the only sender.
func (sub *subscriber) offer(r Report) {
	select {
	case sub.updates <- r:
		return
	default:
	}

	// drop the stale report
	select {
	case <-sub.updates:
	default:
	}
	sub.updates <- r
}

func (s *Server) subscribe() *subscriber {
	sub := &subscriber{updates: make(chan Report, 1)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[sub] = struct{}{}
	if s.hasLatest {
		sub.updates <- s.latest
	}
	return sub
}

func (s *Server) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, sub)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	report, ok := s.Latest()
	if !ok {
		http.Error(w, "no frame rendered yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		slog.Warn("Failed to write stats response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sub := s.subscribe()
	defer s.unsubscribe(sub)
	slog.Debug("Telemetry subscriber connected", "remote", r.RemoteAddr)

	// the read side only exists to notice the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(readLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			slog.Debug("Telemetry subscriber disconnected", "remote", r.RemoteAddr)
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		case report := <-sub.updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(report); err != nil {
				slog.Debug("Telemetry write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
