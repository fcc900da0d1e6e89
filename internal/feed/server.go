// Package feed serves scanner state and attempt events over HTTP and a
// WebSocket stream for headless runs.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/jobs"
)

const (
	writeTimeout = 5 * time.Second
	liveBuffer   = 64
)

// StateFunc reports the current scanner state.
type StateFunc func() domain.ScannerState

// AttemptFunc reports the current attempt.
type AttemptFunc func() domain.Attempt

// Snapshot is the /state response.
type Snapshot struct {
	Scanner domain.ScannerState `json:"scanner"`
	Attempt domain.Attempt      `json:"attempt"`
	LastSeq int64               `json:"lastSeq"`
}

// Server exposes the event bus.
type Server struct {
	events     *jobs.EventBus
	state      StateFunc
	attempt    AttemptFunc
	liveBuffer int
	Upgrader   websocket.Upgrader
}

// NewServer creates a feed over events.
func NewServer(events *jobs.EventBus, state StateFunc, attempt AttemptFunc) *Server {
	return &Server{
		events:     events,
		state:      state,
		attempt:    attempt,
		liveBuffer: liveBuffer,
		Upgrader: websocket.Upgrader{
			CheckOrigin: sameOrLoopbackOrigin,
		},
	}
}

// sameOrLoopbackOrigin admits non-browser clients, pages served from the feed
// host itself and pages on a loopback host.
func sameOrLoopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Router returns the feed routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/state", s.handleState).Methods("GET")
	r.HandleFunc("/events", s.handleEvents).Methods("GET")
	r.HandleFunc("/ws", s.handleStream).Methods("GET")
	return r
}

// ListenAndServe serves the feed on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("feed_listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Snapshot{
		Scanner: s.state(),
		Attempt: s.attempt(),
		LastSeq: s.events.LastSeq(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, "invalid since", http.StatusBadRequest)
		return
	}
	events := s.events.Since(since)
	if events == nil {
		events = []jobs.Event{}
	}
	writeJSON(w, events)
}

// handleStream sends the backlog after ?since= and then live events until the
// client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	since, err := parseSince(r)
	if err != nil {
		http.Error(w, "invalid since", http.StatusBadRequest)
		return
	}

	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	live, cancel := s.events.Subscribe(s.liveBuffer)
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("feed_read_failed", "error", err)
				}
				return
			}
		}
	}()

	last := since
	for _, event := range s.events.Since(since) {
		if err := writeEvent(conn, event); err != nil {
			return
		}
		last = event.Seq
	}

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-live:
			if !ok {
				return
			}
			for _, pending := range s.pending(last, event) {
				if err := writeEvent(conn, pending); err != nil {
					return
				}
				last = pending.Seq
			}
		}
	}
}

// pending returns what to write after last when event arrives live. The bus
// drops live events for a full subscriber, so a sequence gap is filled from
// the history.
func (s *Server) pending(last int64, event jobs.Event) []jobs.Event {
	if event.Seq <= last {
		return nil
	}
	if event.Seq == last+1 {
		return []jobs.Event{event}
	}

	missed := s.events.Since(last)
	out := make([]jobs.Event, 0, len(missed)+1)
	for _, m := range missed {
		if m.Seq > event.Seq {
			break
		}
		out = append(out, m)
	}
	if len(out) == 0 || out[len(out)-1].Seq != event.Seq {
		out = append(out, event)
	}
	slog.Debug("feed_gap_replayed", "from_seq", last, "to_seq", event.Seq, "events", len(out))
	return out
}

func writeEvent(conn *websocket.Conn, event jobs.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

func parseSince(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("feed_write_failed", "error", err)
	}
}
