package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/jobs"
)

func newTestServer(t *testing.T) (*jobs.EventBus, *httptest.Server) {
	t.Helper()
	bus := jobs.NewEventBus(100)
	s := NewServer(bus,
		func() domain.ScannerState { return domain.ScannerStateCapturing },
		func() domain.Attempt {
			return domain.Attempt{ID: "attempt-1", SSID: "HomeNet", Status: domain.AttemptStatusConnecting}
		},
	)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return bus, ts
}

// TestStateReportsSnapshot checks the /state payload.
func TestStateReportsSnapshot(t *testing.T) {
	bus, ts := newTestServer(t)
	bus.Publish(jobs.Event{AttemptID: "attempt-1", Type: jobs.EventTypeStep})

	resp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer resp.Body.Close()

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Scanner != domain.ScannerStateCapturing || snap.Attempt.SSID != "HomeNet" || snap.LastSeq != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

// TestEventsSince checks incremental reads and bad input.
func TestEventsSince(t *testing.T) {
	bus, ts := newTestServer(t)
	bus.Publish(jobs.Event{Message: "one"})
	bus.Publish(jobs.Event{Message: "two"})

	resp, err := http.Get(ts.URL + "/events?since=1")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	var events []jobs.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].Message != "two" {
		t.Fatalf("events = %+v", events)
	}

	bad, err := http.Get(ts.URL + "/events?since=abc")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", bad.StatusCode, http.StatusBadRequest)
	}
}

// TestStreamSendsBacklogThenLive checks the WebSocket stream ordering.
func TestStreamSendsBacklogThenLive(t *testing.T) {
	bus, ts := newTestServer(t)
	bus.Publish(jobs.Event{Message: "backlog"})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?since=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}

	var first jobs.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read backlog: %v", err)
	}
	if first.Message != "backlog" || first.Seq != 1 {
		t.Fatalf("first = %+v", first)
	}

	bus.Publish(jobs.Event{Message: "live"})
	var second jobs.Event
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read live: %v", err)
	}
	if second.Message != "live" || second.Seq != 2 {
		t.Fatalf("second = %+v", second)
	}
}

// TestPendingFillsSequenceGap checks a live event after dropped ones replays
// the missing history first.
func TestPendingFillsSequenceGap(t *testing.T) {
	bus := jobs.NewEventBus(100)
	s := NewServer(bus, nil, nil)
	for _, msg := range []string{"one", "two", "three", "four"} {
		bus.Publish(jobs.Event{Message: msg})
	}
	events := bus.Since(0)

	got := s.pending(1, events[3])
	if len(got) != 3 || got[0].Seq != 2 || got[2].Seq != 4 {
		t.Fatalf("pending(1, seq 4) = %+v", got)
	}

	got = s.pending(1, events[2])
	if len(got) != 2 || got[0].Seq != 2 || got[1].Seq != 3 {
		t.Fatalf("pending(1, seq 3) = %+v", got)
	}

	if got := s.pending(2, events[2]); len(got) != 1 || got[0].Seq != 3 {
		t.Fatalf("pending(2, seq 3) = %+v", got)
	}
	if got := s.pending(4, events[1]); len(got) != 0 {
		t.Fatalf("pending(4, seq 2) = %+v, want none", got)
	}
}

// TestStreamDeliversEverySeqToSlowSubscriber checks a one-slot subscriber
// still sees a contiguous stream.
func TestStreamDeliversEverySeqToSlowSubscriber(t *testing.T) {
	bus := jobs.NewEventBus(100)
	s := NewServer(bus,
		func() domain.ScannerState { return domain.ScannerStateCapturing },
		func() domain.Attempt { return domain.Attempt{} },
	)
	s.liveBuffer = 1
	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?since=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	const total = 40
	for i := 0; i < total; i++ {
		bus.Publish(jobs.Event{Type: jobs.EventTypeProgress, Poll: i + 1})
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	for want := int64(1); want <= total; want++ {
		var event jobs.Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("read seq %d: %v", want, err)
		}
		if event.Seq != want {
			t.Fatalf("seq = %d, want %d", event.Seq, want)
		}
	}
}

// TestStreamOriginPolicy checks which browser origins may open the stream.
func TestStreamOriginPolicy(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{name: "no origin", origin: "", host: "10.0.0.5:8090", want: true},
		{name: "same host", origin: "http://10.0.0.5:8090", host: "10.0.0.5:8090", want: true},
		{name: "localhost page", origin: "http://localhost:3000", host: "127.0.0.1:8090", want: true},
		{name: "loopback ip", origin: "http://127.0.0.1:5173", host: "127.0.0.1:8090", want: true},
		{name: "ipv6 loopback", origin: "http://[::1]:5173", host: "127.0.0.1:8090", want: true},
		{name: "foreign site", origin: "https://evil.example", host: "127.0.0.1:8090", want: false},
		{name: "malformed", origin: "::not a url", host: "127.0.0.1:8090", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://"+tt.host+"/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := sameOrLoopbackOrigin(r); got != tt.want {
				t.Fatalf("sameOrLoopbackOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

// TestStreamRejectsForeignOrigin checks the handshake refuses other sites.
func TestStreamRejectsForeignOrigin(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %+v, want 403", resp)
	}
}
