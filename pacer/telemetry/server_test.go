package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-pacer/pacer/backend"
	"github.com/valerio/go-pacer/pacer/loop"
	"github.com/valerio/go-pacer/pacer/sampler"
)

func testFrame(number uint64) *backend.Frame {
	return &backend.Frame{
		Number: number,
		Scheduler: loop.Stats{
			TargetStep:      20 * time.Millisecond,
			MaxElapsed:      500 * time.Millisecond,
			IsFixedTimeStep: true,
			Accumulated:     4 * time.Millisecond,
			TotalSimulated:  time.Second,
			FrameLag:        2,
			Ticks:           50,
			Simulations:     50,
			Renders:         49,
			SuppressedDraws: 1,
		},
		Frames: sampler.Snapshot{
			Depth:        60,
			Window:       50,
			TotalSamples: 50,
			Duration:     sampler.DurationRange{Current: 20 * time.Millisecond, Average: 25 * time.Millisecond},
			Frequency:    sampler.FrequencyRange{Current: 50, Average: 40},
		},
		SimulateCost: 2500 * time.Microsecond,
	}
}

func TestNewReport(t *testing.T) {
	r := NewReport(testFrame(7))

	assert.Equal(t, uint64(7), r.Frame)
	assert.Equal(t, "fixed", r.Mode)
	assert.InDelta(t, 20.0, r.TargetStepMs, 1e-9)
	assert.InDelta(t, 50.0, r.TargetRateHz, 1e-9)
	assert.InDelta(t, 4.0, r.PendingMs, 1e-9)
	assert.InDelta(t, 1000.0, r.SimulatedMs, 1e-9)
	assert.InDelta(t, 2.5, r.SimulateCostMs, 1e-9)
	assert.Equal(t, 50, r.Frames.Window)
	assert.InDelta(t, 25.0, r.Frames.AvgMs, 1e-9)
	assert.InDelta(t, 40.0, r.Frames.AvgHz, 1e-9)
	assert.Equal(t, uint64(1), r.SuppressedDraws)

	variable := testFrame(1)
	variable.Scheduler.IsFixedTimeStep = false
	assert.Equal(t, "variable", NewReport(variable).Mode)
}

func TestServer_Stats(t *testing.T) {
	s := New("127.0.0.1:0")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "nothing published yet")

	s.Publish(testFrame(3))

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, NewReport(testFrame(3)), got)
}

func TestServer_Routes(t *testing.T) {
	s := New("127.0.0.1:0")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	resp, err = http.Post(srv.URL+"/stats", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil {
		t.Cleanup(func() { resp.Body.Close() })
	}
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	return conn
}

func TestServer_WebsocketStream(t *testing.T) {
	s := New("127.0.0.1:0")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	s.Publish(testFrame(1))
	conn := dialWS(t, srv)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var got Report
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, uint64(1), got.Frame, "latest report is sent on connect")

	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	s.Publish(testFrame(2))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, uint64(2), got.Frame)

	conn.Close()
	require.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 5*time.Millisecond,
		"closed clients are unsubscribed")
}

func TestServer_ShutdownClosesStreams(t *testing.T) {
	s := New("127.0.0.1:0")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv)
	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.Shutdown(ctx)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestSubscriber_KeepsNewest(t *testing.T) {
	sub := &subscriber{updates: make(chan Report, 1)}

	sub.offer(Report{Frame: 1})
	sub.offer(Report{Frame: 2})
	sub.offer(Report{Frame: 3})

	require.Len(t, sub.updates, 1)
	assert.Equal(t, uint64(3), (<-sub.updates).Frame)
}
