package transport_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/shard-coordinator/internal/adapter/memory"
	"github.com/alanyang/shard-coordinator/internal/domain/event"
	"github.com/alanyang/shard-coordinator/internal/metrics"
	"github.com/alanyang/shard-coordinator/internal/mocks"
	"github.com/alanyang/shard-coordinator/internal/service/coordination"
	"github.com/alanyang/shard-coordinator/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDeps(bus *memory.EventBus) transport.RouterDeps {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Reaped(2)
	return transport.RouterDeps{
		Inspector: coordination.NewInspector(memory.NewAgentStore(), nil),
		EventBus:  bus,
		Gatherer:  reg,
		Logger:    discardLogger(),
	}
}

func TestRouter_Routes(t *testing.T) {
	r := transport.NewRouter(context.Background(), newDeps(memory.NewEventBus()))

	tests := []struct {
		method   string
		path     string
		status   int
		contains string
	}{
		{http.MethodGet, "/api/agents", http.StatusOK, "[]"},
		{http.MethodGet, "/api/cluster/dump", http.StatusOK, "agents: 0"},
		{http.MethodGet, "/api/cluster/self", http.StatusOK, "[]"},
		{http.MethodGet, "/metrics", http.StatusOK, "shard_coord_reaped_total 2"},
		{http.MethodOptions, "/api/agents", http.StatusNoContent, ""},
		{http.MethodGet, "/api/nope", http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequestWithContext(context.Background(), tc.method, tc.path, nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.contains)
		})
	}
}

func TestRouter_CORSHeaders(t *testing.T) {
	r := transport.NewRouter(context.Background(), newDeps(memory.NewEventBus()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/api/agents", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_ForwardsAgentEventsToWebSocket(t *testing.T) {
	bus := memory.NewEventBus()
	srv := httptest.NewServer(transport.NewRouter(context.Background(), newDeps(bus)))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	id := uuid.New()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// The upgrade may still be in flight; publish until the client sees it.
	received := make(chan string, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
	}()
	require.Eventually(t, func() bool {
		_ = bus.Publish(context.Background(), event.New(event.TypeAgentRegistered, id, id))
		select {
		case msg := <-received:
			assert.Contains(t, msg, id.String())
			assert.Contains(t, msg, string(event.TypeAgentRegistered))
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRouter_SurvivesSubscribeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockEventBus(ctrl)
	bus.EXPECT().Subscribe(gomock.Any(), event.ChannelAgent, gomock.Any()).Return(nil, errors.New("no listen"))

	r := transport.NewRouter(context.Background(), transport.RouterDeps{
		Inspector: coordination.NewInspector(memory.NewAgentStore(), nil),
		EventBus:  bus,
		Logger:    discardLogger(),
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "no gatherer, no metrics route")
}
