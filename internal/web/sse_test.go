package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/navikt/roomboard/internal/logger"
	"github.com/navikt/roomboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingViewers struct {
	acquired atomic.Int32
	released atomic.Int32
}

func (v *countingViewers) Acquire() { v.acquired.Add(1) }
func (v *countingViewers) Release() { v.released.Add(1) }

func TestNewSSEManager(t *testing.T) {
	sseManager := NewSSEManager(nil, logger.Discard())
	defer sseManager.Shutdown()

	assert.NotNil(t, sseManager.server)
	assert.True(t, sseManager.server.StreamExists(boardStream))
	assert.Equal(t, 0, sseManager.Clients())
}

func TestSSEServeHTTP_CORSPreflight(t *testing.T) {
	viewers := &countingViewers{}
	sseManager := NewSSEManager(viewers, logger.Discard())
	defer sseManager.Shutdown()

	recorder := httptest.NewRecorder()
	sseManager.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, "/events", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", recorder.Header().Get("Access-Control-Allow-Methods"))
	assert.Zero(t, viewers.acquired.Load(), "preflight is not a viewer")
}

func TestSSEServeHTTP_RejectsPost(t *testing.T) {
	sseManager := NewSSEManager(nil, logger.Discard())
	defer sseManager.Shutdown()

	recorder := httptest.NewRecorder()
	sseManager.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/events", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}

func TestSSEStreamDeliversUpdatesAndTracksViewers(t *testing.T) {
	viewers := &countingViewers{}
	sseManager := NewSSEManager(viewers, logger.Discard())
	server := httptest.NewServer(sseManager)
	defer server.Close()
	defer sseManager.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))
	assert.Equal(t, int32(1), viewers.acquired.Load())
	assert.Equal(t, 1, sseManager.Clients())

	sseManager.NotifyUpdate(models.BoardUpdate{Kind: models.UpdateRoomStatus, RoomID: "r1"})

	var event, data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		// A blank line ends an event
		if line == "" && data != "" {
			break
		}
	}
	assert.Equal(t, "update", event)
	assert.JSONEq(t, `{"kind":"room_status","room_id":"r1"}`, data)

	cancel()
	assert.Eventually(t, func() bool { return viewers.released.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return sseManager.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
