package web

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/navikt/roomboard/internal/models"
	"github.com/r3labs/sse/v2"
	"github.com/sirupsen/logrus"
)

// boardStream is the single SSE stream every board page subscribes to
const boardStream = "board"

// SSEManager handles server-sent events to clients
type SSEManager struct {
	server  *sse.Server
	viewers Viewers
	log     logrus.FieldLogger
	clients atomic.Int64
}

// NewSSEManager creates a new server-sent events manager. viewers may be nil
// when polling does not depend on open pages.
func NewSSEManager(viewers Viewers, log logrus.FieldLogger) *SSEManager {
	server := sse.New()
	server.AutoStream = false
	server.AutoReplay = false
	server.Headers = map[string]string{
		"Cache-Control":          "no-cache, no-transform",
		"X-Accel-Buffering":      "no",
		"X-Content-Type-Options": "nosniff",
	}
	server.CreateStream(boardStream)

	return &SSEManager{
		server:  server,
		viewers: viewers,
		log:     log,
	}
}

// ServeHTTP implements the http.Handler interface for SSE connections.
// Each open connection counts as a viewer of the board for as long as it stays open.
func (sm *SSEManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if sm.viewers != nil {
		sm.viewers.Acquire()
		defer sm.viewers.Release()
	}

	count := sm.clients.Add(1)
	defer sm.clients.Add(-1)
	sm.log.WithFields(logrus.Fields{
		"remote_addr": r.RemoteAddr,
		"proto":       r.Proto,
		"clients":     count,
	}).Debug("SSE client connected")

	// The sse server selects the stream from the query string
	query := r.URL.Query()
	query.Set("stream", boardStream)
	req := r.Clone(r.Context())
	req.URL.RawQuery = query.Encode()

	sm.server.ServeHTTP(w, req)
	sm.log.WithField("remote_addr", r.RemoteAddr).Debug("SSE client disconnected")
}

// NotifyUpdate publishes a board update to all connected clients.
// Pages react to the "update" event by reloading the room list.
func (sm *SSEManager) NotifyUpdate(update models.BoardUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		sm.log.WithError(err).Error("Failed to encode board update")
		return
	}

	sm.server.Publish(boardStream, &sse.Event{
		ID:    []byte(uuid.NewString()),
		Event: []byte("update"),
		Data:  data,
	})
	sm.log.WithFields(logrus.Fields{
		"kind":    update.Kind,
		"room_id": update.RoomID,
		"clients": sm.Clients(),
	}).Debug("Published board update")
}

// Clients returns the number of open SSE connections
func (sm *SSEManager) Clients() int {
	return int(sm.clients.Load())
}

// Shutdown closes all streams, ending open connections
func (sm *SSEManager) Shutdown() {
	sm.server.Close()
}
