package api

import (
	"encoding/json"
	"net/http"

	"github.com/navikt/roomboard/internal/logger"
	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/service"
	"github.com/navikt/roomboard/internal/session"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes bounds request bodies; the largest payload is a booking request
const maxBodyBytes = 16 << 10

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusRequest is the body of PATCH /api/rooms/{id}
type StatusRequest struct {
	Status models.AdminStatus `json:"status"`
}

// BoardHandler serves the board as JSON for non-browser clients
type BoardHandler struct {
	board BoardServicer
	log   logrus.FieldLogger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(board BoardServicer, log logrus.FieldLogger) *BoardHandler {
	return &BoardHandler{
		board: board,
		log:   log,
	}
}

// Register adds the board endpoints to mux, each wrapped in wrap
func (h *BoardHandler) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"GET /api/rooms":            h.listRooms,
		"GET /api/rooms/{id}":       h.getRoom,
		"PATCH /api/rooms/{id}":     h.changeStatus,
		"POST /api/bookings":        h.createBooking,
		"DELETE /api/bookings/{id}": h.cancelBooking,
		"GET /api/admin/dashboard":  h.dashboard,
	}
	for pattern, handler := range routes {
		mux.Handle(pattern, wrap(handler))
	}
}

// listRooms handles GET /api/rooms
func (h *BoardHandler) listRooms(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	rooms, err := h.board.Board(r.Context(), s.Actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

// getRoom handles GET /api/rooms/{id}
func (h *BoardHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	room, err := h.board.Room(r.Context(), s.Actor, r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// changeStatus handles PATCH /api/rooms/{id}
func (h *BoardHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	s := session.FromContext(r.Context())
	room, err := h.board.ChangeRoomStatus(r.Context(), s.Actor, s.Credential, r.PathValue("id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// createBooking handles POST /api/bookings
func (h *BoardHandler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if !h.decode(w, r, &req) {
		return
	}

	s := session.FromContext(r.Context())
	booking, err := h.board.CreateBooking(r.Context(), s.Actor, s.Credential, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// cancelBooking handles DELETE /api/bookings/{id}
func (h *BoardHandler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	if err := h.board.CancelBooking(r.Context(), s.Actor, s.Credential, r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dashboard handles GET /api/admin/dashboard
func (h *BoardHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	dashboard, err := h.board.Dashboard(r.Context(), s.Actor, s.Credential)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *BoardHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.log.WithError(err).Debug("Error decoding request body")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func (h *BoardHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := service.HTTPStatus(err)
	entry := h.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   logger.Sanitize(r.URL.Path),
		"status": status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Board request failed")
	} else {
		entry.Debug("Board request rejected")
	}
	writeJSON(w, status, ErrorResponse{Error: service.PublicMessage(err)})
}
