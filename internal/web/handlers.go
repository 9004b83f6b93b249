package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/navikt/roomboard/internal/logger"
	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/service"
	"github.com/navikt/roomboard/internal/session"
	"github.com/sirupsen/logrus"
)

//go:embed templates
var templateFS embed.FS

// formTimeLayout is the value format of <input type="datetime-local">
const formTimeLayout = "2006-01-02T15:04"

// Handler manages web UI requests
type Handler struct {
	board      BoardServicer
	templates  *template.Template
	sseManager *SSEManager
	loc        *time.Location
	log        logrus.FieldLogger
}

// NewHandler creates a new web UI handler. Times are shown in loc and room
// images are loaded from imageBaseURL.
func NewHandler(board BoardServicer, sseManager *SSEManager, loc *time.Location, imageBaseURL string, log logrus.FieldLogger) (*Handler, error) {
	if loc == nil {
		loc = time.UTC
	}

	tmpl, err := template.New("").Funcs(templateFuncs(loc, imageBaseURL)).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Handler{
		board:      board,
		templates:  tmpl,
		sseManager: sseManager,
		loc:        loc,
		log:        log,
	}, nil
}

// SetupRoutes registers web UI routes on the given mux
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.Handle("/events", h.sseManager)

	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /partial/rooms", h.HandlePartialRoomList)

	mux.HandleFunc("POST /rooms/{id}/status", h.handleChangeStatus)
	mux.HandleFunc("POST /bookings", h.handleCreateBooking)
	mux.HandleFunc("POST /bookings/{id}/cancel", h.handleCancelBooking)
}

type boardView struct {
	Actor       models.Actor
	Rooms       []models.RoomView
	Error       string
	LastUpdated string
	CurrentYear int
}

func (h *Handler) boardView(r *http.Request) (boardView, error) {
	s := session.FromContext(r.Context())
	now := time.Now().In(h.loc)

	rooms, err := h.board.Board(r.Context(), s.Actor)
	return boardView{
		Actor:       s.Actor,
		Rooms:       rooms,
		LastUpdated: now.Format("2006-01-02 15:04:05"),
		CurrentYear: now.Year(),
	}, err
}

// handleIndex renders the main page with the board
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	view, err := h.boardView(r)
	if err != nil {
		h.log.WithError(err).Error("Error getting board")
		http.Error(w, "Failed to get rooms", service.HTTPStatus(err))
		return
	}

	if err := h.templates.ExecuteTemplate(w, "layout.html", view); err != nil {
		h.log.WithError(err).Error("Error rendering template")
	}
}

// HandlePartialRoomList renders just the room list for HTMX updates
func (h *Handler) HandlePartialRoomList(w http.ResponseWriter, r *http.Request) {
	h.renderRoomList(w, r, "")
}

func (h *Handler) renderRoomList(w http.ResponseWriter, r *http.Request, message string) {
	view, err := h.boardView(r)
	if err != nil {
		h.log.WithError(err).Error("Error getting board")
		http.Error(w, "Failed to get rooms", service.HTTPStatus(err))
		return
	}
	view.Error = message

	if err := h.templates.ExecuteTemplate(w, "room_list", view); err != nil {
		h.log.WithError(err).Error("Error rendering template")
	}
}

// respond finishes a form post. HTMX requests get the refreshed room list,
// plain form posts are redirected back to the board.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if r.Header.Get("HX-Request") == "true" {
		message := ""
		if err != nil {
			message = service.PublicMessage(err)
		}
		h.renderRoomList(w, r, message)
		return
	}

	if err != nil {
		http.Error(w, service.PublicMessage(err), service.HTTPStatus(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	roomID := r.PathValue("id")
	status := models.AdminStatus(r.FormValue("status"))

	_, err := h.board.ChangeRoomStatus(r.Context(), s.Actor, s.Credential, roomID, status)
	if err != nil {
		h.log.WithError(err).WithField("room_id", logger.Sanitize(roomID)).Warn("Room status change failed")
	}
	h.respond(w, r, err)
}

func (h *Handler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	req := models.BookingRequest{
		Room:      strings.TrimSpace(r.FormValue("room")),
		StartTime: h.parseFormTime(r.FormValue("start")),
		EndTime:   h.parseFormTime(r.FormValue("end")),
	}

	_, err := h.board.CreateBooking(r.Context(), s.Actor, s.Credential, req)
	if err != nil {
		h.log.WithError(err).WithField("room", logger.Sanitize(req.Room)).Warn("Booking failed")
	}
	h.respond(w, r, err)
}

func (h *Handler) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	bookingID := r.PathValue("id")

	err := h.board.CancelBooking(r.Context(), s.Actor, s.Credential, bookingID)
	if err != nil {
		h.log.WithError(err).WithField("booking_id", logger.Sanitize(bookingID)).Warn("Cancelling booking failed")
	}
	h.respond(w, r, err)
}

// parseFormTime reads a datetime-local value in the display timezone.
// Full timestamps are accepted too.
func (h *Handler) parseFormTime(value string) models.Timestamp {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(formTimeLayout, value, h.loc); err == nil {
		return models.NewTimestamp(t)
	}
	return models.ParseTimestamp(value)
}

// NotifyUpdate sends an update notification to all SSE clients.
// This should be called whenever the board changes.
func (h *Handler) NotifyUpdate(update models.BoardUpdate) {
	h.sseManager.NotifyUpdate(update)
}

// Shutdown gracefully shuts down the web handler and its SSE manager
func (h *Handler) Shutdown() {
	h.sseManager.Shutdown()
}

func templateFuncs(loc *time.Location, imageBaseURL string) template.FuncMap {
	return template.FuncMap{
		"formatTime": func(ts models.Timestamp) string {
			if !ts.Valid {
				return "-"
			}
			return ts.Time.In(loc).Format("15:04")
		},
		"formatDateTime": func(ts models.Timestamp) string {
			if !ts.Valid {
				return "-"
			}
			return ts.Time.In(loc).Format("2006-01-02 15:04")
		},
		"imageURL": func(image string) string {
			return strings.TrimSuffix(imageBaseURL, "/") + "/" + image
		},
		"stateText":  stateText,
		"actionText": actionText,
		"toggle":     func(s models.AdminStatus) models.AdminStatus { return s.Toggle() },
		"limit":      limit,
	}
}

// stateText returns human-readable room state
func stateText(state models.RoomState) string {
	switch state {
	case models.RoomStateFree:
		return "Free"
	case models.RoomStateOccupied:
		return "Occupied"
	default:
		return "Closed"
	}
}

func actionText(action models.BookingAction) string {
	switch action {
	case models.BookingActionCreated:
		return "Booked"
	case models.BookingActionCancelled:
		return "Cancelled"
	default:
		return string(action)
	}
}

// limit returns at most n log entries
func limit(logs []models.BookingLog, n int) []models.BookingLog {
	if n < 0 {
		n = 0
	}
	if len(logs) > n {
		return logs[:n]
	}
	return logs
}
