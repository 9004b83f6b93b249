package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/navikt/roomboard/internal/availability"
	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/logger"
	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/repository"
	"github.com/sirupsen/logrus"
)

// Service errors. Errors from the booking API are wrapped alongside them, so
// bookingapi sentinels such as bookingapi.ErrRateLimited still match.
var (
	ErrForbidden       = errors.New("forbidden")
	ErrRoomNotFound    = errors.New("room not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrRoomUnavailable = errors.New("room is not available for booking")
	ErrInvalidBooking  = errors.New("invalid booking")
	ErrInvalidStatus   = errors.New("invalid room status")
)

// BookingAPI is the part of the booking API client the board depends on
type BookingAPI interface {
	ListRooms(ctx context.Context, cred bookingapi.Credential) ([]models.Room, error)
	ListBookings(ctx context.Context, cred bookingapi.Credential) ([]models.Booking, error)
	SetRoomStatus(ctx context.Context, cred bookingapi.Credential, roomID string, status models.AdminStatus) (models.Room, error)
	CreateBooking(ctx context.Context, cred bookingapi.Credential, req models.BookingRequest) (models.Booking, error)
	CancelBooking(ctx context.Context, cred bookingapi.Credential, bookingID string) error
	BookingLogs(ctx context.Context, cred bookingapi.Credential) ([]models.BookingLog, error)
	AdminStats(ctx context.Context, cred bookingapi.Credential) (models.AdminStats, error)
}

// UpdateCallback is a function type for board update callbacks
type UpdateCallback func(models.BoardUpdate)

// Option configures a BoardService
type Option func(*BoardService)

// WithServiceCredential sets the credential used for background refreshes
func WithServiceCredential(cred bookingapi.Credential) Option {
	return func(s *BoardService) { s.serviceCred = cred }
}

// WithClock replaces the clock used to decide which bookings are active
func WithClock(now func() time.Time) Option {
	return func(s *BoardService) { s.now = now }
}

// WithMaxAge makes reads refresh a stored snapshot older than maxAge.
// Zero keeps a stored snapshot until something else refreshes it.
func WithMaxAge(maxAge time.Duration) Option {
	return func(s *BoardService) { s.maxAge = maxAge }
}

// BoardService provides business logic for the room board
type BoardService struct {
	repo            repository.Repository
	api             BookingAPI
	serviceCred     bookingapi.Credential
	log             logrus.FieldLogger
	validate        *validator.Validate
	now             func() time.Time
	maxAge          time.Duration
	updateCallbacks []UpdateCallback
}

// NewBoardService creates a new BoardService
func NewBoardService(repo repository.Repository, api BookingAPI, log logrus.FieldLogger, opts ...Option) *BoardService {
	s := &BoardService{
		repo:            repo,
		api:             api,
		log:             log,
		validate:        newValidator(),
		now:             time.Now,
		updateCallbacks: make([]UpdateCallback, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUpdateCallback registers a callback function to be called when board data changes.
// Callbacks must be registered before the service is used concurrently.
func (s *BoardService) RegisterUpdateCallback(callback UpdateCallback) {
	s.updateCallbacks = append(s.updateCallbacks, callback)
}

func (s *BoardService) notifyUpdate(update models.BoardUpdate) {
	for _, callback := range s.updateCallbacks {
		callback(update)
	}
}

// Refresh fetches rooms and bookings and replaces the stored snapshot wholesale.
// Listeners are only notified when something changed.
func (s *BoardService) Refresh(ctx context.Context) error {
	rooms, err := s.api.ListRooms(ctx, s.serviceCred)
	if err != nil {
		return fmt.Errorf("failed to refresh rooms: %w", err)
	}
	bookings, err := s.api.ListBookings(ctx, s.serviceCred)
	if err != nil {
		return fmt.Errorf("failed to refresh bookings: %w", err)
	}

	previous, err := s.repo.GetSnapshot(ctx)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.log.WithError(err).Warn("Could not read previous snapshot")
	}

	snapshot := &models.Snapshot{Rooms: rooms, Bookings: bookings, FetchedAt: s.now()}
	if err := s.repo.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	if previous != nil && sameContent(previous.Rooms, rooms) && sameContent(previous.Bookings, bookings) {
		return nil
	}

	s.log.WithFields(logrus.Fields{
		"rooms":    len(rooms),
		"bookings": len(bookings),
	}).Debug("Board refreshed")
	s.notifyUpdate(models.BoardUpdate{Kind: models.UpdateRefreshed})
	return nil
}

// snapshot returns the stored snapshot with pending statuses applied to rooms.
// It refreshes from the booking API when nothing is stored yet, and when the
// stored snapshot is older than maxAge. A stale snapshot is still served if
// that refresh fails.
func (s *BoardService) snapshot(ctx context.Context) (*models.Snapshot, map[string]models.PendingStatus, error) {
	snap, err := s.repo.GetSnapshot(ctx)
	switch {
	case errors.Is(err, models.ErrNotFound):
		if err := s.Refresh(ctx); err != nil {
			return nil, nil, err
		}
		snap, err = s.repo.GetSnapshot(ctx)
	case err == nil && s.stale(snap):
		if refreshErr := s.Refresh(ctx); refreshErr != nil {
			s.log.WithError(refreshErr).WithField("fetched_at", snap.FetchedAt).Warn("Serving stale snapshot")
		} else if fresh, freshErr := s.repo.GetSnapshot(ctx); freshErr == nil {
			snap = fresh
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	pending, err := s.repo.ListPendingStatuses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load pending statuses: %w", err)
	}

	for i, room := range snap.Rooms {
		if p, ok := pending[room.ID]; ok {
			snap.Rooms[i].Status = p.Status
		}
	}
	return snap, pending, nil
}

func (s *BoardService) stale(snap *models.Snapshot) bool {
	return s.maxAge > 0 && s.now().Sub(snap.FetchedAt) > s.maxAge
}

func (s *BoardService) view(room models.Room, snap *models.Snapshot, pending map[string]models.PendingStatus, actor models.Actor, now time.Time) models.RoomView {
	v := availability.View(room, snap.Bookings, actor, now)
	_, v.Pending = pending[room.ID]
	return v
}

// Board returns the view of every room for actor, in upstream order
func (s *BoardService) Board(ctx context.Context, actor models.Actor) ([]models.RoomView, error) {
	snap, pending, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]models.RoomView, 0, len(snap.Rooms))
	for _, room := range snap.Rooms {
		views = append(views, s.view(room, snap, pending, actor, now))
	}
	return views, nil
}

// Room returns the view of a single room for actor
func (s *BoardService) Room(ctx context.Context, actor models.Actor, roomID string) (models.RoomView, error) {
	snap, pending, err := s.snapshot(ctx)
	if err != nil {
		return models.RoomView{}, err
	}

	room, ok := snap.FindRoom(roomID)
	if !ok {
		return models.RoomView{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	return s.view(room, snap, pending, actor, s.now()), nil
}

// Stats returns board counters at the current time
func (s *BoardService) Stats(ctx context.Context) (models.BoardStats, error) {
	snap, _, err := s.snapshot(ctx)
	if err != nil {
		return models.BoardStats{}, err
	}
	return availability.Stats(snap.Rooms, snap.Bookings, s.now()), nil
}

// ChangeRoomStatus sets a room's administrative status in two phases. The
// requested status is shown as pending right away; once the booking API
// answers, the room is replaced with the server's value. On failure the
// pending status is dropped and the stored room is left untouched.
func (s *BoardService) ChangeRoomStatus(ctx context.Context, actor models.Actor, cred bookingapi.Credential, roomID string, status models.AdminStatus) (models.Room, error) {
	if !actor.IsAdmin() {
		return models.Room{}, fmt.Errorf("%w: only admins can change room status", ErrForbidden)
	}
	if !status.Valid() {
		return models.Room{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	snap, _, err := s.snapshot(ctx)
	if err != nil {
		return models.Room{}, err
	}
	if _, ok := snap.FindRoom(roomID); !ok {
		return models.Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	token := uuid.NewString()
	pending := models.PendingStatus{
		RoomID:      roomID,
		Status:      status,
		Token:       token,
		RequestedBy: actor.ID,
		RequestedAt: s.now(),
	}
	if err := s.repo.SetPendingStatus(ctx, pending); err != nil {
		return models.Room{}, fmt.Errorf("failed to store pending status: %w", err)
	}
	s.notifyUpdate(models.BoardUpdate{Kind: models.UpdateRoomStatus, RoomID: roomID})

	log := s.log.WithFields(logrus.Fields{
		"room_id": logger.Sanitize(roomID),
		"status":  status,
		"actor":   logger.Sanitize(actor.ID),
	})

	room, apiErr := s.api.SetRoomStatus(ctx, cred, roomID, status)

	// The request context may already be cancelled; settle the pending entry regardless
	settleCtx := context.WithoutCancel(ctx)
	if apiErr == nil {
		if err := s.repo.SaveRoom(settleCtx, room); err != nil {
			log.WithError(err).Warn("Could not store confirmed room status")
		}
	}
	if err := s.repo.ClearPendingStatus(settleCtx, roomID, token); err != nil {
		log.WithError(err).Warn("Could not clear pending room status")
	}
	s.notifyUpdate(models.BoardUpdate{Kind: models.UpdateRoomStatus, RoomID: roomID})

	if apiErr != nil {
		log.WithError(apiErr).Warn("Room status change rejected, pending status discarded")
		return models.Room{}, mapAPIError(apiErr, ErrRoomNotFound)
	}

	log.WithField("confirmed_status", room.Status).Info("Room status changed")
	return room, nil
}

// CreateBooking books a room for actor. The room must be bookable right now
// for every role, admins included.
func (s *BoardService) CreateBooking(ctx context.Context, actor models.Actor, cred bookingapi.Credential, req models.BookingRequest) (models.Booking, error) {
	if actor.IsGuest() {
		return models.Booking{}, fmt.Errorf("%w: sign in to book a room", ErrForbidden)
	}
	if err := s.validate.Struct(req); err != nil {
		return models.Booking{}, fmt.Errorf("%w: %w", ErrInvalidBooking, translateValidationErrors(err))
	}
	if !req.EndTime.Time.After(req.StartTime.Time) {
		return models.Booking{}, fmt.Errorf("%w: end time must be after start time", ErrInvalidBooking)
	}

	snap, _, err := s.snapshot(ctx)
	if err != nil {
		return models.Booking{}, err
	}

	room, ok := findRoomByName(snap.Rooms, req.Room)
	if !ok {
		return models.Booking{}, fmt.Errorf("%w: %s", ErrRoomNotFound, req.Room)
	}

	occupying := availability.FindOccupyingBooking(room, snap.Bookings, s.now())
	if !availability.IsAvailableForBooking(room, occupying, actor) {
		return models.Booking{}, fmt.Errorf("%w: %s", ErrRoomUnavailable, room.Name)
	}

	booking, err := s.api.CreateBooking(ctx, cred, req)
	if err != nil {
		if errors.Is(err, bookingapi.ErrConflict) {
			return models.Booking{}, fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
		}
		return models.Booking{}, mapAPIError(err, ErrRoomNotFound)
	}

	if booking.Room == "" {
		booking.Room = req.Room
	}
	if booking.User.ID == "" {
		booking.User = models.BookingUser{ID: actor.ID, FullName: actor.Name}
	}
	if !booking.StartTime.Valid {
		booking.StartTime = req.StartTime
	}
	if !booking.EndTime.Valid {
		booking.EndTime = req.EndTime
	}

	if err := s.repo.AddBooking(context.WithoutCancel(ctx), booking); err != nil {
		s.log.WithError(err).Warn("Could not store new booking, it will appear after the next refresh")
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": logger.Sanitize(booking.ID),
		"room":       logger.Sanitize(room.Name),
		"actor":      logger.Sanitize(actor.ID),
	}).Info("Booking created")
	s.notifyUpdate(models.BoardUpdate{Kind: models.UpdateBookingCreated, RoomID: room.ID})
	return booking, nil
}

// CancelBooking cancels a booking on behalf of actor
func (s *BoardService) CancelBooking(ctx context.Context, actor models.Actor, cred bookingapi.Credential, bookingID string) error {
	snap, _, err := s.snapshot(ctx)
	if err != nil {
		return err
	}

	booking, ok := snap.FindBooking(bookingID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	if !availability.CanCancel(booking, actor) {
		return fmt.Errorf("%w: cannot cancel another user's booking", ErrForbidden)
	}

	if err := s.api.CancelBooking(ctx, cred, bookingID); err != nil {
		return mapAPIError(err, ErrBookingNotFound)
	}

	if err := s.repo.RemoveBooking(context.WithoutCancel(ctx), bookingID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.log.WithError(err).Warn("Could not remove cancelled booking, it will disappear after the next refresh")
	}

	update := models.BoardUpdate{Kind: models.UpdateBookingCanceled}
	if room, ok := findRoomByName(snap.Rooms, booking.Room); ok {
		update.RoomID = room.ID
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": logger.Sanitize(bookingID),
		"actor":      logger.Sanitize(actor.ID),
	}).Info("Booking cancelled")
	s.notifyUpdate(update)
	return nil
}

// Dashboard is the admin overview of the board
type Dashboard struct {
	Board       models.BoardStats   `json:"board"`
	Users       models.AdminStats   `json:"users"`
	Logs        []models.BookingLog `json:"logs"`
	Rooms       []models.RoomView   `json:"rooms"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Dashboard returns board counters computed locally together with the
// booking API's user statistics and booking log, newest entries first
func (s *BoardService) Dashboard(ctx context.Context, actor models.Actor, cred bookingapi.Credential) (*Dashboard, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin dashboard requires admin role", ErrForbidden)
	}

	snap, pending, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.api.AdminStats(ctx, cred)
	if err != nil {
		return nil, mapAPIError(err, nil)
	}
	logs, err := s.api.BookingLogs(ctx, cred)
	if err != nil {
		return nil, mapAPIError(err, nil)
	}
	models.SortLogsNewestFirst(logs)

	now := s.now()
	rooms := make([]models.RoomView, 0, len(snap.Rooms))
	for _, room := range snap.Rooms {
		rooms = append(rooms, s.view(room, snap, pending, actor, now))
	}

	return &Dashboard{
		Board:       availability.Stats(snap.Rooms, snap.Bookings, now),
		Users:       users,
		Logs:        logs,
		Rooms:       rooms,
		GeneratedAt: now,
	}, nil
}

// mapAPIError attaches the matching service error to an error from the booking API.
// notFound is used for 404 responses when non-nil.
func mapAPIError(err error, notFound error) error {
	switch {
	case errors.Is(err, bookingapi.ErrUnauthorized), errors.Is(err, bookingapi.ErrForbidden):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	case notFound != nil && errors.Is(err, bookingapi.ErrNotFound):
		return fmt.Errorf("%w: %w", notFound, err)
	default:
		return err
	}
}

func findRoomByName(rooms []models.Room, name string) (models.Room, bool) {
	for _, r := range rooms {
		if r.Name == name {
			return r, true
		}
	}
	return models.Room{}, false
}

// sameContent compares two values by their JSON encoding, which is how they are stored
func sameContent(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}
