// Package memory provides an in-memory implementation of the repository interface
package memory

import (
	"context"
	"sync"

	"github.com/navikt/roomboard/internal/models"
)

// ErrNotFound is returned when a requested entity is not found
var ErrNotFound = models.ErrNotFound

// Repository implements the repository interface with in-memory storage
type Repository struct {
	snapshot *models.Snapshot
	pending  map[string]models.PendingStatus
	mu       sync.RWMutex
}

// NewRepository creates a new in-memory repository
func NewRepository() *Repository {
	return &Repository{
		pending: make(map[string]models.PendingStatus),
	}
}

// SaveSnapshot replaces the stored snapshot with a copy of snapshot
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot = copySnapshot(snapshot)
	return nil
}

// GetSnapshot returns a copy of the stored snapshot
func (r *Repository) GetSnapshot(ctx context.Context) (*models.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.snapshot == nil {
		return nil, ErrNotFound
	}
	return copySnapshot(r.snapshot), nil
}

// SaveRoom replaces the room with the same ID
func (r *Repository) SaveRoom(ctx context.Context, room models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot == nil {
		return ErrNotFound
	}

	for i := range r.snapshot.Rooms {
		if r.snapshot.Rooms[i].ID == room.ID {
			r.snapshot.Rooms[i] = room
			return nil
		}
	}
	return ErrNotFound
}

// AddBooking appends a booking to the stored snapshot
func (r *Repository) AddBooking(ctx context.Context, booking models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot == nil {
		return ErrNotFound
	}

	r.snapshot.Bookings = append(r.snapshot.Bookings, booking)
	return nil
}

// RemoveBooking removes a booking by ID, keeping the order of the rest
func (r *Repository) RemoveBooking(ctx context.Context, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.snapshot == nil {
		return ErrNotFound
	}

	for i, b := range r.snapshot.Bookings {
		if b.ID == bookingID {
			r.snapshot.Bookings = append(r.snapshot.Bookings[:i], r.snapshot.Bookings[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// SetPendingStatus records a tentative status for a room, replacing any earlier one
func (r *Repository) SetPendingStatus(ctx context.Context, pending models.PendingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[pending.RoomID] = pending
	return nil
}

// ListPendingStatuses returns all tentative statuses keyed by room ID
func (r *Repository) ListPendingStatuses(ctx context.Context) (map[string]models.PendingStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]models.PendingStatus, len(r.pending))
	for id, p := range r.pending {
		result[id] = p
	}
	return result, nil
}

// ClearPendingStatus removes the tentative status of a room if token matches
func (r *Repository) ClearPendingStatus(ctx context.Context, roomID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.pending[roomID]; ok && p.Token == token {
		delete(r.pending, roomID)
	}
	return nil
}

func copySnapshot(s *models.Snapshot) *models.Snapshot {
	return &models.Snapshot{
		Rooms:     append([]models.Room{}, s.Rooms...),
		Bookings:  append([]models.Booking{}, s.Bookings...),
		FetchedAt: s.FetchedAt,
	}
}
