// Package repository defines interfaces for data storage
package repository

import (
	"context"

	"github.com/navikt/roomboard/internal/models"
)

// Repository stores the last authoritative snapshot of the booking API and
// the tentative status changes waiting for the server to confirm them.
type Repository interface {
	// Snapshot operations. SaveSnapshot replaces everything stored before.
	SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	GetSnapshot(ctx context.Context) (*models.Snapshot, error)

	// SaveRoom replaces one room with the value returned by the server
	SaveRoom(ctx context.Context, room models.Room) error

	// Booking operations keep input order
	AddBooking(ctx context.Context, booking models.Booking) error
	RemoveBooking(ctx context.Context, bookingID string) error

	// Pending status operations. ClearPendingStatus only removes the entry if
	// its token still matches, so a newer change is not discarded.
	SetPendingStatus(ctx context.Context, pending models.PendingStatus) error
	ListPendingStatuses(ctx context.Context) (map[string]models.PendingStatus, error)
	ClearPendingStatus(ctx context.Context, roomID, token string) error
}
