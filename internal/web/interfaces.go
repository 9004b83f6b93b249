package web

import (
	"context"

	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/service"
)

// BoardServicer defines the contract for the board service used by web handlers
type BoardServicer interface {
	Board(ctx context.Context, actor models.Actor) ([]models.RoomView, error)
	ChangeRoomStatus(ctx context.Context, actor models.Actor, cred bookingapi.Credential, roomID string, status models.AdminStatus) (models.Room, error)
	CreateBooking(ctx context.Context, actor models.Actor, cred bookingapi.Credential, req models.BookingRequest) (models.Booking, error)
	CancelBooking(ctx context.Context, actor models.Actor, cred bookingapi.Credential, bookingID string) error
	Dashboard(ctx context.Context, actor models.Actor, cred bookingapi.Credential) (*service.Dashboard, error)
}

// Viewers is told when a page starts and stops watching the board
type Viewers interface {
	Acquire()
	Release()
}
