package api

import (
	"context"

	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/service"
)

// BoardServicer defines the board operations exposed as JSON
type BoardServicer interface {
	Board(ctx context.Context, actor models.Actor) ([]models.RoomView, error)
	Room(ctx context.Context, actor models.Actor, roomID string) (models.RoomView, error)
	ChangeRoomStatus(ctx context.Context, actor models.Actor, cred bookingapi.Credential, roomID string, status models.AdminStatus) (models.Room, error)
	CreateBooking(ctx context.Context, actor models.Actor, cred bookingapi.Credential, req models.BookingRequest) (models.Booking, error)
	CancelBooking(ctx context.Context, actor models.Actor, cred bookingapi.Credential, bookingID string) error
	Dashboard(ctx context.Context, actor models.Actor, cred bookingapi.Credential) (*service.Dashboard, error)
}
