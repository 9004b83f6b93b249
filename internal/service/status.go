package service

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/navikt/roomboard/internal/bookingapi"
)

// HTTPStatus maps an error returned by BoardService to the status code a handler should answer with
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidBooking), errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomUnavailable):
		return http.StatusConflict
	case errors.Is(err, bookingapi.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// PublicMessage returns a short message for err that is safe to show to the caller
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		// Raw validator output names Go types and struct paths
		var raw validator.ValidationErrors
		if errors.As(err, &raw) {
			return "invalid request"
		}
		return err.Error()
	case http.StatusForbidden:
		return "You are not allowed to do that"
	case http.StatusNotFound:
		if errors.Is(err, ErrBookingNotFound) {
			return "Booking not found"
		}
		return "Room not found"
	case http.StatusConflict:
		return "Room is not available for booking"
	case http.StatusTooManyRequests:
		return "Too many requests, try again later"
	default:
		return "The booking service is unavailable"
	}
}
