// Package availability derives whether a room can be booked right now from
// the room's administrative status and the current bookings.
//
// All functions are pure: they read their arguments only, keep no state
// between calls and take the current instant as a parameter.
package availability

import (
	"time"

	"github.com/navikt/roomboard/internal/models"
)

// IsActive reports whether the booking still holds its room at now.
// Only the end time is checked; a booking occupies its room from the moment
// it exists until it ends. Missing or malformed end times are never active.
func IsActive(booking models.Booking, now time.Time) bool {
	return booking.EndTime.After(now)
}

// FindOccupyingBooking returns the booking currently occupying room, or nil.
//
// If the input holds several active bookings for the same room the first one
// in input order is returned. The result is a copy.
func FindOccupyingBooking(room models.Room, bookings []models.Booking, now time.Time) *models.Booking {
	for i := range bookings {
		if bookings[i].Room != room.Name {
			continue
		}
		if !IsActive(bookings[i], now) {
			continue
		}
		b := bookings[i]
		return &b
	}
	return nil
}

// IsOpen reports whether room is administratively open. A missing or
// unknown status counts as closed.
func IsOpen(room models.Room) bool {
	return room.Status == models.StatusAvailable
}

// IsAvailableForBooking reports whether a new booking may be made for room.
// The actor does not change the outcome: admins see details of occupied rooms
// but cannot book them twice.
func IsAvailableForBooking(room models.Room, occupying *models.Booking, actor models.Actor) bool {
	if !IsOpen(room) {
		return false
	}
	if occupying != nil {
		return false
	}
	return true
}

// CanCancel reports whether actor may cancel booking
func CanCancel(booking models.Booking, actor models.Actor) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleUser:
		return actor.ID != "" && booking.User.ID == actor.ID
	default:
		return false
	}
}

// StateOf classifies room given its occupying booking
func StateOf(room models.Room, occupying *models.Booking) models.RoomState {
	switch {
	case !IsOpen(room):
		return models.RoomStateUnavailable
	case occupying != nil:
		return models.RoomStateOccupied
	default:
		return models.RoomStateFree
	}
}

// View builds the display view of room for actor
func View(room models.Room, bookings []models.Booking, actor models.Actor, now time.Time) models.RoomView {
	occupying := FindOccupyingBooking(room, bookings, now)
	state := StateOf(room, occupying)
	available := IsAvailableForBooking(room, occupying, actor)

	view := models.RoomView{
		Room:            room,
		State:           state,
		Occupying:       occupying,
		Available:       available,
		Bookable:        available && !actor.IsGuest(),
		CanChangeStatus: actor.IsAdmin(),
	}

	switch state {
	case models.RoomStateUnavailable:
		view.Locked = true
	case models.RoomStateOccupied:
		view.Locked = !actor.IsAdmin()
	}

	if occupying != nil {
		view.CanCancel = CanCancel(*occupying, actor)
	}

	return view
}

// Stats counts rooms and active bookings at now
func Stats(rooms []models.Room, bookings []models.Booking, now time.Time) models.BoardStats {
	stats := models.BoardStats{TotalRooms: len(rooms)}

	for _, room := range rooms {
		switch StateOf(room, FindOccupyingBooking(room, bookings, now)) {
		case models.RoomStateUnavailable:
			stats.ClosedRooms++
		case models.RoomStateOccupied:
			stats.OpenRooms++
			stats.OccupiedRooms++
		default:
			stats.OpenRooms++
		}
	}

	for _, b := range bookings {
		if IsActive(b, now) {
			stats.ActiveBookings++
		}
	}

	return stats
}
