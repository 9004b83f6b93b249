package models

import "time"

// RoomState is the state of a room as observed by the board
type RoomState string

const (
	RoomStateFree        RoomState = "available-unoccupied"
	RoomStateOccupied    RoomState = "available-occupied"
	RoomStateUnavailable RoomState = "unavailable"
)

// RoomView represents the current status of a room for display to one actor
type RoomView struct {
	Room      Room      `json:"room"`
	State     RoomState `json:"state"`
	Occupying *Booking  `json:"occupying,omitempty"`
	Available bool      `json:"available"`
	// Bookable is true when the actor may create a booking for the room right now
	Bookable bool `json:"bookable"`
	// Locked mirrors the greyed-out card: closed rooms, and occupied rooms for non-admins
	Locked          bool `json:"locked"`
	CanCancel       bool `json:"can_cancel"`
	CanChangeStatus bool `json:"can_change_status"`
	// Pending is set while an admin status change awaits the server's answer
	Pending bool `json:"pending"`
}

// PendingStatus is a tentative administrative status applied before the server confirms it
type PendingStatus struct {
	RoomID      string      `json:"room_id"`
	Status      AdminStatus `json:"status"`
	Token       string      `json:"token"`
	RequestedBy string      `json:"requested_by,omitempty"`
	RequestedAt time.Time   `json:"requested_at"`
}

// Snapshot is the last authoritative copy of rooms and bookings fetched from the booking API
type Snapshot struct {
	Rooms     []Room    `json:"rooms"`
	Bookings  []Booking `json:"bookings"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FindRoom returns the room with the given id
func (s *Snapshot) FindRoom(id string) (Room, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// FindBooking returns the booking with the given id
func (s *Snapshot) FindBooking(id string) (Booking, bool) {
	for _, b := range s.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return Booking{}, false
}

// BoardStats are counters computed locally from a snapshot
type BoardStats struct {
	TotalRooms     int `json:"total_rooms"`
	OpenRooms      int `json:"open_rooms"`
	ClosedRooms    int `json:"closed_rooms"`
	OccupiedRooms  int `json:"occupied_rooms"`
	ActiveBookings int `json:"active_bookings"`
}

// BoardUpdate describes a change to the board that listeners should react to
type BoardUpdate struct {
	Kind   string `json:"kind"`
	RoomID string `json:"room_id,omitempty"`
}

const (
	UpdateRefreshed       = "refreshed"
	UpdateRoomStatus      = "room_status"
	UpdateBookingCreated  = "booking_created"
	UpdateBookingCanceled = "booking_cancelled"
)
