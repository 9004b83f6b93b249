package models

import (
	"encoding/json"
)

// BookingAction is the lifecycle action recorded on a booking
type BookingAction string

const (
	BookingActionCreated   BookingAction = "created"
	BookingActionCancelled BookingAction = "cancelled"
)

// BookingUser is the owner of a booking
type BookingUser struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName,omitempty"`
	StudentID string `json:"studentId,omitempty"`
}

// UnmarshalJSON accepts both "id" and "_id"
func (u *BookingUser) UnmarshalJSON(data []byte) error {
	type plain BookingUser
	aux := struct {
		plain
		MongoID string `json:"_id"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*u = BookingUser(aux.plain)
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}

// Booking represents a room booking. Room references the room by name.
type Booking struct {
	ID        string        `json:"id"`
	Room      string        `json:"room"`
	User      BookingUser   `json:"user"`
	StartTime Timestamp     `json:"startTime"`
	EndTime   Timestamp     `json:"endTime"`
	Action    BookingAction `json:"action,omitempty"`
}

// UnmarshalJSON accepts both "id" and "_id"
func (b *Booking) UnmarshalJSON(data []byte) error {
	type plain Booking
	aux := struct {
		plain
		MongoID string `json:"_id"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*b = Booking(aux.plain)
	if b.ID == "" {
		b.ID = aux.MongoID
	}
	return nil
}

// BookingRequest is the payload for creating a booking
type BookingRequest struct {
	Room      string    `json:"room" validate:"required,max=200"`
	StartTime Timestamp `json:"startTime" validate:"required"`
	EndTime   Timestamp `json:"endTime" validate:"required"`
}
