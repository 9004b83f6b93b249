package models

import (
	"encoding/json"
)

// AdminStatus is the administrative open/closed flag of a room, set only by admins
type AdminStatus string

const (
	StatusAvailable   AdminStatus = "available"
	StatusUnavailable AdminStatus = "unavailable"
)

// Valid reports whether s is one of the known administrative statuses
func (s AdminStatus) Valid() bool {
	return s == StatusAvailable || s == StatusUnavailable
}

// Toggle returns the opposite administrative status
func (s AdminStatus) Toggle() AdminStatus {
	if s == StatusAvailable {
		return StatusUnavailable
	}
	return StatusAvailable
}

// Room represents a bookable room as delivered by the booking API
type Room struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Status AdminStatus `json:"status"`
	Image  string      `json:"image,omitempty"`
}

// UnmarshalJSON accepts both "id" and the Mongo-style "_id" emitted by the booking API
func (r *Room) UnmarshalJSON(data []byte) error {
	type plain Room
	aux := struct {
		plain
		MongoID string `json:"_id"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = Room(aux.plain)
	if r.ID == "" {
		r.ID = aux.MongoID
	}
	return nil
}
