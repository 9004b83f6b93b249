package models

import (
	"encoding/json"
	"sort"
)

// BookingLogDetails holds the booking fields copied into a log entry
type BookingLogDetails struct {
	Room      string    `json:"room,omitempty"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`
}

// BookingLog is one entry of the booking audit log kept by the booking API.
// Booking is populated while the booking still exists; Details is the copy
// kept for bookings that were removed.
type BookingLog struct {
	ID        string             `json:"id"`
	Action    BookingAction      `json:"action,omitempty"`
	Timestamp Timestamp          `json:"timestamp"`
	UserName  string             `json:"userName,omitempty"`
	Booking   *BookingLogDetails `json:"booking,omitempty"`
	Details   *BookingLogDetails `json:"details,omitempty"`
}

// UnmarshalJSON decodes the booking API log shape where bookingId and userId are populated references
func (l *BookingLog) UnmarshalJSON(data []byte) error {
	aux := struct {
		ID        string             `json:"id"`
		MongoID   string             `json:"_id"`
		Action    BookingAction      `json:"action"`
		Timestamp Timestamp          `json:"timestamp"`
		UserName  string             `json:"userName"`
		Booking   *BookingLogDetails `json:"booking"`
		BookingID json.RawMessage    `json:"bookingId"`
		UserID    json.RawMessage    `json:"userId"`
		Details   *BookingLogDetails `json:"details"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*l = BookingLog{
		ID:        aux.ID,
		Action:    aux.Action,
		Timestamp: aux.Timestamp,
		UserName:  aux.UserName,
		Booking:   aux.Booking,
		Details:   aux.Details,
	}
	if l.ID == "" {
		l.ID = aux.MongoID
	}

	// Unpopulated references arrive as plain id strings and are ignored
	if l.Booking == nil && len(aux.BookingID) > 0 && aux.BookingID[0] == '{' {
		var ref BookingLogDetails
		if err := json.Unmarshal(aux.BookingID, &ref); err == nil {
			l.Booking = &ref
		}
	}
	if l.UserName == "" && len(aux.UserID) > 0 && aux.UserID[0] == '{' {
		var user BookingUser
		if err := json.Unmarshal(aux.UserID, &user); err == nil {
			l.UserName = user.FullName
		}
	}
	return nil
}

// Room returns the room of the logged booking, preferring the live reference
func (l BookingLog) Room() string {
	if l.Booking != nil && l.Booking.Room != "" {
		return l.Booking.Room
	}
	if l.Details != nil {
		return l.Details.Room
	}
	return ""
}

// StartTime returns the start time of the logged booking
func (l BookingLog) StartTime() Timestamp {
	if l.Booking != nil && l.Booking.StartTime.Valid {
		return l.Booking.StartTime
	}
	if l.Details != nil {
		return l.Details.StartTime
	}
	return Timestamp{}
}

// EndTime returns the end time of the logged booking
func (l BookingLog) EndTime() Timestamp {
	if l.Booking != nil && l.Booking.EndTime.Valid {
		return l.Booking.EndTime
	}
	if l.Details != nil {
		return l.Details.EndTime
	}
	return Timestamp{}
}

// SortLogsNewestFirst orders logs by timestamp descending; entries without a timestamp go last
func SortLogsNewestFirst(logs []BookingLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		a, b := logs[i].Timestamp, logs[j].Timestamp
		if a.Valid != b.Valid {
			return a.Valid
		}
		return a.Time.After(b.Time)
	})
}

// AdminStats are the aggregate counters reported by the booking API
type AdminStats struct {
	TotalUsers int `json:"totalUsers"`
	LoginCount int `json:"loginCount"`
}
