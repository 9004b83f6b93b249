// Package bookingapi is a client for the remote booking API that owns rooms,
// bookings, users and their authorization.
package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/navikt/roomboard/internal/config"
	"github.com/navikt/roomboard/internal/models"
)

// Credential is the bearer token a call is made with. The empty credential is anonymous.
type Credential string

// Anonymous is the credential of a caller without a token
const Anonymous Credential = ""

// Profile is the signed-in user as reported by the booking API
type Profile struct {
	ID        string `json:"_id"`
	Role      string `json:"role"`
	FullName  string `json:"fullName"`
	StudentID string `json:"studentId"`
}

// Actor converts the profile to the actor it authorizes
func (p Profile) Actor() models.Actor {
	return models.Actor{
		Role: models.ParseRole(p.Role),
		ID:   p.ID,
		Name: p.FullName,
	}
}

// Client handles interactions with the booking API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new booking API client
func NewClient(cfg config.BookingAPIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListRooms fetches all rooms with their administrative status
func (c *Client) ListRooms(ctx context.Context, cred Credential) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.getList(ctx, cred, "/room-access", &rooms); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// ListBookings fetches all bookings visible to cred
func (c *Client) ListBookings(ctx context.Context, cred Credential) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := c.getList(ctx, cred, "/bookings", &bookings); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// SetRoomStatus changes a room's administrative status and returns the room as stored by the server
func (c *Client) SetRoomStatus(ctx context.Context, cred Credential, roomID string, status models.AdminStatus) (models.Room, error) {
	var room models.Room
	body := map[string]models.AdminStatus{"status": status}
	if err := c.do(ctx, cred, http.MethodPatch, "/room-access/"+url.PathEscape(roomID), body, &room); err != nil {
		return models.Room{}, fmt.Errorf("failed to update room status: %w", err)
	}
	if room.ID == "" {
		room.ID = roomID
	}
	return room, nil
}

// CreateBooking books a room and returns the booking as stored by the server
func (c *Client) CreateBooking(ctx context.Context, cred Credential, req models.BookingRequest) (models.Booking, error) {
	var booking models.Booking
	if err := c.do(ctx, cred, http.MethodPost, "/bookings", req, &booking); err != nil {
		return models.Booking{}, fmt.Errorf("failed to create booking: %w", err)
	}
	return booking, nil
}

// CancelBooking cancels a booking
func (c *Client) CancelBooking(ctx context.Context, cred Credential, bookingID string) error {
	if err := c.do(ctx, cred, http.MethodDelete, "/bookings/"+url.PathEscape(bookingID), nil, nil); err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

// Profile fetches the profile of the user owning cred
func (c *Client) Profile(ctx context.Context, cred Credential) (Profile, error) {
	var profile Profile
	if err := c.do(ctx, cred, http.MethodGet, "/profile", nil, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// BookingLogs fetches the booking audit log
func (c *Client) BookingLogs(ctx context.Context, cred Credential) ([]models.BookingLog, error) {
	var logs []models.BookingLog
	if err := c.getList(ctx, cred, "/booking_logs", &logs); err != nil {
		return nil, fmt.Errorf("failed to list booking logs: %w", err)
	}
	return logs, nil
}

// AdminStats fetches the user and login counters
func (c *Client) AdminStats(ctx context.Context, cred Credential) (models.AdminStats, error) {
	var stats models.AdminStats
	if err := c.do(ctx, cred, http.MethodGet, "/admin/stats", nil, &stats); err != nil {
		return models.AdminStats{}, fmt.Errorf("failed to get admin stats: %w", err)
	}
	return stats, nil
}

// getList performs a GET expecting a JSON array. Any other JSON value yields an empty list.
func (c *Client) getList(ctx context.Context, cred Credential, path string, out any) error {
	var raw json.RawMessage
	if err := c.do(ctx, cred, http.MethodGet, path, nil, &raw); err != nil {
		return err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		raw = json.RawMessage("[]")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// do sends a request and decodes a 2xx response into out when out is non-nil
func (c *Client) do(ctx context.Context, cred Credential, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != Anonymous {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage extracts the "message" or "error" field from an error response body
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
