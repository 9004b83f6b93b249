// Package redis provides a Redis/Valkey implementation of the repository interface
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/navikt/roomboard/internal/config"
	"github.com/navikt/roomboard/internal/models"
	"github.com/redis/go-redis/v9"
)

// Common errors
var (
	ErrNotFound = models.ErrNotFound
)

// Repository implements the repository interface with Redis storage.
//
// Layout under the key prefix:
//
//	snapshot:fetched_at  string, marks that a snapshot exists
//	rooms                hash of room ID to JSON
//	rooms:order          list of room IDs in upstream order
//	bookings             list of booking JSON in upstream order
//	pending              hash of room ID to pending status JSON
type Repository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRepository creates a new Redis repository
func NewRepository(cfg config.RedisConfig) (*Repository, error) {
	var client *redis.Client

	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		if opt.DB == 0 {
			opt.DB = cfg.DB
		}
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Repository{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.SnapshotTTL,
	}, nil
}

// Client exposes the underlying connection so other components (rate limiting) can share it
func (r *Repository) Client() *redis.Client {
	return r.client
}

// Ping checks that Redis is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) key(name string) string {
	return r.keyPrefix + name
}

func (r *Repository) snapshotKeys() []string {
	return []string{
		r.key("snapshot:fetched_at"),
		r.key("rooms"),
		r.key("rooms:order"),
		r.key("bookings"),
	}
}

// SaveSnapshot replaces the stored snapshot atomically
func (r *Repository) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	order := make([]interface{}, 0, len(snapshot.Rooms))
	rooms := make(map[string]interface{}, len(snapshot.Rooms))
	for _, room := range snapshot.Rooms {
		data, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("failed to marshal room %s: %w", room.ID, err)
		}
		order = append(order, room.ID)
		rooms[room.ID] = data
	}

	bookings := make([]interface{}, 0, len(snapshot.Bookings))
	for _, b := range snapshot.Bookings {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal booking %s: %w", b.ID, err)
		}
		bookings = append(bookings, data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.snapshotKeys()...)
		pipe.Set(ctx, r.key("snapshot:fetched_at"), snapshot.FetchedAt.UTC().Format(time.RFC3339Nano), r.ttl)
		if len(order) > 0 {
			pipe.RPush(ctx, r.key("rooms:order"), order...)
			pipe.HSet(ctx, r.key("rooms"), rooms)
		}
		if len(bookings) > 0 {
			pipe.RPush(ctx, r.key("bookings"), bookings...)
		}
		r.expire(ctx, pipe, r.key("rooms"), r.key("rooms:order"), r.key("bookings"))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot reads the stored snapshot
func (r *Repository) GetSnapshot(ctx context.Context) (*models.Snapshot, error) {
	fetchedAt, err := r.fetchedAt(ctx)
	if err != nil {
		return nil, err
	}

	var (
		orderCmd    *redis.StringSliceCmd
		roomsCmd    *redis.MapStringStringCmd
		bookingsCmd *redis.StringSliceCmd
	)
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		orderCmd = pipe.LRange(ctx, r.key("rooms:order"), 0, -1)
		roomsCmd = pipe.HGetAll(ctx, r.key("rooms"))
		bookingsCmd = pipe.LRange(ctx, r.key("bookings"), 0, -1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot := &models.Snapshot{
		Rooms:     make([]models.Room, 0, len(orderCmd.Val())),
		Bookings:  make([]models.Booking, 0, len(bookingsCmd.Val())),
		FetchedAt: fetchedAt,
	}

	roomData := roomsCmd.Val()
	for _, id := range orderCmd.Val() {
		data, ok := roomData[id]
		if !ok {
			continue
		}
		var room models.Room
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return nil, fmt.Errorf("failed to unmarshal room %s: %w", id, err)
		}
		snapshot.Rooms = append(snapshot.Rooms, room)
	}

	for _, data := range bookingsCmd.Val() {
		var b models.Booking
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal booking: %w", err)
		}
		snapshot.Bookings = append(snapshot.Bookings, b)
	}

	return snapshot, nil
}

// SaveRoom replaces one room in the stored snapshot
func (r *Repository) SaveRoom(ctx context.Context, room models.Room) error {
	exists, err := r.client.HExists(ctx, r.key("rooms"), room.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to check if room exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	if err := r.client.HSet(ctx, r.key("rooms"), room.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

// AddBooking appends a booking to the stored snapshot
func (r *Repository) AddBooking(ctx context.Context, booking models.Booking) error {
	if _, err := r.fetchedAt(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(booking)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, r.key("bookings"), data)
		r.expire(ctx, pipe, r.key("bookings"))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add booking: %w", err)
	}
	return nil
}

// RemoveBooking removes a booking by ID
func (r *Repository) RemoveBooking(ctx context.Context, bookingID string) error {
	values, err := r.client.LRange(ctx, r.key("bookings"), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list bookings: %w", err)
	}

	for _, data := range values {
		var b models.Booking
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			continue
		}
		if b.ID != bookingID {
			continue
		}
		if err := r.client.LRem(ctx, r.key("bookings"), 1, data).Err(); err != nil {
			return fmt.Errorf("failed to remove booking: %w", err)
		}
		return nil
	}
	return ErrNotFound
}

// SetPendingStatus records a tentative status for a room
func (r *Repository) SetPendingStatus(ctx context.Context, pending models.PendingStatus) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending status: %w", err)
	}
	if err := r.client.HSet(ctx, r.key("pending"), pending.RoomID, data).Err(); err != nil {
		return fmt.Errorf("failed to save pending status: %w", err)
	}
	return nil
}

// ListPendingStatuses returns all tentative statuses keyed by room ID
func (r *Repository) ListPendingStatuses(ctx context.Context) (map[string]models.PendingStatus, error) {
	values, err := r.client.HGetAll(ctx, r.key("pending")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending statuses: %w", err)
	}

	result := make(map[string]models.PendingStatus, len(values))
	for roomID, data := range values {
		var p models.PendingStatus
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			continue
		}
		result[roomID] = p
	}
	return result, nil
}

// ClearPendingStatus removes the tentative status of a room if token still matches
func (r *Repository) ClearPendingStatus(ctx context.Context, roomID, token string) error {
	key := r.key("pending")

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, key, roomID).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var p models.PendingStatus
		if err := json.Unmarshal(data, &p); err == nil && p.Token != token {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, key, roomID)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("failed to clear pending status: %w", err)
	}
	return nil
}

func (r *Repository) fetchedAt(ctx context.Context) (time.Time, error) {
	raw, err := r.client.Get(ctx, r.key("snapshot:fetched_at")).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get snapshot: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse snapshot time: %w", err)
	}
	return t, nil
}

func (r *Repository) expire(ctx context.Context, pipe redis.Pipeliner, keys ...string) {
	if r.ttl <= 0 {
		return
	}
	for _, k := range keys {
		pipe.Expire(ctx, k, r.ttl)
	}
}
