// Package idempotency replays the stored response of a mutating request when
// the client retries it with the same Idempotency-Key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

type ReservationState int

const (
	ReservationNew ReservationState = iota
	ReservationCompleted
	ReservationPending
)

type Record struct {
	Fingerprint    string `json:"fingerprint"`
	Status         Status `json:"status"`
	ResponseStatus int    `json:"response_status,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	ResponseBody   []byte `json:"response_body,omitempty"`
}

type Reservation struct {
	State  ReservationState
	Record Record
}

var ErrFingerprintMismatch = errors.New("idempotency key reused for a different request")

type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (Reservation, error)
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

func fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func classify(rec Record, fp string) (Reservation, error) {
	if rec.Fingerprint != fp {
		return Reservation{}, ErrFingerprintMismatch
	}
	if rec.Status == StatusCompleted {
		return Reservation{State: ReservationCompleted, Record: rec}, nil
	}
	return Reservation{State: ReservationPending, Record: rec}, nil
}

const keyFormat = "idem:%s"

// RedisStore keeps records as JSON strings; SET NX makes the reservation atomic.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Reserve(ctx context.Context, key, fp string, ttl time.Duration) (Reservation, error) {
	k := fmt.Sprintf(keyFormat, key)
	data, err := json.Marshal(Record{Fingerprint: fp, Status: StatusPending})
	if err != nil {
		return Reservation{}, fmt.Errorf("marshal record: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, k, data, ttl).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return Reservation{State: ReservationNew}, nil
	}

	raw, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return Reservation{State: ReservationPending}, nil
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("load idempotency key: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Reservation{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return classify(rec, fp)
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	rec.Status = StatusCompleted
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.rdb.Set(ctx, fmt.Sprintf(keyFormat, key), data, ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(keyFormat, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store for single-instance setups and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rec       Record
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, key, fp string, ttl time.Duration) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.records[key]; ok && now.Before(e.expiresAt) {
		return classify(e.rec, fp)
	}
	s.records[key] = memoryEntry{
		rec:       Record{Fingerprint: fp, Status: StatusPending},
		expiresAt: now.Add(ttl),
	}
	return Reservation{State: ReservationNew}, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Status = StatusCompleted
	s.records[key] = memoryEntry{rec: rec, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}
