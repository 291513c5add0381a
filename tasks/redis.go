package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisRecordPrefix  = "task-record:"
	redisMappingPrefix = "task-map:"

	// defaultRecordExpiration bounds in-flight records so tasks whose queue
	// engine vanished do not linger forever.
	defaultRecordExpiration = 24 * time.Hour
)

// RedisStore is the networked Store and MappingStore, for deployments where
// task polling may land on a different node than task submission. Atomicity
// of terminal writes comes from writing the whole record as a single SET.
type RedisStore struct {
	client     redis.UniversalClient
	expiration time.Duration
}

var (
	_ Store        = (*RedisStore)(nil)
	_ MappingStore = (*RedisStore)(nil)
)

type RedisStoreOption func(*RedisStore)

// WithRecordExpiration overrides the expiration applied to non-terminal
// records.
func WithRecordExpiration(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.expiration = d
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		expiration: defaultRecordExpiration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) recordKey(key Key) string {
	return redisRecordPrefix + key.Encode()
}

func (s *RedisStore) getRecord(ctx context.Context, key Key) (Record, bool, error) {
	data, err := s.client.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis get record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}

func (s *RedisStore) putRecord(ctx context.Context, key Key, rec Record, expiration time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.Set(ctx, s.recordKey(key), data, expiration).Err(); err != nil {
		return fmt.Errorf("redis set record: %w", err)
	}
	return nil
}

func (s *RedisStore) SetState(ctx context.Context, key Key, state State) error {
	rec, found, err := s.getRecord(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		rec = Record{CreatedAt: time.Now().UTC()}
	}
	rec.State = state
	return s.putRecord(ctx, key, rec, s.expiration)
}

func (s *RedisStore) GetState(ctx context.Context, key Key) (State, bool, error) {
	rec, found, err := s.getRecord(ctx, key)
	if err != nil || !found {
		return StateUnknown, false, err
	}
	return rec.State, true, nil
}

func (s *RedisStore) StoreResult(ctx context.Context, key Key, value json.RawMessage, retention time.Duration) error {
	rec, found, err := s.getRecord(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		rec = Record{CreatedAt: time.Now().UTC()}
	}
	rec.State = StateCompleted
	rec.Value = value
	rec.Error = ""
	rec.CompletedAt = time.Now().UTC()
	rec.Retention = retention
	return s.putRecord(ctx, key, rec, retention)
}

func (s *RedisStore) StoreError(ctx context.Context, key Key, message string, retention time.Duration) error {
	rec, found, err := s.getRecord(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		rec = Record{CreatedAt: time.Now().UTC()}
	}
	rec.State = StateFailed
	rec.Value = nil
	rec.Error = message
	rec.CompletedAt = time.Now().UTC()
	rec.Retention = retention
	return s.putRecord(ctx, key, rec, retention)
}

func (s *RedisStore) GetRecord(ctx context.Context, key Key) (Record, bool, error) {
	return s.getRecord(ctx, key)
}

func (s *RedisStore) Cancel(ctx context.Context, key Key) (bool, error) {
	rec, found, err := s.getRecord(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if rec.State.Terminal() {
		return true, nil
	}
	rec.State = StateCancelled
	rec.CompletedAt = time.Now().UTC()
	if err := s.putRecord(ctx, key, rec, s.expiration); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) (bool, error) {
	n, err := s.client.Del(ctx, s.recordKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del record: %w", err)
	}
	return n > 0, nil
}

// SweepExpired is a no-op: terminal records carry a server-side expiration,
// so Redis reclaims them natively.
func (s *RedisStore) SweepExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func redisMappingKey(sessionID, taskID string) string {
	return fmt.Sprintf("%s%s:%s", redisMappingPrefix, sessionID, taskID)
}

func (s *RedisStore) PutMapping(ctx context.Context, sessionID, taskID string, m Mapping, ttl time.Duration) error {
	base := redisMappingKey(sessionID, taskID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, base, m.Key.Encode(), ttl)
	pipe.Set(ctx, base+":created_at", m.CreatedAt.UTC().Format(time.RFC3339Nano), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put mapping: %w", err)
	}
	return nil
}

func (s *RedisStore) GetMapping(ctx context.Context, sessionID, taskID string) (Mapping, bool, error) {
	base := redisMappingKey(sessionID, taskID)

	encoded, err := s.client.Get(ctx, base).Result()
	if errors.Is(err, redis.Nil) {
		return Mapping{}, false, nil
	}
	if err != nil {
		return Mapping{}, false, fmt.Errorf("redis get mapping: %w", err)
	}

	key, err := ParseKey(encoded)
	if err != nil {
		return Mapping{}, false, err
	}

	m := Mapping{Key: key}
	if createdAt, err := s.client.Get(ctx, base+":created_at").Result(); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			m.CreatedAt = t
		}
	}
	return m, true, nil
}

func (s *RedisStore) DeleteMapping(ctx context.Context, sessionID, taskID string) (bool, error) {
	base := redisMappingKey(sessionID, taskID)
	n, err := s.client.Del(ctx, base, base+":created_at").Result()
	if err != nil {
		return false, fmt.Errorf("redis del mapping: %w", err)
	}
	return n > 0, nil
}
