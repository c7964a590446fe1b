package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const redisKeyPrefix = "idem:"

type redisRecord struct {
	Status Status `json:"status"`
	Owner  string `json:"owner,omitempty"`
	Result []byte `json:"result,omitempty"`
}

// Sólo borra la clave si sigue en curso y pertenece a ARGV[1].
var releaseScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local rec = cjson.decode(v)
if rec.status == 'in_progress' and rec.owner == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Sustituye la reserva de ARGV[1] por el registro completado ARGV[2] con TTL ARGV[3] (ms).
var completeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
local rec = cjson.decode(v)
if rec.status ~= 'in_progress' or rec.owner ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisStore usa SET NX con TTL: el lease y la retención los expira Redis.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) CheckAndReserve(ctx context.Context, key string, lease time.Duration) (Reservation, error) {
	token := uuid.NewString()
	val, _ := json.Marshal(redisRecord{Status: StatusInProgress, Owner: token})
	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, val, lease).Result()
	if err != nil {
		return Reservation{}, sharedDomain.Transient("idempotency.reserve", err)
	}
	if ok {
		return Reservation{Key: key, Status: StatusNew, Token: token}, nil
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Reservation{Key: key, Status: StatusInProgress}, sharedDomain.ErrAlreadyProcessing
	}
	if err != nil {
		return Reservation{}, sharedDomain.Transient("idempotency.read", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Reservation{}, err
	}
	if rec.Status == StatusCompleted {
		return Reservation{Key: key, Status: StatusCompleted, Result: rec.Result}, nil
	}
	return Reservation{Key: key, Status: StatusInProgress}, sharedDomain.ErrAlreadyProcessing
}

func (s *RedisStore) Complete(ctx context.Context, key, token string, result []byte) error {
	val, err := json.Marshal(redisRecord{Status: StatusCompleted, Result: result})
	if err != nil {
		return err
	}
	n, err := completeScript.Run(ctx, s.client, []string{redisKeyPrefix + key},
		token, string(val), s.retention.Milliseconds()).Int()
	if err != nil {
		return sharedDomain.Transient("idempotency.complete", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrReservationLost, key)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, s.client, []string{redisKeyPrefix + key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return sharedDomain.Transient("idempotency.release", err)
	}
	return nil
}

// Expire no hace nada: Redis purga las claves por TTL.
func (s *RedisStore) Expire(ctx context.Context) (int64, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
