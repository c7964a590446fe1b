package idempotency

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sharedDomain "github.com/davicafu/placementlab/internal/shared/domain"
	"github.com/davicafu/placementlab/internal/shared/infra/platform/persistence/persistencetest"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLStore(t *testing.T) *SQLStore {
	return NewSQLStore(persistencetest.OpenSQLite(t), time.Hour)
}

func TestSQLStore_ReserveCompleteReplay(t *testing.T) {
	// Arrange
	store := newSQLStore(t)
	ctx := context.Background()

	// Act: primera reserva
	owner, err := store.CheckAndReserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, owner.Status)
	assert.NotEmpty(t, owner.Token)

	// Una segunda reserva mientras está en curso falla rápido
	res, err := store.CheckAndReserve(ctx, "k1", time.Minute)
	assert.ErrorIs(t, err, sharedDomain.ErrAlreadyProcessing)
	assert.Equal(t, StatusInProgress, res.Status)

	// Completar y volver a consultar devuelve el resultado guardado
	require.NoError(t, store.Complete(ctx, "k1", owner.Token, []byte(`{"ok":true}`)))
	res, err = store.CheckAndReserve(ctx, "k1", time.Minute)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.JSONEq(t, `{"ok":true}`, string(res.Result))
}

func TestSQLStore_ConcurrentReservesHaveSingleWinner(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	var winners, busy int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.CheckAndReserve(ctx, "shared-key", time.Minute)
			switch {
			case err == nil && res.Status == StatusNew:
				atomic.AddInt32(&winners, 1)
			case errors.Is(err, sharedDomain.ErrAlreadyProcessing):
				atomic.AddInt32(&busy, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
	assert.Equal(t, int32(9), busy)
}

func TestSQLStore_ExpiredLeaseCanBeReclaimed(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	_, err := store.CheckAndReserve(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	res, err := store.CheckAndReserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, res.Status, "un worker caído no bloquea la clave para siempre")
}

func TestSQLStore_StaleOwnerCannotCompleteOrRelease(t *testing.T) {
	// Arrange: el primer worker pierde el lease y otro reclama la clave
	store := newSQLStore(t)
	ctx := context.Background()
	stale, err := store.CheckAndReserve(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(30 * time.Millisecond)
	current, err := store.CheckAndReserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, StatusNew, current.Status)
	require.NotEqual(t, stale.Token, current.Token)

	// Act
	releaseErr := store.Release(ctx, "k", stale.Token)
	completeErr := store.Complete(ctx, "k", stale.Token, []byte(`"stale"`))

	// Assert: la reserva vigente sigue en curso
	require.NoError(t, releaseErr)
	assert.ErrorIs(t, completeErr, ErrReservationLost)
	_, err = store.CheckAndReserve(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, sharedDomain.ErrAlreadyProcessing)

	require.NoError(t, store.Complete(ctx, "k", current.Token, []byte(`"fresh"`)))
	res, err := store.CheckAndReserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, `"fresh"`, string(res.Result))
}

func TestSQLStore_ReleaseKeepsCompletedKeys(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	first, err := store.CheckAndReserve(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "a", first.Token))
	res, err := store.CheckAndReserve(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, res.Status)

	require.NoError(t, store.Complete(ctx, "a", res.Token, []byte(`1`)))
	require.NoError(t, store.Release(ctx, "a", res.Token))
	res, err = store.CheckAndReserve(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
}

func TestSQLStore_ExpirePurgesAfterRetention(t *testing.T) {
	store := newSQLStore(t)
	ctx := context.Background()

	res, err := store.CheckAndReserve(ctx, "old", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "old", res.Token, []byte(`"r"`)))

	n, err := store.Expire(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Avanzar el reloj más allá de la retención
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = store.Expire(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	store.now = time.Now
	res, err = store.CheckAndReserve(ctx, "old", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, res.Status)
}

type created struct {
	ID string `json:"id"`
}

func TestExecute_ReplaysStoredResult(t *testing.T) {
	guard := NewGuard(newSQLStore(t), time.Minute, zap.NewNop())
	ctx := context.Background()
	var calls int

	fn := func(ctx context.Context) (created, error) {
		calls++
		return created{ID: uuid.NewString()}, nil
	}

	first, replayed, err := Execute(ctx, guard, CommandKey("placement.create", "abc"), fn)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := Execute(ctx, guard, CommandKey("placement.create", "abc"), fn)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestExecute_FailureReleasesKey(t *testing.T) {
	guard := NewGuard(newSQLStore(t), time.Minute, zap.NewNop())
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := Execute(ctx, guard, "k", func(ctx context.Context) (created, error) {
		return created{}, boom
	})
	assert.ErrorIs(t, err, boom)

	got, replayed, err := Execute(ctx, guard, "k", func(ctx context.Context) (created, error) {
		return created{ID: "x"}, nil
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "x", got.ID)
}

func TestCommandKey_EmptyClientKeyDisablesDeduplication(t *testing.T) {
	assert.Empty(t, CommandKey("video.create", ""))
	assert.Equal(t, "cmd:video.create:abc", CommandKey("video.create", "abc"))
	assert.NotEqual(t, CommandKey("video.create", "abc"), CommandKey("placement.create", "abc"))
}

func TestExecute_KeylessCommandsAreNotReplayed(t *testing.T) {
	guard := NewGuard(newSQLStore(t), time.Minute, zap.NewNop())
	ctx := context.Background()
	var calls int

	for i := 0; i < 2; i++ {
		got, replayed, err := Execute(ctx, guard, CommandKey("video.create", ""), func(ctx context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, i+1, got)
	}
}

func TestExecute_WithoutKeyAlwaysRuns(t *testing.T) {
	var calls int
	for i := 0; i < 2; i++ {
		_, _, err := Execute(context.Background(), nil, "", func(ctx context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	key := "test-" + uuid.NewString()

	res, err := store.CheckAndReserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, res.Status)

	_, err = store.CheckAndReserve(ctx, key, time.Minute)
	assert.ErrorIs(t, err, sharedDomain.ErrAlreadyProcessing)

	assert.ErrorIs(t, store.Complete(ctx, key, "someone-else", []byte(`{"n":2}`)), ErrReservationLost)
	require.NoError(t, store.Complete(ctx, key, res.Token, []byte(`{"n":1}`)))
	require.NoError(t, store.Release(ctx, key, res.Token))

	res, err = store.CheckAndReserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.JSONEq(t, `{"n":1}`, string(res.Result))
}
