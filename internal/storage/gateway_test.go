package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingBackend returns the configured errors from every call.
type failingBackend struct {
	getErr, setErr, deleteErr error
	sets                      int
}

func (f *failingBackend) Get(context.Context, string) ([]byte, error) { return nil, f.getErr }
func (f *failingBackend) Set(context.Context, string, []byte) error {
	f.sets++
	return f.setErr
}
func (f *failingBackend) Delete(context.Context, string) error { return f.deleteErr }
func (f *failingBackend) Close() error                         { return nil }

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestGateway_ReadWrite(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(NewMemoryBackend())

	t.Run("Read-NeverWritten", func(t *testing.T) {
		def := []string{"default"}
		assert.Equal(t, def, Read(ctx, gw, KeyRecipes, def))
	})

	t.Run("RoundTrip", func(t *testing.T) {
		v := map[string]map[string]string{"monday": {"lunch": "r1"}}
		require.True(t, gw.Write(ctx, KeyMealPlan, v))
		assert.Equal(t, v, Read(ctx, gw, KeyMealPlan, map[string]map[string]string{}))
	})

	t.Run("Write-Idempotent", func(t *testing.T) {
		v := map[string]int{"b": 2, "a": 1}
		require.True(t, gw.Write(ctx, "k", v))
		first, ok := gw.ReadRaw(ctx, "k")
		require.True(t, ok)
		require.True(t, gw.Write(ctx, "k", v))
		second, ok := gw.ReadRaw(ctx, "k")
		require.True(t, ok)
		assert.Equal(t, first, second)
	})
}

func TestGateway_StoredNullOrEmptyIsAbsent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	gw := NewGateway(backend)

	for _, raw := range []string{"null", "", "   ", " null\n"} {
		require.NoError(t, backend.Set(ctx, KeyShoppingList, []byte(raw)))
		assert.Equal(t, []string{"d"}, Read(ctx, gw, KeyShoppingList, []string{"d"}), "stored %q", raw)
	}
}

func TestGateway_MalformedFallsBack(t *testing.T) {
	ctx := context.Background()
	logger, logs := newTestLogger()
	backend := NewMemoryBackend()
	gw := NewGateway(backend, WithLogger(logger))

	t.Run("InvalidJSON", func(t *testing.T) {
		require.NoError(t, backend.Set(ctx, KeyRecipes, []byte("{not json")))
		assert.Equal(t, []int{7}, Read(ctx, gw, KeyRecipes, []int{7}))
		assert.Contains(t, logs.String(), KeyRecipes)
	})

	t.Run("WrongShape", func(t *testing.T) {
		logs.Reset()
		require.NoError(t, backend.Set(ctx, KeyRecipes, []byte(`{"a":1}`)))
		assert.Equal(t, []int{7}, Read(ctx, gw, KeyRecipes, []int{7}))
		assert.Contains(t, logs.String(), "failed to decode stored value")
	})
}

func TestGateway_BackendFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("ReadError", func(t *testing.T) {
		logger, logs := newTestLogger()
		gw := NewGateway(&failingBackend{getErr: errors.New("disk on fire")}, WithLogger(logger))
		assert.Equal(t, "def", Read(ctx, gw, KeyRecipes, "def"))
		assert.Contains(t, logs.String(), "disk on fire")
	})

	t.Run("WriteError", func(t *testing.T) {
		logger, logs := newTestLogger()
		gw := NewGateway(&failingBackend{setErr: errors.New("io error")}, WithLogger(logger))
		assert.False(t, gw.Write(ctx, KeyRecipes, []string{}))
		assert.Contains(t, logs.String(), "io error")
		assert.Contains(t, logs.String(), KeyRecipes)
	})

	t.Run("BackendQuota", func(t *testing.T) {
		logger, logs := newTestLogger()
		gw := NewGateway(&failingBackend{setErr: ErrQuotaExceeded}, WithLogger(logger))
		assert.False(t, gw.Write(ctx, KeyRecipes, []string{}))
		assert.Contains(t, logs.String(), "quota exceeded")
	})

	t.Run("RemoveError", func(t *testing.T) {
		gw := NewGateway(&failingBackend{deleteErr: errors.New("locked")})
		assert.False(t, gw.Remove(ctx, KeyRecipes))
	})
}

func TestGateway_Quota(t *testing.T) {
	ctx := context.Background()
	logger, logs := newTestLogger()
	backend := &failingBackend{}
	gw := NewGateway(backend, WithLogger(logger), WithMaxValueBytes(8))

	assert.False(t, gw.Write(ctx, KeyRecipes, "a string longer than eight bytes"))
	assert.Equal(t, 0, backend.sets, "oversized values never reach the backend")
	assert.Contains(t, logs.String(), "quota exceeded")

	assert.True(t, gw.Write(ctx, KeyRecipes, "ok"))
	assert.Equal(t, 1, backend.sets)
}

func TestGateway_EncodeFailure(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(NewMemoryBackend())
	assert.False(t, gw.Write(ctx, KeyRecipes, make(chan int)))
}

func TestGateway_Unavailable(t *testing.T) {
	ctx := context.Background()
	logger, logs := newTestLogger()
	gw := NewGateway(nil, WithLogger(logger))

	assert.False(t, gw.Available())
	assert.Equal(t, 3, Read(ctx, gw, KeyRecipes, 3))
	assert.False(t, gw.Write(ctx, KeyRecipes, 1))
	assert.False(t, gw.Remove(ctx, KeyRecipes))
	assert.NoError(t, gw.Close())
	assert.NotContains(t, logs.String(), "level=ERROR")
}

func TestGateway_Remove(t *testing.T) {
	ctx := context.Background()
	gw := NewGateway(NewMemoryBackend())

	require.True(t, gw.Write(ctx, KeyCollections, []string{"x"}))
	assert.True(t, gw.Remove(ctx, KeyCollections))
	assert.True(t, gw.Remove(ctx, KeyCollections))
	assert.Nil(t, Read[[]string](ctx, gw, KeyCollections, nil))
}
