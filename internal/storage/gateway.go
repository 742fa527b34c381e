// Package storage is the persistence gateway: safe reads and writes of named
// JSON documents to a durable key-value backend.
//
// The gateway never surfaces an error to its caller. Failed reads fall back to
// the caller's default and failed writes report false; every failure is logged
// with its key and reason.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"smart-cookbook/internal/metrics"
)

// Keys of the four persisted documents.
const (
	KeyRecipes      = "smart_cookbook_recipes"
	KeyMealPlan     = "smart_cookbook_meal_plan"
	KeyShoppingList = "smart_cookbook_shopping_list"
	KeyCollections  = "smart_cookbook_collections"
)

// AllKeys lists every persisted key.
var AllKeys = []string{KeyRecipes, KeyMealPlan, KeyShoppingList, KeyCollections}

// DefaultMaxValueBytes mirrors the usual browser local-storage quota.
const DefaultMaxValueBytes = 5 << 20

var (
	// ErrKeyNotFound is returned by a Backend when a key has never been written.
	ErrKeyNotFound = errors.New("key not found")
	// ErrQuotaExceeded is returned when a value does not fit in the store.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Backend is a durable key-value store holding raw documents.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Gateway wraps a Backend with fallback, validation and logging.
type Gateway struct {
	backend       Backend
	logger        *slog.Logger
	maxValueBytes int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for failure reports.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMaxValueBytes sets the per-key size quota. Zero or negative disables it.
func WithMaxValueBytes(n int) Option {
	return func(g *Gateway) { g.maxValueBytes = n }
}

// NewGateway creates a Gateway. A nil backend yields an unavailable gateway
// whose reads return defaults and whose writes report false.
func NewGateway(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{
		backend:       backend,
		logger:        slog.Default(),
		maxValueBytes: DefaultMaxValueBytes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether a backend is attached.
func (g *Gateway) Available() bool {
	return g != nil && g.backend != nil
}

// Close closes the underlying backend, if any.
func (g *Gateway) Close() error {
	if !g.Available() {
		return nil
	}
	return g.backend.Close()
}

// Read decodes the document stored under key into a T. Absent, null, empty or
// malformed documents, and any backend failure, yield def.
func Read[T any](ctx context.Context, g *Gateway, key string, def T) T {
	data, ok := g.ReadRaw(ctx, key)
	if !ok {
		return def
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		g.logger.Error("failed to decode stored value", slog.String("key", key), slog.String("error", err.Error()))
		metrics.RecordStorage("read", metrics.ResultMalformed)
		return def
	}
	return v
}

// ReadRaw returns the stored document for key. It reports false when the key is
// absent, holds null or blank data, or the backend failed.
func (g *Gateway) ReadRaw(ctx context.Context, key string) ([]byte, bool) {
	if !g.Available() {
		metrics.RecordStorage("read", metrics.ResultUnavailable)
		return nil, false
	}

	data, err := g.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			metrics.RecordStorage("read", metrics.ResultMiss)
			return nil, false
		}
		g.logger.Error("failed to read from storage", slog.String("key", key), slog.String("error", err.Error()))
		metrics.RecordStorage("read", metrics.ResultError)
		return nil, false
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		metrics.RecordStorage("read", metrics.ResultMiss)
		return nil, false
	}
	if !json.Valid(trimmed) {
		g.logger.Error("stored value is not valid JSON", slog.String("key", key))
		metrics.RecordStorage("read", metrics.ResultMalformed)
		return nil, false
	}

	metrics.RecordStorage("read", metrics.ResultOK)
	return trimmed, true
}

// Write encodes value as JSON and stores it under key. It reports whether the
// value reached the backend.
func (g *Gateway) Write(ctx context.Context, key string, value any) bool {
	data, err := json.Marshal(value)
	if err != nil {
		g.logger.Error("failed to encode value for storage", slog.String("key", key), slog.String("error", err.Error()))
		metrics.RecordStorage("write", metrics.ResultError)
		return false
	}
	return g.WriteRaw(ctx, key, data)
}

// WriteRaw stores an already encoded document under key.
func (g *Gateway) WriteRaw(ctx context.Context, key string, data []byte) bool {
	if !g.Available() {
		g.logger.Debug("storage unavailable, keeping value in memory only", slog.String("key", key))
		metrics.RecordStorage("write", metrics.ResultUnavailable)
		return false
	}

	err := g.checkQuota(len(data))
	if err == nil {
		err = g.backend.Set(ctx, key, data)
	}
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			g.logger.Error("storage quota exceeded, consider clearing old data",
				slog.String("key", key), slog.Int("bytes", len(data)))
			metrics.RecordStorage("write", metrics.ResultQuota)
			return false
		}
		g.logger.Error("failed to write to storage", slog.String("key", key), slog.String("error", err.Error()))
		metrics.RecordStorage("write", metrics.ResultError)
		return false
	}

	metrics.RecordStorage("write", metrics.ResultOK)
	return true
}

// Remove deletes key. Removing an absent key succeeds.
func (g *Gateway) Remove(ctx context.Context, key string) bool {
	if !g.Available() {
		metrics.RecordStorage("delete", metrics.ResultUnavailable)
		return false
	}
	if err := g.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrKeyNotFound) {
		g.logger.Error("failed to remove from storage", slog.String("key", key), slog.String("error", err.Error()))
		metrics.RecordStorage("delete", metrics.ResultError)
		return false
	}
	metrics.RecordStorage("delete", metrics.ResultOK)
	return true
}

func (g *Gateway) checkQuota(size int) error {
	if g.maxValueBytes > 0 && size > g.maxValueBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrQuotaExceeded, size, g.maxValueBytes)
	}
	return nil
}
