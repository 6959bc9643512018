package embedstore

import (
	"context"
	"strconv"

	"github.com/fairface-insight/fairaudit/internal/api"
	"github.com/fairface-insight/fairaudit/internal/cache"
)

// Key identifies one embedding: the same image embedded with and without
// illumination preprocessing are different entries.
type Key struct {
	Path         string
	Preprocessed bool
}

// String renders the key the way the shared stores persist it.
func (k Key) String() string {
	return strconv.FormatBool(k.Preprocessed) + "|" + k.Path
}

// Embedding is a computed face embedding with its detection metadata.
// Vector is nil when no face was detected. Entries are immutable once
// stored.
type Embedding struct {
	Vector             []float64        `json:"vector,omitempty"`
	Detected           bool             `json:"detected"`
	Confidence         float64          `json:"confidence"`
	BoundingBox        *api.BoundingBox `json:"boundingBox,omitempty"`
	IlluminationBucket string           `json:"illuminationBucket,omitempty"`
	Preprocessed       bool             `json:"preprocessed"`
	Backend            string           `json:"backend,omitempty"`
}

// Usable reports whether the embedding can take part in pair sampling.
func (e *Embedding) Usable() bool {
	return e != nil && e.Detected && len(e.Vector) > 0
}

// Store persists embeddings keyed by (image path, preprocessing flag).
type Store interface {
	// Get retrieves a stored embedding. Returns nil if not found.
	Get(ctx context.Context, key Key) (*Embedding, error)

	// Set stores an embedding. First write wins.
	Set(ctx context.Context, key Key, e *Embedding) error

	// Close releases resources
	Close() error
}

// Resetter is implemented by stores that can drop every entry.
type Resetter interface {
	Reset(ctx context.Context) error
}

// MemoryStore is a bounded in-process store backed by an LRU.
type MemoryStore struct {
	lru *cache.LRU[Key, *Embedding]
}

// NewMemoryStore creates an in-memory store holding at most size entries.
func NewMemoryStore(size int, opts ...cache.Option[Key, *Embedding]) (*MemoryStore, error) {
	lru, err := cache.NewLRU[Key, *Embedding](size, opts...)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{lru: lru}, nil
}

func (m *MemoryStore) Get(ctx context.Context, key Key) (*Embedding, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *MemoryStore) Set(ctx context.Context, key Key, e *Embedding) error {
	if m.lru.Contains(key) {
		return nil
	}
	m.lru.Add(key, e)
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.lru.Purge()
	return nil
}

// Stats exposes the LRU counters.
func (m *MemoryStore) Stats() cache.Stats {
	return m.lru.Stats()
}

func (m *MemoryStore) Close() error {
	return nil
}
