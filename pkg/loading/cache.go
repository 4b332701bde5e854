package loading

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/orneryd/netgraph/pkg/cache"
	"github.com/orneryd/netgraph/pkg/pool"
)

// Key prefixes. The version byte changes whenever the encoding of Pair does.
const (
	prefixPairs  = byte(0x01) // pairs:blake2b(content) -> zstd(json([]Pair))
	cacheVersion = byte(0x01)
)

// CacheKey identifies an input by content.
type CacheKey [blake2b.Size256]byte

// KeyOf hashes content with BLAKE2b-256.
func KeyOf(content []byte) CacheKey {
	return blake2b.Sum256(content)
}

func (k CacheKey) badgerKey() []byte {
	key := make([]byte, 0, 2+len(k))
	key = append(key, prefixPairs, cacheVersion)
	return append(key, k[:]...)
}

// CacheOptions configures the persistent parse cache.
type CacheOptions struct {
	// Dir is where badger keeps its files. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM; useful for tests.
	InMemory bool

	// SyncWrites forces an fsync after each write.
	SyncWrites bool

	// HotEntries bounds the in-memory layer kept in front of badger. Zero
	// means DefaultHotEntries; a negative value disables the layer.
	HotEntries int

	Logger *slog.Logger
}

// DefaultHotEntries is the default size of the in-memory layer.
const DefaultHotEntries = 64

// Cache stores parsed pair lists keyed by the hash of the file content, so an
// unchanged file is never tokenised twice. Values are JSON compressed with
// zstd. Recently used entries are also kept decoded in memory; the slices
// returned by Get are shared and must not be modified.
//
// Safe for concurrent use.
type Cache struct {
	db     *badger.DB
	hot    *cache.LRU[CacheKey, []Pair]
	logger *slog.Logger

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu     sync.RWMutex
	closed bool
}

// CacheStats summarises the cache contents.
type CacheStats struct {
	Entries  int
	LSMSize  int64
	VLogSize int64
	Hot      cache.Stats
}

// OpenCache opens or creates a cache.
func OpenCache(opts CacheOptions) (*Cache, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(nil).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithValueThreshold(1024)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open parse cache: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	c := &Cache{db: db, logger: logger, encoder: encoder, decoder: decoder}
	if opts.HotEntries >= 0 {
		c.hot = cache.NewLRU[CacheKey, []Pair](cmp.Or(opts.HotEntries, DefaultHotEntries), 0)
	}
	return c, nil
}

var errCacheClosed = errors.New("parse cache closed")

// Get returns the pairs stored for key, or ErrCacheMiss.
func (c *Cache) Get(key CacheKey) ([]Pair, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, errCacheClosed
	}
	if c.hot != nil {
		if pairs, ok := c.hot.Get(key); ok {
			return pairs, nil
		}
	}

	var pairs []Pair
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.badgerKey())
		if err == badger.ErrKeyNotFound {
			return ErrCacheMiss
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			raw, err := c.decoder.DecodeAll(val, nil)
			if err != nil {
				return fmt.Errorf("decompressing cache entry: %w", err)
			}
			if err := json.Unmarshal(raw, &pairs); err != nil {
				return fmt.Errorf("unmarshaling cache entry: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if c.hot != nil {
		c.hot.Put(key, pairs)
	}
	return pairs, nil
}

// Put stores pairs under key, replacing any previous entry.
func (c *Cache) Put(key CacheKey, pairs []Pair) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errCacheClosed
	}

	raw, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("marshaling pairs: %w", err)
	}
	compressed := c.encoder.EncodeAll(raw, pool.GetByteBuffer())
	defer pool.PutByteBuffer(compressed)

	// badger holds on to the value until the transaction ends.
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key.badgerKey(), compressed)
	})
	if err != nil {
		return err
	}
	if c.hot != nil {
		c.hot.Put(key, pairs)
	}
	return nil
}

// Stats counts the entries and reports badger's on-disk sizes.
func (c *Cache) Stats() (CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return CacheStats{}, errCacheClosed
	}

	var stats CacheStats
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte{prefixPairs}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stats.Entries++
		}
		return nil
	})
	stats.LSMSize, stats.VLogSize = c.db.Size()
	if c.hot != nil {
		stats.Hot = c.hot.Stats()
	}
	return stats, err
}

// Clear drops every entry.
func (c *Cache) Clear() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errCacheClosed
	}
	if c.hot != nil {
		c.hot.Clear()
	}
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("clearing parse cache: %w", err)
	}
	c.logger.Info("parse cache cleared")
	return nil
}

// Close flushes and closes the underlying database. Closing twice is a no-op.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	c.encoder.Close()
	c.decoder.Close()
	return c.db.Close()
}
