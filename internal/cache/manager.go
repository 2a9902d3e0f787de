package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

// Config holds configuration for a Store.
type Config struct {
	MemoryCapacity   int64         // Bytes
	DiskCapacity     int64         // Bytes; 0 disables the disk cache
	Dir              string        // Empty uses DefaultDir
	CompressionLevel int           // Zstd compression level (1-22), 0 disables
	MaxAge           time.Duration // Disk entries older than this are dropped on open
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 3,
		MaxAge:           30 * 24 * time.Hour,
	}
}

// DefaultDir returns the per-user directory for cached audio.
func DefaultDir() (string, error) {
	dir, err := gap.NewScope(gap.User, "narrate").CacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// Store layers the memory cache over the disk cache. Disk hits are promoted
// to memory.
type Store struct {
	memory *MemoryCache
	disk   *DiskCache
	logger *log.Logger

	mu         sync.Mutex
	promotions int64
}

// NewStore creates a Store from cfg.
func NewStore(cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}

	s := &Store{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		logger: logger,
	}

	if cfg.DiskCapacity > 0 {
		dir := cfg.Dir
		if dir == "" {
			var err error
			if dir, err = DefaultDir(); err != nil {
				return nil, err
			}
		}

		disk, err := NewDiskCache(dir, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		if cfg.MaxAge > 0 {
			if n := disk.RemoveOlderThan(time.Now().Add(-cfg.MaxAge)); n > 0 {
				logger.Debug("pruned stale audio", "entries", n)
			}
		}
		s.disk = disk
	}

	return s, nil
}

// Get looks key up in memory, then on disk.
func (s *Store) Get(key Key) ([]byte, bool) {
	k := key.String()

	if data, ok := s.memory.Get(k); ok {
		return data, true
	}
	if s.disk == nil {
		return nil, false
	}

	data, ok := s.disk.Get(k)
	if !ok {
		return nil, false
	}
	if err := s.memory.Put(k, data); err == nil {
		s.mu.Lock()
		s.promotions++
		s.mu.Unlock()
	}
	return data, true
}

// Put stores value under key at every level that can hold it.
func (s *Store) Put(key Key, value []byte) error {
	k := key.String()

	if err := s.memory.Put(k, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}
	if s.disk != nil {
		if err := s.disk.Put(k, value); err != nil {
			if err == ErrItemTooLarge {
				return nil
			}
			return fmt.Errorf("disk cache: %w", err)
		}
	}
	return nil
}

// Clear empties every level.
func (s *Store) Clear() error {
	if err := s.memory.Clear(); err != nil {
		return err
	}
	if s.disk != nil {
		return s.disk.Clear()
	}
	return nil
}

// Stats returns statistics per level.
func (s *Store) Stats() map[Level]Stats {
	stats := map[Level]Stats{LevelMemory: s.memory.Stats()}
	if s.disk != nil {
		stats[LevelDisk] = s.disk.Stats()
	}
	return stats
}

// Promotions returns how many disk hits were copied into memory.
func (s *Store) Promotions() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promotions
}

// Dir returns the disk cache directory, or "" without a disk cache.
func (s *Store) Dir() string {
	if s.disk == nil {
		return ""
	}
	return s.disk.Path()
}

// Close persists the disk index.
func (s *Store) Close() error {
	if s.disk == nil {
		return nil
	}
	if err := s.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}
