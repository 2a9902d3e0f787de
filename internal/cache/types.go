package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned after Close
	ErrCacheClosed = errors.New("cache is closed")
)

// Level represents the cache tier
type Level int

const (
	// LevelMemory is the in-memory cache (fastest)
	LevelMemory Level = iota

	// LevelDisk is the disk cache (persistent)
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds cache performance metrics
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of items in cache

	Hits      int64
	Misses    int64
	Evictions int64

	LastAccess time.Time
}

// HitRate returns hits / (hits + misses), or 0 before any lookups.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Cache defines the interface for cache implementations
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Contains(key string) bool
	Size() int64
	Stats() Stats
}

// Key identifies one synthesized utterance.
type Key struct {
	Engine string
	Voice  string
	Rate   float64
	Format string // Output format, e.g. "22050x1"
	Text   string
}

// String returns a fixed-length hex digest of the key.
func (k Key) String() string {
	data := fmt.Sprintf("%s|%s|%.2f|%s|%s", k.Engine, k.Voice, k.Rate, k.Format, k.Text)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
