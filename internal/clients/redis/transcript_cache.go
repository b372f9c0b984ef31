package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

const keyPrefix = "transcript:"

// TranscriptCache is the cache-aside store for rendered transcripts.
// GetMany returns only hits; misses are simply absent. PutMany is an
// idempotent upsert that never stores an empty transcript.
type TranscriptCache interface {
	GetMany(ctx context.Context, chatJIDs []string) (map[string]types.CacheEntry, error)
	PutMany(ctx context.Context, entries []types.CacheEntry) error
	Close() error
}

type transcriptCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

// NewTranscriptCache connects to REDIS_ADDR. ttl <= 0 stores entries with
// no expiry (the revalidation check in the pipeline handles staleness).
func NewTranscriptCache(log *logger.Logger, ttl time.Duration) (TranscriptCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &transcriptCache{
		log: log.With("service", "TranscriptCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *transcriptCache) GetMany(ctx context.Context, chatJIDs []string) (map[string]types.CacheEntry, error) {
	out := make(map[string]types.CacheEntry, len(chatJIDs))
	if c == nil || c.rdb == nil || len(chatJIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(chatJIDs))
	for i, jid := range chatJIDs {
		keys[i] = keyPrefix + jid
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	for i, val := range vals {
		if val == nil {
			continue
		}
		raw, ok := val.(string)
		if !ok {
			continue
		}
		var entry types.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// A corrupt entry is just a miss; it gets rebuilt and
			// overwritten.
			c.log.Warn("Dropping unreadable cache entry", "chat_jid", chatJIDs[i], "error", err)
			continue
		}
		out[chatJIDs[i]] = entry
	}
	return out, nil
}

func (c *transcriptCache) PutMany(ctx context.Context, entries []types.CacheEntry) error {
	if c == nil || c.rdb == nil {
		return fmt.Errorf("transcript cache not initialized")
	}
	cacheable := FilterCacheable(entries)
	if len(cacheable) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for _, entry := range cacheable {
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode cache entry %s: %w", entry.Transcript.ChatJID, err)
		}
		pipe.Set(ctx, keyPrefix+entry.Transcript.ChatJID, raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	return nil
}

func (c *transcriptCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// FilterCacheable drops entries whose rendered text is empty. Empty
// transcripts are never cached so a later run with new messages rebuilds
// them.
func FilterCacheable(entries []types.CacheEntry) []types.CacheEntry {
	out := make([]types.CacheEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.TrimSpace(entry.Transcript.Text) == "" {
			continue
		}
		if entry.Transcript.ChatJID == "" {
			continue
		}
		out = append(out, entry)
	}
	return out
}
