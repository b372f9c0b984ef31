package redis

import (
	"testing"
	"time"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

func TestFilterCacheable(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []types.CacheEntry{
		{Transcript: types.Transcript{ChatJID: "a@s.whatsapp.net", Text: "Asha: hi\n"}, CachedAt: now},
		{Transcript: types.Transcript{ChatJID: "b@s.whatsapp.net", Text: ""}, CachedAt: now},
		{Transcript: types.Transcript{ChatJID: "c@s.whatsapp.net", Text: "   \n"}, CachedAt: now},
		{Transcript: types.Transcript{ChatJID: "", Text: "orphan text"}, CachedAt: now},
	}

	got := FilterCacheable(entries)
	if len(got) != 1 {
		t.Fatalf("want 1 cacheable entry, got %d", len(got))
	}
	if got[0].Transcript.ChatJID != "a@s.whatsapp.net" {
		t.Fatalf("wrong entry survived: %+v", got[0])
	}
}

func TestFilterCacheableEmptyInput(t *testing.T) {
	if got := FilterCacheable(nil); len(got) != 0 {
		t.Fatalf("nil input: got %d entries", len(got))
	}
}
