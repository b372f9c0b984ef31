package types

import (
	"time"
)

// Transcript is the rendered textual form of one conversation, bounded to
// the most recent window of messages. Rendering is deterministic for the
// same messages and window size.
type Transcript struct {
	ChatJID               string     `json:"chat_jid"`
	Text                  string     `json:"text"`
	MessageCount          int        `json:"message_count"`
	DurationDays          int        `json:"duration_days"`
	LastCustomerMessageAt *time.Time `json:"last_customer_message_at,omitempty"`
	DisplayName           string     `json:"display_name"`
}

// CacheEntry wraps a transcript with the moment it was cached. Entries are
// written only for non-empty transcripts.
type CacheEntry struct {
	Transcript Transcript `json:"transcript"`
	CachedAt   time.Time  `json:"cached_at"`
}
