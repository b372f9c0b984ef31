package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

// TranscriptService renders a chat's message history into the text the
// analyzer consumes. Rendering is deterministic: the same messages and the
// same window always produce the same text.
type TranscriptService struct {
	log    *logger.Logger
	window int
}

func NewTranscriptService(log *logger.Logger, window int) *TranscriptService {
	if window < 1 {
		window = 200
	}
	return &TranscriptService{
		log:    log.With("service", "TranscriptService"),
		window: window,
	}
}

// Build assembles a transcript from the full ordered history, bounding the
// rendered text to the most recent window of messages. Metadata covers the
// whole history, not just the window.
func (s *TranscriptService) Build(chat *types.Chat, messages []*types.Message) types.Transcript {
	t := types.Transcript{
		ChatJID:      chat.JID,
		MessageCount: len(messages),
		DisplayName:  chat.Name,
	}
	if len(messages) == 0 {
		return t
	}

	first := messages[0].Timestamp
	last := messages[len(messages)-1].Timestamp
	if last.After(first) {
		t.DurationDays = int(last.Sub(first).Hours() / 24)
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].IsFromMe {
			ts := messages[i].Timestamp
			t.LastCustomerMessageAt = &ts
			break
		}
	}

	windowed := messages
	if len(windowed) > s.window {
		windowed = windowed[len(windowed)-s.window:]
	}

	var sb strings.Builder
	for _, msg := range windowed {
		body := renderBody(msg)
		if body == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", senderLabel(chat, msg), body))
	}
	t.Text = sb.String()
	return t
}

func senderLabel(chat *types.Chat, msg *types.Message) string {
	if msg.IsFromMe {
		return "Me"
	}
	if chat.Name != "" {
		return chat.Name
	}
	return "Customer"
}

func renderBody(msg *types.Message) string {
	content := strings.TrimSpace(msg.Content)
	placeholder := mediaPlaceholder(msg.MediaType)
	switch {
	case content != "" && placeholder != "":
		return content + " " + placeholder
	case placeholder != "":
		return placeholder
	default:
		return content
	}
}

func mediaPlaceholder(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "":
		return ""
	case "image":
		return "[Image]"
	case "video":
		return "[Video]"
	case "audio", "ptt":
		return "[Audio]"
	case "sticker":
		return "[Sticker]"
	case "document":
		return "[Document]"
	default:
		return "[Attachment]"
	}
}

// EntryFor wraps a freshly built transcript for the cache write path.
func EntryFor(t types.Transcript, now time.Time) types.CacheEntry {
	return types.CacheEntry{Transcript: t, CachedAt: now}
}
