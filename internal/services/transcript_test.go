package services

import (
	"testing"
	"time"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func msg(sender string, fromMe bool, content, mediaType string, at time.Time) *types.Message {
	return &types.Message{
		ID:        sender + at.String(),
		ChatJID:   "123@s.whatsapp.net",
		Sender:    sender,
		Content:   content,
		Timestamp: at,
		IsFromMe:  fromMe,
		MediaType: mediaType,
	}
}

func TestTranscriptBuildRendersSendersAndMedia(t *testing.T) {
	svc := NewTranscriptService(testLogger(t), 100)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	chat := &types.Chat{JID: "123@s.whatsapp.net", Name: "Asha"}

	messages := []*types.Message{
		msg("123", false, "Hi, do you have the blue model?", "", base),
		msg("me", true, "Yes! Sending a photo", "", base.Add(time.Minute)),
		msg("me", true, "", "image", base.Add(2*time.Minute)),
		msg("123", false, "check this", "document", base.Add(3*time.Minute)),
	}

	got := svc.Build(chat, messages)
	want := "Asha: Hi, do you have the blue model?\n" +
		"Me: Yes! Sending a photo\n" +
		"Me: [Image]\n" +
		"Asha: check this [Document]\n"
	if got.Text != want {
		t.Fatalf("rendered text mismatch:\nwant %q\ngot  %q", want, got.Text)
	}
	if got.MessageCount != 4 {
		t.Fatalf("message count: want=4 got=%d", got.MessageCount)
	}
	if got.DisplayName != "Asha" {
		t.Fatalf("display name: want=Asha got=%q", got.DisplayName)
	}
}

func TestTranscriptBuildIsDeterministic(t *testing.T) {
	svc := NewTranscriptService(testLogger(t), 50)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	chat := &types.Chat{JID: "123@s.whatsapp.net", Name: "Asha"}
	messages := []*types.Message{
		msg("123", false, "one", "", base),
		msg("me", true, "two", "", base.Add(time.Hour)),
	}

	first := svc.Build(chat, messages)
	second := svc.Build(chat, messages)
	if first.Text != second.Text {
		t.Fatalf("rendering not deterministic:\n%q\nvs\n%q", first.Text, second.Text)
	}
}

func TestTranscriptBuildBoundsToRecentWindow(t *testing.T) {
	svc := NewTranscriptService(testLogger(t), 2)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	chat := &types.Chat{JID: "123@s.whatsapp.net", Name: "Asha"}
	messages := []*types.Message{
		msg("123", false, "oldest", "", base),
		msg("123", false, "middle", "", base.Add(time.Minute)),
		msg("123", false, "newest", "", base.Add(2*time.Minute)),
	}

	got := svc.Build(chat, messages)
	want := "Asha: middle\nAsha: newest\n"
	if got.Text != want {
		t.Fatalf("windowed text: want %q got %q", want, got.Text)
	}
	// Metadata still covers the full history.
	if got.MessageCount != 3 {
		t.Fatalf("message count: want=3 got=%d", got.MessageCount)
	}
}

func TestTranscriptBuildMetadata(t *testing.T) {
	svc := NewTranscriptService(testLogger(t), 100)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lastCustomer := base.Add(48 * time.Hour)
	chat := &types.Chat{JID: "123@s.whatsapp.net", Name: "Asha"}
	messages := []*types.Message{
		msg("123", false, "hello", "", base),
		msg("123", false, "still there?", "", lastCustomer),
		msg("me", true, "yes", "", base.Add(72*time.Hour)),
	}

	got := svc.Build(chat, messages)
	if got.DurationDays != 3 {
		t.Fatalf("duration days: want=3 got=%d", got.DurationDays)
	}
	if got.LastCustomerMessageAt == nil || !got.LastCustomerMessageAt.Equal(lastCustomer) {
		t.Fatalf("last customer message at: want=%v got=%v", lastCustomer, got.LastCustomerMessageAt)
	}
}

func TestTranscriptBuildEmptyHistory(t *testing.T) {
	svc := NewTranscriptService(testLogger(t), 100)
	chat := &types.Chat{JID: "123@s.whatsapp.net", Name: "Asha"}

	got := svc.Build(chat, nil)
	if got.Text != "" {
		t.Fatalf("empty history should render empty text, got %q", got.Text)
	}
	if got.MessageCount != 0 || got.LastCustomerMessageAt != nil {
		t.Fatalf("empty history metadata not zeroed: %+v", got)
	}
}
