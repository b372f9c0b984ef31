package types

import (
	"time"
)

// Chat is one row of the WhatsApp bridge's chat table. The bridge owns this
// schema; we only ever read it.
type Chat struct {
	JID             string    `gorm:"column:jid;primaryKey" json:"jid"`
	Name            string    `gorm:"column:name" json:"name"`
	LastMessageTime time.Time `gorm:"column:last_message_time" json:"last_message_time"`
}

func (Chat) TableName() string {
	return "chats"
}

// Message is one row of the WhatsApp bridge's message table, read-only.
// MediaType is empty for plain text and carries a type tag (image, video,
// audio, document, sticker) when the content is a media placeholder.
type Message struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	ChatJID   string    `gorm:"column:chat_jid;primaryKey;index" json:"chat_jid"`
	Sender    string    `gorm:"column:sender" json:"sender"`
	Content   string    `gorm:"column:content" json:"content"`
	Timestamp time.Time `gorm:"column:timestamp;index" json:"timestamp"`
	IsFromMe  bool      `gorm:"column:is_from_me" json:"is_from_me"`
	MediaType string    `gorm:"column:media_type" json:"media_type"`
}

func (Message) TableName() string {
	return "messages"
}

// GroupJIDSuffix marks group chats; BroadcastJIDSuffix marks broadcast
// lists. Both are excluded from analysis.
const (
	GroupJIDSuffix     = "@g.us"
	BroadcastJIDSuffix = "@broadcast"
)
