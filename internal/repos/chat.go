package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

// ChatRepo reads the bridge-owned chat and message tables. It never writes.
type ChatRepo interface {
	// ListUnanalyzed returns individual (non-group, non-broadcast) chats
	// with activity at or after cutoff that have no analysis row yet,
	// most recently active first.
	ListUnanalyzed(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Chat, error)
	// LoadMessages returns a chat's full history ordered by timestamp
	// ascending.
	LoadMessages(ctx context.Context, tx *gorm.DB, chatJID string) ([]*types.Message, error)
}

type chatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
	repoLog := baseLog.With("repo", "ChatRepo")
	return &chatRepo{db: db, log: repoLog}
}

func (r *chatRepo) ListUnanalyzed(ctx context.Context, tx *gorm.DB, cutoff time.Time) ([]*types.Chat, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Chat
	if err := transaction.WithContext(ctx).
		Where("jid NOT LIKE ?", "%"+types.GroupJIDSuffix).
		Where("jid NOT LIKE ?", "%"+types.BroadcastJIDSuffix).
		Where("last_message_time >= ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM conversation_analysis ca WHERE ca.chat_jid = chats.jid)").
		Order("last_message_time DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *chatRepo) LoadMessages(ctx context.Context, tx *gorm.DB, chatJID string) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Message
	if err := transaction.WithContext(ctx).
		Where("chat_jid = ?", chatJID).
		Order("timestamp ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
