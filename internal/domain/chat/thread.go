package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatThread struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID string    `gorm:"column:user_id;not null;index:idx_chat_thread_user_updated,priority:1" json:"user_id"`

	AgentID   string  `gorm:"column:agent_id;not null;index" json:"agent_id"`
	AgentName *string `gorm:"column:agent_name" json:"agent_name,omitempty"`

	// UpstreamThreadID links the thread to the agent service's conversation.
	// Set once, from the first stream that reports it.
	UpstreamThreadID *string `gorm:"column:upstream_thread_id;index" json:"upstream_thread_id,omitempty"`

	// Per-thread message sequencing.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"next_seq"`

	LastMessageAt time.Time `gorm:"column:last_message_at;not null;index" json:"last_message_at"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;index:idx_chat_thread_user_updated,priority:2" json:"updated_at"`
}

func (ChatThread) TableName() string { return "chat_thread" }

func (t *ChatThread) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.LastMessageAt.IsZero() {
		t.LastMessageAt = time.Now().UTC()
	}
	return nil
}
