package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is immutable once written.
type ChatMessage struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ThreadID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_chat_message_thread_seq,unique,priority:1" json:"thread_id"`

	Seq int64 `gorm:"column:seq;not null;index:idx_chat_message_thread_seq,unique,priority:2" json:"seq"`

	Role    string `gorm:"column:role;not null;index" json:"role"`
	Content string `gorm:"column:content;type:text;not null;default:''" json:"content"`

	// Metadata holds cited sources and the verification flag for assistant
	// messages.
	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

func (m *ChatMessage) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if len(m.Metadata) == 0 {
		m.Metadata = datatypes.JSON("{}")
	}
	return nil
}

// MessageMetadata is the decoded form of ChatMessage.Metadata.
type MessageMetadata struct {
	Sources  []MessageSource `json:"sources,omitempty"`
	Verified *bool           `json:"verified,omitempty"`
	RunID    string          `json:"run_id,omitempty"`
}

type MessageSource struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}
