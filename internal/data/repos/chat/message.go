package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/agentdesk-backend/internal/domain/chat"
	"github.com/yungbote/agentdesk-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

type ChatMessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.ChatMessage) ([]*types.ChatMessage, error)
	ListByThread(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error)
	CountByThreadIDs(dbc dbctx.Context, threadIDs []uuid.UUID) (map[uuid.UUID]int64, error)
	FirstUserContentByThreadIDs(dbc dbctx.Context, threadIDs []uuid.UUID) (map[uuid.UUID]string, error)
	DeleteByThreadID(dbc dbctx.Context, threadID uuid.UUID) error
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, log *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: log.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Create(dbc dbctx.Context, rows []*types.ChatMessage) ([]*types.ChatMessage, error) {
	if len(rows) == 0 {
		return []*types.ChatMessage{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

// ListByThread returns messages in sequence order. limit <= 0 means all.
func (r *chatMessageRepo) ListByThread(dbc dbctx.Context, threadID uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id")
	}
	q := dbc.DB(r.db).
		Where("thread_id = ?", threadID).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ChatMessage
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatMessageRepo) CountByThreadIDs(dbc dbctx.Context, threadIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ThreadID uuid.UUID
		N        int64
	}
	if err := dbc.DB(r.db).
		Model(&types.ChatMessage{}).
		Select("thread_id, COUNT(*) AS n").
		Where("thread_id IN ?", threadIDs).
		Group("thread_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ThreadID] = row.N
	}
	return out, nil
}

// FirstUserContentByThreadIDs returns the opening user message per thread,
// used as the thread preview.
func (r *chatMessageRepo) FirstUserContentByThreadIDs(dbc dbctx.Context, threadIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ThreadID uuid.UUID
		Content  string
	}
	if err := dbc.DB(r.db).
		Model(&types.ChatMessage{}).
		Select("thread_id, content").
		Where("thread_id IN ? AND role = ?", threadIDs, types.RoleUser).
		Where("seq = (SELECT MIN(m2.seq) FROM chat_message m2 WHERE m2.thread_id = chat_message.thread_id AND m2.role = ?)", types.RoleUser).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ThreadID] = row.Content
	}
	return out, nil
}

func (r *chatMessageRepo) DeleteByThreadID(dbc dbctx.Context, threadID uuid.UUID) error {
	if threadID == uuid.Nil {
		return fmt.Errorf("missing thread_id")
	}
	return dbc.DB(r.db).Where("thread_id = ?", threadID).Delete(&types.ChatMessage{}).Error
}
