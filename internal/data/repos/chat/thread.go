package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/agentdesk-backend/internal/domain/chat"
	"github.com/yungbote/agentdesk-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

const (
	DefaultThreadListLimit = 50
	maxThreadListLimit     = 200
)

type ChatThreadRepo interface {
	Create(dbc dbctx.Context, rows []*types.ChatThread) ([]*types.ChatThread, error)
	// GetOwned returns nil, nil when the thread is missing or belongs to
	// someone else.
	GetOwned(dbc dbctx.Context, userID string, id uuid.UUID) (*types.ChatThread, error)
	ListByUser(dbc dbctx.Context, userID, agentID string, limit int) ([]*types.ChatThread, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatThread, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type chatThreadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatThreadRepo(db *gorm.DB, log *logger.Logger) ChatThreadRepo {
	return &chatThreadRepo{db: db, log: log.With("repo", "ChatThreadRepo")}
}

func (r *chatThreadRepo) Create(dbc dbctx.Context, rows []*types.ChatThread) ([]*types.ChatThread, error) {
	if len(rows) == 0 {
		return []*types.ChatThread{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (r *chatThreadRepo) GetOwned(dbc dbctx.Context, userID string, id uuid.UUID) (*types.ChatThread, error) {
	if id == uuid.Nil || strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	var out types.ChatThread
	err := dbc.DB(r.db).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *chatThreadRepo) ListByUser(dbc dbctx.Context, userID, agentID string, limit int) ([]*types.ChatThread, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > maxThreadListLimit {
		limit = DefaultThreadListLimit
	}
	q := dbc.DB(r.db).
		Model(&types.ChatThread{}).
		Where("user_id = ?", userID)
	if agentID = strings.TrimSpace(agentID); agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	var out []*types.ChatThread
	if err := q.Order("updated_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chatThreadRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatThread, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID required dbc.Tx")
	}
	var out types.ChatThread
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *chatThreadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	return dbc.DB(r.db).
		Model(&types.ChatThread{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *chatThreadRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.ChatThread{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
