package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/agentdesk-backend/internal/data/repos"
	types "github.com/yungbote/agentdesk-backend/internal/domain/chat"
	"github.com/yungbote/agentdesk-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

// ThreadSummary is one row of the thread history sidebar.
type ThreadSummary struct {
	ID               string    `json:"id"`
	AgentID          string    `json:"agentId"`
	AgentName        *string   `json:"agentName"`
	UpstreamThreadID *string   `json:"upstreamThreadId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	MessageCount     int64     `json:"messageCount"`
	FirstUserMessage *string   `json:"firstUserMessage"`
}

type ThreadView struct {
	ID               string    `json:"id"`
	AgentID          string    `json:"agentId"`
	AgentName        *string   `json:"agentName"`
	UpstreamThreadID *string   `json:"upstreamThreadId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type MessageView struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  *types.MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

type ChatThreadService interface {
	ListThreads(ctx context.Context, userID, agentID string) ([]ThreadSummary, error)
	GetThread(ctx context.Context, userID, threadID string) (*ThreadView, []MessageView, error)
	DeleteThread(ctx context.Context, userID, threadID string) error
}

type chatThreadService struct {
	db       *gorm.DB
	log      *logger.Logger
	threads  repos.ChatThreadRepo
	messages repos.ChatMessageRepo
}

func NewChatThreadService(db *gorm.DB, baseLog *logger.Logger, threads repos.ChatThreadRepo, messages repos.ChatMessageRepo) ChatThreadService {
	return &chatThreadService{
		db:       db,
		log:      baseLog.With("service", "ChatThreadService"),
		threads:  threads,
		messages: messages,
	}
}

func (s *chatThreadService) ListThreads(ctx context.Context, userID, agentID string) ([]ThreadSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apierr.Unauthorized("Unauthorized")
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.threads.ListByUser(dbc, userID, agentID, 0)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("list threads: %w", err))
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, t := range rows {
		ids = append(ids, t.ID)
	}
	counts, err := s.messages.CountByThreadIDs(dbc, ids)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("count messages: %w", err))
	}
	previews, err := s.messages.FirstUserContentByThreadIDs(dbc, ids)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("load previews: %w", err))
	}

	out := make([]ThreadSummary, 0, len(rows))
	for _, t := range rows {
		sum := ThreadSummary{
			ID:               t.ID.String(),
			AgentID:          t.AgentID,
			AgentName:        t.AgentName,
			UpstreamThreadID: t.UpstreamThreadID,
			CreatedAt:        t.CreatedAt,
			UpdatedAt:        t.UpdatedAt,
			MessageCount:     counts[t.ID],
		}
		if p, ok := previews[t.ID]; ok {
			sum.FirstUserMessage = &p
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *chatThreadService) GetThread(ctx context.Context, userID, threadID string) (*ThreadView, []MessageView, error) {
	thread, err := s.owned(dbctx.Context{Ctx: ctx}, userID, threadID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.messages.ListByThread(dbctx.Context{Ctx: ctx}, thread.ID, 0)
	if err != nil {
		return nil, nil, apierr.Internal(fmt.Errorf("list messages: %w", err))
	}
	msgs := make([]MessageView, 0, len(rows))
	for _, m := range rows {
		mv := MessageView{
			ID:        m.ID.String(),
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		if meta := decodeMetadata(m.Metadata); meta != nil {
			mv.Metadata = meta
		}
		msgs = append(msgs, mv)
	}
	view := &ThreadView{
		ID:               thread.ID.String(),
		AgentID:          thread.AgentID,
		AgentName:        thread.AgentName,
		UpstreamThreadID: thread.UpstreamThreadID,
		CreatedAt:        thread.CreatedAt,
		UpdatedAt:        thread.UpdatedAt,
	}
	return view, msgs, nil
}

// DeleteThread removes the thread and its messages in one transaction.
func (s *chatThreadService) DeleteThread(ctx context.Context, userID, threadID string) error {
	thread, err := s.owned(dbctx.Context{Ctx: ctx}, userID, threadID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.messages.DeleteByThreadID(dbc, thread.ID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		deleted, err := s.threads.Delete(dbc, thread.ID)
		if err != nil {
			return fmt.Errorf("delete thread: %w", err)
		}
		if !deleted {
			return apierr.NotFound("Thread not found")
		}
		return nil
	})
	if err != nil {
		if ae := apierr.As(err); ae.Code == apierr.CodeNotFound {
			return ae
		}
		return apierr.Internal(err)
	}
	s.log.Info("thread deleted", "thread_id", thread.ID.String(), "user_id", userID)
	return nil
}

// owned loads a thread the caller owns. Malformed, missing and foreign ids
// all read as not found.
func (s *chatThreadService) owned(dbc dbctx.Context, userID, threadID string) (*types.ChatThread, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apierr.Unauthorized("Unauthorized")
	}
	id, err := uuid.Parse(strings.TrimSpace(threadID))
	if err != nil {
		return nil, apierr.NotFound("Thread not found")
	}
	thread, err := s.threads.GetOwned(dbc, userID, id)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("load thread: %w", err))
	}
	if thread == nil {
		return nil, apierr.NotFound("Thread not found")
	}
	return thread, nil
}

func decodeMetadata(raw []byte) *types.MessageMetadata {
	if len(raw) == 0 {
		return nil
	}
	var meta types.MessageMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}
	if len(meta.Sources) == 0 && meta.Verified == nil && meta.RunID == "" {
		return nil
	}
	return &meta
}
