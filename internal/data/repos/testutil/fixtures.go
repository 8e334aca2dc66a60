package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/agentdesk-backend/internal/domain/chat"
)

func SeedThread(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, agentID string) *types.ChatThread {
	tb.Helper()
	th := &types.ChatThread{
		UserID:  userID,
		AgentID: agentID,
	}
	if err := tx.WithContext(ctx).Create(th).Error; err != nil {
		tb.Fatalf("seed thread: %v", err)
	}
	return th
}

// SeedMessages appends alternating user/assistant messages to th and bumps its
// next_seq to match.
func SeedMessages(tb testing.TB, ctx context.Context, tx *gorm.DB, th *types.ChatThread, contents ...string) []*types.ChatMessage {
	tb.Helper()
	out := make([]*types.ChatMessage, 0, len(contents))
	for _, c := range contents {
		role := types.RoleUser
		if th.NextSeq%2 == 1 {
			role = types.RoleAssistant
		}
		m := &types.ChatMessage{
			ThreadID: th.ID,
			Seq:      th.NextSeq,
			Role:     role,
			Content:  c,
		}
		if err := tx.WithContext(ctx).Create(m).Error; err != nil {
			tb.Fatalf("seed message: %v", err)
		}
		th.NextSeq++
		out = append(out, m)
	}
	if err := tx.WithContext(ctx).Model(&types.ChatThread{}).
		Where("id = ?", th.ID).
		Update("next_seq", th.NextSeq).Error; err != nil {
		tb.Fatalf("bump next_seq: %v", err)
	}
	return out
}

func SeedAssistantMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, th *types.ChatThread, content, metadata string) *types.ChatMessage {
	tb.Helper()
	m := &types.ChatMessage{
		ThreadID: th.ID,
		Seq:      th.NextSeq,
		Role:     types.RoleAssistant,
		Content:  content,
		Metadata: datatypes.JSON(metadata),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed assistant message: %v", err)
	}
	th.NextSeq++
	return m
}

func PtrString(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
