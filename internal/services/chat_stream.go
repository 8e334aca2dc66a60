package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/agentdesk-backend/internal/agui"
	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	"github.com/yungbote/agentdesk-backend/internal/data/repos"
	types "github.com/yungbote/agentdesk-backend/internal/domain/chat"
	"github.com/yungbote/agentdesk-backend/internal/observability"
	"github.com/yungbote/agentdesk-backend/internal/pkg/dbctx"
	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

const (
	DefaultVerifierAgentName = "Response Verifier"
	DefaultVerifierTimeout   = 90 * time.Second
	DefaultCitationTimeout   = 10 * time.Second
)

// ErrClientGone is returned by Run when the caller went away mid-stream.
var ErrClientGone = errors.New("chat: client disconnected")

type ChatStreamConfig struct {
	VerifierAgentName string        `yaml:"verifier_agent_name"`
	VerifierTimeout   time.Duration `yaml:"verifier_timeout"`
	CitationTimeout   time.Duration `yaml:"citation_timeout"`
}

func (c ChatStreamConfig) withDefaults() ChatStreamConfig {
	if strings.TrimSpace(c.VerifierAgentName) == "" {
		c.VerifierAgentName = DefaultVerifierAgentName
	}
	if c.VerifierTimeout <= 0 {
		c.VerifierTimeout = DefaultVerifierTimeout
	}
	if c.CitationTimeout <= 0 {
		c.CitationTimeout = DefaultCitationTimeout
	}
	return c
}

type ChatTurnState string

const (
	TurnValidating         ChatTurnState = "validating"
	TurnOpening            ChatTurnState = "opening"
	TurnStreaming          ChatTurnState = "streaming"
	TurnVerifying          ChatTurnState = "verifying"
	TurnResolvingCitations ChatTurnState = "resolving_citations"
	TurnFinalizing         ChatTurnState = "finalizing"
	TurnPersisted          ChatTurnState = "persisted"
	TurnErrored            ChatTurnState = "errored"
	TurnClosed             ChatTurnState = "closed"
)

// Turn outcomes as recorded in agentdesk_chat_turns_total.
const (
	outcomeCompleted  = "completed"
	outcomeErrored    = "errored"
	outcomeCancelled  = "cancelled"
	outcomeOpenFailed = "open_failed"
)

// ChatTurn is one accepted chat request with its upstream stream open.
// Begin produces it; Run consumes it exactly once.
type ChatTurn struct {
	UserID  string
	Request *ChatRequest
	// Thread is nil when the turn starts a new conversation.
	Thread *types.ChatThread

	upstreamThreadID string
	stream           orchestrate.ChunkStream
	state            ChatTurnState
	started          time.Time
	log              *logger.Logger
}

func (t *ChatTurn) State() ChatTurnState { return t.state }

// Close releases the upstream stream. Safe to call more than once.
func (t *ChatTurn) Close() {
	if t != nil && t.stream != nil {
		_ = t.stream.Close()
	}
}

func (t *ChatTurn) transition(to ChatTurnState) {
	if t.log != nil {
		t.log.Debug("chat turn state", "from", string(t.state), "to", string(to))
	}
	t.state = to
}

type ChatStreamService interface {
	// Begin validates the request, resolves the thread and opens the upstream
	// run. Every error it returns is an *apierr.Error and happens before any
	// response byte is written.
	Begin(ctx context.Context, userID string, body []byte) (*ChatTurn, error)
	// Run relays the turn to sink, appends verification and citations, and
	// persists the exchange.
	Run(ctx context.Context, turn *ChatTurn, sink agui.Sink) error
}

type chatStreamService struct {
	db       *gorm.DB
	log      *logger.Logger
	upstream Upstream
	threads  repos.ChatThreadRepo
	messages repos.ChatMessageRepo
	cfg      ChatStreamConfig
	now      func() time.Time
}

func NewChatStreamService(
	db *gorm.DB,
	baseLog *logger.Logger,
	upstream Upstream,
	threads repos.ChatThreadRepo,
	messages repos.ChatMessageRepo,
	cfg ChatStreamConfig,
) ChatStreamService {
	return &chatStreamService{
		db:       db,
		log:      baseLog.With("service", "ChatStreamService"),
		upstream: upstream,
		threads:  threads,
		messages: messages,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

func (s *chatStreamService) Begin(ctx context.Context, userID string, body []byte) (*ChatTurn, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apierr.Unauthorized("Unauthorized")
	}
	if s.upstream == nil || !s.upstream.Configured() {
		return nil, apierr.NotConfigured("upstream not configured")
	}
	turn := &ChatTurn{
		UserID:  userID,
		state:   TurnValidating,
		started: s.now(),
		log:     s.log.With("user_id", userID),
	}

	req, err := ParseChatRequest(body)
	if err != nil {
		s.log.Debug("chat request rejected", "user_id", userID, "error", err)
		return nil, err
	}
	turn.Request = req
	turn.log = turn.log.With("agent_id", req.AgentID)

	if req.ThreadID != "" {
		id, perr := uuid.Parse(req.ThreadID)
		if perr != nil {
			return nil, apierr.NotFound("Thread not found")
		}
		thread, err := s.threads.GetOwned(dbctx.Context{Ctx: ctx}, userID, id)
		if err != nil {
			return nil, apierr.Internal(fmt.Errorf("load thread: %w", err))
		}
		if thread == nil {
			return nil, apierr.NotFound("Thread not found")
		}
		turn.Thread = thread
		if thread.UpstreamThreadID != nil {
			turn.upstreamThreadID = *thread.UpstreamThreadID
		}
		turn.log = turn.log.With("thread_id", thread.ID.String())
	}

	turn.transition(TurnOpening)
	stream, err := s.upstream.StartRun(ctx, orchestrate.RunRequest{
		AgentID:  req.AgentID,
		Content:  req.Content,
		ThreadID: turn.upstreamThreadID,
	})
	if err != nil {
		turn.transition(TurnErrored)
		turn.transition(TurnClosed)
		observability.Current().ObserveChatTurn(outcomeOpenFailed, time.Since(turn.started))
		if errors.Is(err, orchestrate.ErrNotConfigured) {
			return nil, apierr.NotConfigured("upstream not configured")
		}
		turn.log.Warn("upstream run open failed", "error", err)
		return nil, apierr.UpstreamOpen(err)
	}
	turn.stream = stream
	return turn, nil
}

// turnRun carries the mutable state of one Run.
type turnRun struct {
	em       *agui.Emitter
	answer   strings.Builder
	sources  []orchestrate.SourceRef
	verified *bool
	cited    []types.MessageSource
}

// emit appends block to the answer and sends one CONTENT frame for it.
func (r *turnRun) emit(block string) error {
	if block == "" {
		return nil
	}
	r.answer.WriteString(block)
	return r.em.TextContent(block, r.answer.String())
}

func (s *chatStreamService) Run(ctx context.Context, turn *ChatTurn, sink agui.Sink) error {
	defer turn.Close()

	ctx, span := observability.Tracer().Start(ctx, "chat.turn")
	span.SetAttributes(attribute.String("agent_id", turn.Request.AgentID))
	defer span.End()

	run := &turnRun{em: agui.NewEmitter(sink)}
	outcome := outcomeCompleted
	defer func() {
		turn.transition(TurnClosed)
		observability.Current().ObserveChatTurn(outcome, time.Since(turn.started))
	}()

	// gone handles a failed write or a cancelled request: nothing more is
	// written and nothing is persisted.
	gone := func(stage string, cause error) error {
		outcome = outcomeCancelled
		turn.log.Info("client disconnected", "stage", stage, "error", cause)
		return fmt.Errorf("%w: %v", ErrClientGone, cause)
	}
	// fail reports the error to the client in a single error frame.
	fail := func(stage, msg string, cause error) error {
		if ctx.Err() != nil {
			return gone(stage, ctx.Err())
		}
		outcome = outcomeErrored
		turn.transition(TurnErrored)
		span.RecordError(cause)
		span.SetStatus(codes.Error, stage)
		turn.log.Error("chat turn failed", "stage", stage, "error", cause)
		if werr := run.em.Error(msg); werr != nil {
			turn.log.Debug("error frame not delivered", "error", werr)
		}
		return cause
	}

	turn.transition(TurnStreaming)
	if err := run.em.RunStarted(); err != nil {
		return gone("start", err)
	}
	if err := run.em.TextStart(); err != nil {
		return gone("start", err)
	}

	for {
		chunk, rerr := turn.stream.Recv()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fail("stream", rerr.Error(), rerr)
		}
		switch chunk.Kind {
		case orchestrate.ChunkContent:
			if chunk.Text == "" {
				continue
			}
			if err := run.emit(chunk.Text); err != nil {
				return gone("stream", err)
			}
		case orchestrate.ChunkSources:
			run.sources = append(run.sources, chunk.Sources...)
		case orchestrate.ChunkDone:
			if chunk.ThreadID != "" {
				turn.upstreamThreadID = chunk.ThreadID
			}
		}
	}
	_ = turn.stream.Close()
	if ctx.Err() != nil {
		return gone("stream", ctx.Err())
	}

	if turn.Request.HighRisk && run.answer.Len() > 0 {
		turn.transition(TurnVerifying)
		note, verr := s.verify(ctx, turn, run.answer.String())
		if verr != nil {
			return fail("verify", "verification failed", verr)
		}
		if note != "" {
			ok := strings.HasPrefix(strings.ToUpper(note), "VERIFIED")
			run.verified = &ok
			if err := run.emit(verificationPrefix + note); err != nil {
				return gone("verify", err)
			}
		}
	}
	if ctx.Err() != nil {
		return gone("verify", ctx.Err())
	}

	turn.transition(TurnResolvingCitations)
	var hasKB bool
	run.cited, hasKB = s.resolveCitations(ctx, turn, run.sources)
	if err := run.emit(renderCitations(run.cited, hasKB)); err != nil {
		return gone("citations", err)
	}

	turn.transition(TurnFinalizing)
	if err := run.em.TextEnd(); err != nil {
		return gone("finalize", err)
	}
	if err := run.em.RunFinished(); err != nil {
		return gone("finalize", err)
	}
	if ctx.Err() != nil {
		return gone("finalize", ctx.Err())
	}

	meta := types.MessageMetadata{Sources: run.cited, Verified: run.verified, RunID: run.em.RunID()}
	threadID, perr := s.persist(ctx, turn, run.answer.String(), meta)
	if perr != nil {
		return fail("persist", "failed to save conversation", perr)
	}
	turn.transition(TurnPersisted)
	turn.log.Debug("chat turn persisted", "thread_id", threadID.String(), "answer_chars", run.answer.Len())

	if err := run.em.Metadata(threadID.String()); err != nil {
		return gone("metadata", err)
	}
	if err := run.em.Done(); err != nil {
		return gone("done", err)
	}
	return nil
}

// verify runs the verifier agent over the answer and returns its trimmed
// reply, or "" when no verifier agent exists.
func (s *chatStreamService) verify(ctx context.Context, turn *ChatTurn, answer string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.VerifierTimeout)
	defer cancel()

	agent, err := s.upstream.FindAgentByName(ctx, s.cfg.VerifierAgentName)
	if err != nil {
		return "", fmt.Errorf("find verifier agent: %w", err)
	}
	if agent == nil {
		turn.log.Debug("verifier agent not found", "name", s.cfg.VerifierAgentName)
		return "", nil
	}
	stream, err := s.upstream.StartRun(ctx, orchestrate.RunRequest{
		AgentID: agent.AgentID,
		Content: verifierPrompt(turn.Request.Content, answer),
	})
	if err != nil {
		return "", fmt.Errorf("open verifier run: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read verifier run: %w", err)
		}
		if chunk.Kind == orchestrate.ChunkContent {
			b.WriteString(chunk.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// resolveCitations never fails: lookup errors degrade to unresolved labels.
func (s *chatStreamService) resolveCitations(ctx context.Context, turn *ChatTurn, sources []orchestrate.SourceRef) ([]types.MessageSource, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CitationTimeout)
	defer cancel()

	var kbIDs []string
	agent, err := s.upstream.GetAgent(ctx, turn.Request.AgentID)
	if err != nil {
		turn.log.Warn("agent lookup for citations failed", "error", err)
	} else if agent != nil {
		kbIDs = agent.KnowledgeBase
	}
	hasKB := len(kbIDs) > 0

	unique := dedupeSources(sources)
	if len(unique) == 0 {
		return nil, hasKB
	}
	display := map[string]orchestrate.DocumentDisplay{}
	if hasKB {
		display = s.upstream.DocumentDisplayMap(ctx, kbIDs)
	}
	return citationEntries(unique, display), hasKB
}

// persist writes the exchange in one transaction and returns the local
// thread id.
func (s *chatStreamService) persist(ctx context.Context, turn *ChatTurn, answer string, meta types.MessageMetadata) (uuid.UUID, error) {
	var threadID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := s.now().UTC()

		var thread *types.ChatThread
		if turn.Thread == nil {
			created, err := s.threads.Create(dbc, []*types.ChatThread{{
				UserID:           turn.UserID,
				AgentID:          turn.Request.AgentID,
				AgentName:        optionalString(turn.Request.AgentName),
				UpstreamThreadID: optionalString(turn.upstreamThreadID),
				LastMessageAt:    now,
			}})
			if err != nil {
				return fmt.Errorf("create thread: %w", err)
			}
			thread = created[0]
		} else {
			locked, err := s.threads.LockByID(dbc, turn.Thread.ID)
			if err != nil {
				return fmt.Errorf("lock thread: %w", err)
			}
			thread = locked
		}

		seq := thread.NextSeq
		rows := []*types.ChatMessage{{
			ThreadID:  thread.ID,
			Seq:       seq,
			Role:      types.RoleUser,
			Content:   turn.Request.Content,
			CreatedAt: now,
		}}
		if answer != "" {
			raw, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("encode message metadata: %w", err)
			}
			seq++
			rows = append(rows, &types.ChatMessage{
				ThreadID:  thread.ID,
				Seq:       seq,
				Role:      types.RoleAssistant,
				Content:   answer,
				Metadata:  datatypes.JSON(raw),
				CreatedAt: now,
			})
		}
		if _, err := s.messages.Create(dbc, rows); err != nil {
			return fmt.Errorf("create messages: %w", err)
		}

		updates := map[string]interface{}{
			"next_seq":        seq + 1,
			"last_message_at": now,
		}
		if turn.Thread != nil && turn.upstreamThreadID != "" &&
			(thread.UpstreamThreadID == nil || *thread.UpstreamThreadID == "") {
			updates["upstream_thread_id"] = turn.upstreamThreadID
		}
		if err := s.threads.UpdateFields(dbc, thread.ID, updates); err != nil {
			return fmt.Errorf("update thread: %w", err)
		}
		threadID = thread.ID
		return nil
	})
	return threadID, err
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
