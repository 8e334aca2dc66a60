package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/yungbote/agentdesk-backend/internal/agui"
	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
)

type fakeStream struct {
	chunks []orchestrate.Chunk
	err    error
	i      int
	closed int
}

func (f *fakeStream) Recv() (orchestrate.Chunk, error) {
	if f.i < len(f.chunks) {
		c := f.chunks[f.i]
		f.i++
		return c, nil
	}
	if f.err != nil {
		return orchestrate.Chunk{}, f.err
	}
	return orchestrate.Chunk{}, io.EOF
}

func (f *fakeStream) Close() error {
	f.closed++
	return nil
}

// fakeUpstream scripts the agent service. Runs are keyed by agent id.
type fakeUpstream struct {
	mu sync.Mutex

	configured bool
	runs       map[string][]orchestrate.Chunk
	runErrs    map[string]error
	streamErrs map[string]error
	openErr    error

	agents   []orchestrate.Agent
	details  map[string]*orchestrate.AgentDetail
	kbs      map[string]*orchestrate.KnowledgeBase
	statuses map[string]*orchestrate.KnowledgeBaseStatus
	display  map[string]orchestrate.DocumentDisplay

	requests   []orchestrate.RunRequest
	streams    []*fakeStream
	updates    [][]string
	deletedKBs []string
	deletedDoc map[string][]string
	listErr    error
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		configured: true,
		runs:       map[string][]orchestrate.Chunk{},
		runErrs:    map[string]error{},
		streamErrs: map[string]error{},
		details:    map[string]*orchestrate.AgentDetail{},
		kbs:        map[string]*orchestrate.KnowledgeBase{},
		statuses:   map[string]*orchestrate.KnowledgeBaseStatus{},
		display:    map[string]orchestrate.DocumentDisplay{},
		deletedDoc: map[string][]string{},
	}
}

func (f *fakeUpstream) Configured() bool { return f.configured }

func (f *fakeUpstream) StartRun(ctx context.Context, r orchestrate.RunRequest) (orchestrate.ChunkStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	if f.openErr != nil {
		return nil, f.openErr
	}
	if err := f.runErrs[r.AgentID]; err != nil {
		return nil, err
	}
	s := &fakeStream{
		chunks: append([]orchestrate.Chunk(nil), f.runs[r.AgentID]...),
		err:    f.streamErrs[r.AgentID],
	}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeUpstream) ListAgents(ctx context.Context) ([]orchestrate.Agent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.agents, nil
}

func (f *fakeUpstream) FindAgentByName(ctx context.Context, name string) (*orchestrate.Agent, error) {
	for i := range f.agents {
		if f.agents[i].Name == name {
			return &f.agents[i], nil
		}
	}
	return nil, nil
}

func (f *fakeUpstream) GetAgent(ctx context.Context, agentID string) (*orchestrate.AgentDetail, error) {
	if agentID == "broken" {
		return nil, errors.New("agent service unavailable")
	}
	d, ok := f.details[agentID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeUpstream) UpdateAgentKnowledgeBases(ctx context.Context, agentID string, kbIDs []string) (*orchestrate.AgentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, kbIDs)
	d, ok := f.details[agentID]
	if !ok {
		return nil, errors.New("agent not found")
	}
	d.KnowledgeBase = kbIDs
	cp := *d
	return &cp, nil
}

func (f *fakeUpstream) GetKnowledgeBaseWithDocuments(ctx context.Context, kbID string) (*orchestrate.KnowledgeBase, error) {
	return f.kbs[kbID], nil
}

func (f *fakeUpstream) GetKnowledgeBaseStatus(ctx context.Context, kbID string) (*orchestrate.KnowledgeBaseStatus, error) {
	return f.statuses[kbID], nil
}

func (f *fakeUpstream) ListKnowledgeBases(ctx context.Context) ([]orchestrate.KnowledgeBase, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []orchestrate.KnowledgeBase
	for _, kb := range f.kbs {
		out = append(out, *kb)
	}
	return out, nil
}

func (f *fakeUpstream) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kbs[kbID]; !ok {
		return &orchestrate.HTTPError{Endpoint: "knowledge_bases.delete", StatusCode: http.StatusNotFound}
	}
	delete(f.kbs, kbID)
	f.deletedKBs = append(f.deletedKBs, kbID)
	return nil
}

func (f *fakeUpstream) DeleteKnowledgeBaseDocuments(ctx context.Context, kbID string, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kbs[kbID]; !ok {
		return &orchestrate.HTTPError{Endpoint: "knowledge_bases.delete_documents", StatusCode: http.StatusNotFound}
	}
	f.deletedDoc[kbID] = append(f.deletedDoc[kbID], names...)
	return nil
}

func (f *fakeUpstream) DocumentDisplayMap(ctx context.Context, kbIDs []string) map[string]orchestrate.DocumentDisplay {
	return f.display
}

// recordSink captures frames. With failAt >= 0 every Send from that frame
// index on fails, as a closed connection would.
type recordSink struct {
	frames []any
	done   bool
	failAt int
}

func newRecordSink() *recordSink { return &recordSink{failAt: -1} }

func (r *recordSink) Send(frame any) error {
	if r.failAt >= 0 && len(r.frames) >= r.failAt {
		return errors.New("write: broken pipe")
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordSink) Done() error {
	if r.failAt >= 0 && len(r.frames) >= r.failAt {
		return errors.New("write: broken pipe")
	}
	r.done = true
	return nil
}

func (r *recordSink) types() []agui.EventType {
	out := make([]agui.EventType, 0, len(r.frames))
	for _, f := range r.frames {
		switch v := f.(type) {
		case agui.RunStarted:
			out = append(out, v.Type)
		case agui.TextMessageStart:
			out = append(out, v.Type)
		case agui.TextMessageContent:
			out = append(out, v.Type)
		case agui.TextMessageEnd:
			out = append(out, v.Type)
		case agui.RunFinished:
			out = append(out, v.Type)
		case agui.Metadata:
			out = append(out, v.Type)
		case agui.Error:
			out = append(out, v.Type)
		}
	}
	return out
}

func (r *recordSink) contents() []agui.TextMessageContent {
	var out []agui.TextMessageContent
	for _, f := range r.frames {
		if c, ok := f.(agui.TextMessageContent); ok {
			out = append(out, c)
		}
	}
	return out
}
