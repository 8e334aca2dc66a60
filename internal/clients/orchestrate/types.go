package orchestrate

import "encoding/json"

// SourceRef is a knowledge-base citation surfaced by the agent service.
type SourceRef struct {
	Title    string `json:"title,omitempty"`
	Name     string `json:"name,omitempty"`
	ID       string `json:"id,omitempty"`
	FileName string `json:"file_name,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Key is the identity used for de-duplication: id, then title, name,
// file_name. An empty key never matches another entry.
func (s SourceRef) Key() string {
	for _, v := range []string{s.ID, s.Title, s.Name, s.FileName} {
		if v != "" {
			return v
		}
	}
	return ""
}

type ChunkKind string

const (
	ChunkContent ChunkKind = "content"
	ChunkSources ChunkKind = "sources"
	ChunkDone    ChunkKind = "done"
)

// Chunk is one normalized item of a run stream. Text is set for content,
// Sources for sources and ThreadID (possibly empty) for done.
type Chunk struct {
	Kind     ChunkKind
	Text     string
	Sources  []SourceRef
	ThreadID string
}

// RunRequest opens one streamed run against an agent.
type RunRequest struct {
	AgentID  string
	Content  string
	ThreadID string
}

type runMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runBody struct {
	Message  runMessage `json:"message"`
	AgentID  string     `json:"agent_id"`
	ThreadID string     `json:"thread_id,omitempty"`
}

// Agent is the list-view projection of an agent.
type Agent struct {
	AgentID     string `json:"agent_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AgentDetail adds the linked knowledge bases and descriptive fields.
type AgentDetail struct {
	Agent
	KnowledgeBase []string        `json:"knowledge_base"`
	TenantID      string          `json:"tenant_id,omitempty"`
	Instructions  string          `json:"instructions,omitempty"`
	Tools         json.RawMessage `json:"tools,omitempty"`
	LLM           string          `json:"llm,omitempty"`
	CreatedOn     string          `json:"created_on,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

// agentAPI is the wire shape returned by the agents endpoints.
type agentAPI struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	DisplayName   string          `json:"display_name"`
	Description   string          `json:"description"`
	TenantID      string          `json:"tenant_id"`
	Instructions  string          `json:"instructions"`
	Tools         json.RawMessage `json:"tools"`
	KnowledgeBase []string        `json:"knowledge_base"`
	LLM           string          `json:"llm"`
	CreatedOn     string          `json:"created_on"`
	UpdatedAt     string          `json:"updated_at"`
}

func (a agentAPI) summary() Agent {
	name := a.DisplayName
	if name == "" {
		name = a.Name
	}
	return Agent{AgentID: a.ID, Name: name, Description: a.Description}
}

func (a agentAPI) detail() *AgentDetail {
	kb := a.KnowledgeBase
	if kb == nil {
		kb = []string{}
	}
	return &AgentDetail{
		Agent:         a.summary(),
		KnowledgeBase: kb,
		TenantID:      a.TenantID,
		Instructions:  a.Instructions,
		Tools:         a.Tools,
		LLM:           a.LLM,
		CreatedOn:     a.CreatedOn,
		UpdatedAt:     a.UpdatedAt,
	}
}

type VectorIndex struct {
	Status        string `json:"status"`
	StatusMsg     string `json:"status_msg,omitempty"`
	DocumentCount int    `json:"document_count,omitempty"`
	EmbedModel    string `json:"embedding_model,omitempty"`
}

type DocumentMetadata struct {
	FileSize         int64  `json:"file_size,omitempty"`
	OriginalFileName string `json:"original_file_name,omitempty"`
	CreatedOn        string `json:"created_on,omitempty"`
	URL              string `json:"url,omitempty"`
	SourceURL        string `json:"source_url,omitempty"`
}

type KnowledgeBaseDocument struct {
	ID       string            `json:"id,omitempty"`
	Name     string            `json:"name,omitempty"`
	Size     int64             `json:"size,omitempty"`
	Type     string            `json:"type,omitempty"`
	Status   string            `json:"status,omitempty"`
	Metadata *DocumentMetadata `json:"metadata,omitempty"`
}

type KnowledgeBase struct {
	ID          string                  `json:"id"`
	TenantID    string                  `json:"tenant_id,omitempty"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	VectorIndex *VectorIndex            `json:"vector_index,omitempty"`
	Documents   []KnowledgeBaseDocument `json:"documents,omitempty"`
	CreatedOn   string                  `json:"created_on,omitempty"`
	UpdatedAt   string                  `json:"updated_at,omitempty"`
}

type KnowledgeBaseStatus struct {
	ID                     string                  `json:"id"`
	Name                   string                  `json:"name,omitempty"`
	Description            string                  `json:"description,omitempty"`
	PrioritizeBuiltInIndex bool                    `json:"prioritize_built_in_index,omitempty"`
	Ready                  bool                    `json:"ready,omitempty"`
	BuiltInIndexStatus     string                  `json:"built_in_index_status,omitempty"`
	BuiltInIndexStatusMsg  string                  `json:"built_in_index_status_msg,omitempty"`
	Documents              []KnowledgeBaseDocument `json:"documents,omitempty"`
}

// DocumentDisplay is the human label and optional link for a cited document.
type DocumentDisplay struct {
	DisplayName string
	URL         string
}
