package services

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/yungbote/agentdesk-backend/internal/platform/apierr"
)

// ChatRequest is the validated form of a POST /api/chat body.
type ChatRequest struct {
	AgentID   string
	ThreadID  string
	AgentName string
	HighRisk  bool
	// Content is the text of the last user message.
	Content string
}

// ParseChatRequest decodes and validates a chat body. Routing fields may sit
// at the top level or under "data"; the top level wins.
func ParseChatRequest(raw []byte) (*ChatRequest, error) {
	if !gjson.ValidBytes(raw) {
		return nil, apierr.InvalidRequest("Invalid JSON body")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, apierr.InvalidRequest("Invalid JSON body")
	}
	data := root.Get("data")

	req := &ChatRequest{
		AgentID:   pickField(root, data, "agentId").String(),
		ThreadID:  strings.TrimSpace(pickField(root, data, "threadId").String()),
		AgentName: pickField(root, data, "agentName").String(),
		HighRisk:  pickField(root, data, "highRisk").Bool(),
	}
	if req.AgentID == "" {
		return nil, apierr.InvalidRequest("Missing agentId")
	}

	messages := root.Get("messages")
	if present(messages) && !messages.IsArray() {
		return nil, apierr.InvalidRequest("messages must be an array")
	}
	list := messages.Array()
	if len(list) == 0 {
		return nil, apierr.InvalidRequest("Missing or empty messages")
	}

	var lastUser gjson.Result
	found := false
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Get("role").String() == "user" {
			lastUser, found = list[i], true
			break
		}
	}
	if !found {
		return nil, apierr.InvalidRequest("No user message in messages")
	}

	req.Content = messageText(lastUser.Get("content"))
	if strings.TrimSpace(req.Content) == "" {
		return nil, apierr.InvalidRequest("No user message content")
	}
	return req, nil
}

// pickField returns root.key when set (null counts as unset), else data.key.
func pickField(root, data gjson.Result, key string) gjson.Result {
	if v := root.Get(key); present(v) {
		return v
	}
	return data.Get(key)
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

// messageText accepts a plain string or a list of typed parts, of which only
// "text" parts contribute (text, then content).
func messageText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if !content.IsArray() {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Array() {
		if part.Get("type").String() != "text" {
			continue
		}
		if t := part.Get("text"); present(t) {
			b.WriteString(t.String())
			continue
		}
		b.WriteString(part.Get("content").String())
	}
	return b.String()
}
