package orchestrate

import (
	"sync"

	"github.com/tidwall/gjson"

	"github.com/yungbote/agentdesk-backend/internal/observability"
	"github.com/yungbote/agentdesk-backend/internal/platform/logger"
)

// Upstream event tags.
const (
	eventMessageDelta      = "message.delta"
	eventMessageCompleted  = "message.completed"
	eventMessageStarted    = "message.started"
	eventRunStarted        = "run.started"
	eventRunCompleted      = "run.completed"
	eventRunFailed         = "run.failed"
	eventRunStepCompleted  = "run.step.completed"
	eventRunStepDelta      = "run.step.delta"
	eventRunStepIntermed   = "run.step.intermediate"
	eventRunStepThinking   = "run.step.thinking"
	eventDone              = "done"
	maxInvalidFramesLogged = 5
	maxUnwrapDepth         = 2

	// Distinct unknown tags tracked for logging and metric labels; anything
	// past the cap is folded into otherEventTag.
	maxUnknownTags = 64
	otherEventTag  = "other"
)

// Normalizer turns raw stream payloads into chunks and remembers the last
// upstream thread id it saw. It is not safe for concurrent use; one
// normalizer belongs to one stream.
type Normalizer struct {
	log      *logger.Logger
	threadID string
	frames   int
	invalid  int
}

var unknownTags = newTagSet(maxUnknownTags)

// tagSet remembers up to limit distinct tags.
type tagSet struct {
	mu       sync.Mutex
	limit    int
	seen     map[string]struct{}
	overflow bool
}

func newTagSet(limit int) *tagSet {
	return &tagSet{limit: limit, seen: make(map[string]struct{}, limit)}
}

// observe returns the label to record for tag and whether this is the first
// time that label has been reported.
func (t *tagSet) observe(tag string) (label string, first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[tag]; ok {
		return tag, false
	}
	if len(t.seen) < t.limit {
		t.seen[tag] = struct{}{}
		return tag, true
	}
	first = !t.overflow
	t.overflow = true
	return otherEventTag, first
}

func NewNormalizer(log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Normalizer{log: log}
}

// ThreadID is the most recent thread_id observed on the stream.
func (n *Normalizer) ThreadID() string { return n.threadID }

// Counts reports how many JSON object frames were classified and how many
// payloads were skipped as unparseable.
func (n *Normalizer) Counts() (frames, invalid int) { return n.frames, n.invalid }

// Normalize classifies one payload. Invalid JSON yields nothing.
func (n *Normalizer) Normalize(raw string) []Chunk {
	if !gjson.Valid(raw) {
		n.invalid++
		observability.Current().IncInvalidUpstreamFrame()
		if n.invalid <= maxInvalidFramesLogged {
			n.log.Debug("skipping unparseable upstream frame", "sample", truncate(raw, 100))
		}
		return nil
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return nil
	}
	n.frames++

	data := root.Get("data")
	if tid := firstPlainString(root.Get("thread_id"), data.Get("thread_id")); tid != "" {
		n.threadID = tid
	}

	event := root.Get("event")
	if !event.Exists() || event.String() == "" {
		return legacyChunks(root, data)
	}

	var out []Chunk
	switch tag := event.String(); tag {
	case eventMessageDelta:
		if !data.IsObject() {
			return nil
		}
		text := firstText(data.Get("delta"), data.Get("content"), data.Get("text"))
		out = appendContent(out, text)
	case eventMessageCompleted:
		if !data.IsObject() {
			return nil
		}
		out = appendContent(out, firstText(data.Get("content"), data.Get("text")))
		out = appendSources(out, extractSources(data))
	case eventRunStepCompleted, eventRunCompleted:
		if data.IsObject() {
			out = appendSources(out, extractSources(data))
		}
	case eventRunStarted, eventRunFailed, eventMessageStarted,
		eventRunStepDelta, eventRunStepIntermed, eventRunStepThinking, eventDone:
		// Reasoning and lifecycle events stay internal so the client can
		// show its own progress indicator.
	default:
		label, first := unknownTags.observe(tag)
		observability.Current().IncUnknownUpstreamEvent(label)
		if first {
			n.log.Warn("unrecognized upstream event tag", "event", truncate(tag, 100), "label", label)
		}
	}
	return out
}

// legacyChunks handles untagged frames: a top-level array of typed parts, or
// a plain string under data.
func legacyChunks(root, data gjson.Result) []Chunk {
	var out []Chunk
	if content := root.Get("content"); content.IsArray() {
		content.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() != "text" {
				return true
			}
			if t := firstPlainString(part.Get("text"), part.Get("content")); t != "" {
				out = append(out, Chunk{Kind: ChunkContent, Text: t})
			}
			return true
		})
		return out
	}
	if data.IsObject() {
		out = appendContent(out, firstPlainString(data.Get("content"), data.Get("delta"), data.Get("text")))
	}
	return out
}

// textOf extracts visible text from the shapes the service uses:
//   - a plain string
//   - an array of typed parts (only "text" parts count)
//   - an object with a string "text"
//   - an object wrapping one of the above under "content" or "delta"
func textOf(v gjson.Result, depth int) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsArray():
		var b []byte
		v.ForEach(func(_, part gjson.Result) bool {
			if !part.IsObject() {
				return true
			}
			if part.Get("type").String() != "text" && part.Get("response_type").String() != "text" {
				return true
			}
			b = append(b, firstPlainString(part.Get("text"), part.Get("content"))...)
			return true
		})
		return string(b)
	case v.IsObject():
		if t := v.Get("text"); t.Type == gjson.String {
			return t.String()
		}
		if depth >= maxUnwrapDepth {
			return ""
		}
		if c := v.Get("content"); c.Exists() {
			return textOf(c, depth+1)
		}
		if d := v.Get("delta"); d.Exists() {
			return textOf(d, depth+1)
		}
		return ""
	default:
		return ""
	}
}

func firstText(vals ...gjson.Result) string {
	for _, v := range vals {
		if t := textOf(v, 0); t != "" {
			return t
		}
	}
	return ""
}

func firstPlainString(vals ...gjson.Result) string {
	for _, v := range vals {
		if v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func extractSources(data gjson.Result) []SourceRef {
	var out []SourceRef
	for _, key := range []string{"citations", "sources", "references"} {
		arr := data.Get(key)
		if !arr.IsArray() {
			continue
		}
		arr.ForEach(func(_, item gjson.Result) bool {
			if !item.IsObject() {
				return true
			}
			out = append(out, SourceRef{
				Title:    item.Get("title").String(),
				Name:     item.Get("name").String(),
				ID:       item.Get("id").String(),
				FileName: item.Get("file_name").String(),
				URL:      item.Get("url").String(),
			})
			return true
		})
	}
	if ids := data.Get("document_ids"); ids.IsArray() {
		ids.ForEach(func(_, id gjson.Result) bool {
			if id.Type == gjson.String && id.String() != "" {
				out = append(out, SourceRef{ID: id.String()})
			}
			return true
		})
	}
	return out
}

func appendContent(out []Chunk, text string) []Chunk {
	if text == "" {
		return out
	}
	return append(out, Chunk{Kind: ChunkContent, Text: text})
}

func appendSources(out []Chunk, sources []SourceRef) []Chunk {
	if len(sources) == 0 {
		return out
	}
	return append(out, Chunk{Kind: ChunkSources, Sources: sources})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
