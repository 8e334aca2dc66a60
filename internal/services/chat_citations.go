package services

import (
	"strings"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	types "github.com/yungbote/agentdesk-backend/internal/domain/chat"
)

const (
	sourcesHeading      = "\n\n---\n\n**Sources (from knowledge base):**\n"
	knowledgeBaseNotice = "\n\n---\n\n*This answer was generated using this agent's linked knowledge base. You can see and manage sources in the right sidebar.*"
	verificationPrefix  = "\n\n---\n\n**Verification:** "
)

// dedupeSources keeps the first occurrence of each identity key. Sources with
// no key are always kept.
func dedupeSources(in []orchestrate.SourceRef) []orchestrate.SourceRef {
	seen := make(map[string]struct{}, len(in))
	out := make([]orchestrate.SourceRef, 0, len(in))
	for _, s := range in {
		if k := s.Key(); k != "" {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, s)
	}
	return out
}

// citationEntries resolves a label and link for every source.
func citationEntries(sources []orchestrate.SourceRef, display map[string]orchestrate.DocumentDisplay) []types.MessageSource {
	out := make([]types.MessageSource, 0, len(sources))
	for _, s := range sources {
		var resolved orchestrate.DocumentDisplay
		if s.ID != "" {
			resolved = display[s.ID]
		}
		label := firstNonEmpty(resolved.DisplayName, s.Title, s.Name, s.FileName, s.ID, "Document")
		out = append(out, types.MessageSource{
			ID:    s.ID,
			Label: label,
			URL:   firstNonEmpty(resolved.URL, s.URL),
		})
	}
	return out
}

// renderCitations builds the block appended to the answer: the source list
// when there are sources, the generic notice when the agent only has linked
// knowledge bases, or "".
func renderCitations(entries []types.MessageSource, hasKnowledgeBase bool) string {
	if len(entries) == 0 {
		if hasKnowledgeBase {
			return knowledgeBaseNotice
		}
		return ""
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.URL != "" {
			lines = append(lines, "- ["+e.Label+"]("+e.URL+")")
			continue
		}
		lines = append(lines, "- "+e.Label)
	}
	return sourcesHeading + strings.Join(lines, "\n")
}

func verifierPrompt(question, answer string) string {
	return "User asked: " + question +
		"\n\nPrimary answer: " + answer +
		"\n\nVerify this answer for accuracy and policy compliance. Respond with VERIFIED or with a short correction/summary."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
