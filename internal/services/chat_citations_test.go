package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/agentdesk-backend/internal/clients/orchestrate"
	types "github.com/yungbote/agentdesk-backend/internal/domain/chat"
)

func TestDedupeSourcesKeepsKeylessEntries(t *testing.T) {
	in := []orchestrate.SourceRef{
		{ID: "d1"},
		{Title: "Guide"},
		{ID: "d1", Title: "dup"},
		{URL: "https://a"},
		{URL: "https://b"},
		{Name: "Guide"},
	}
	got := dedupeSources(in)
	require.Len(t, got, 4)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "Guide", got[1].Title)
	assert.Equal(t, "https://a", got[2].URL)
	assert.Equal(t, "https://b", got[3].URL)
}

func TestCitationEntriesLabelFallbacks(t *testing.T) {
	display := map[string]orchestrate.DocumentDisplay{
		"d1": {DisplayName: "Resolved.pdf", URL: "https://kb/d1"},
		"d2": {DisplayName: "NoLink.docx"},
	}
	got := citationEntries([]orchestrate.SourceRef{
		{ID: "d1", Title: "ignored"},
		{ID: "d2", URL: "https://own"},
		{Title: "T"},
		{Name: "N"},
		{FileName: "f.txt"},
		{ID: "unknown"},
		{},
	}, display)

	want := []types.MessageSource{
		{ID: "d1", Label: "Resolved.pdf", URL: "https://kb/d1"},
		{ID: "d2", Label: "NoLink.docx", URL: "https://own"},
		{Label: "T"},
		{Label: "N"},
		{Label: "f.txt"},
		{ID: "unknown", Label: "unknown"},
		{Label: "Document"},
	}
	assert.Equal(t, want, got)
}

func TestRenderCitations(t *testing.T) {
	assert.Equal(t, "", renderCitations(nil, false))
	assert.Equal(t, knowledgeBaseNotice, renderCitations(nil, true))
	got := renderCitations([]types.MessageSource{
		{Label: "A", URL: "https://a"},
		{Label: "B"},
	}, true)
	assert.Equal(t, "\n\n---\n\n**Sources (from knowledge base):**\n- [A](https://a)\n- B", got)
}
