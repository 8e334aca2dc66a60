package orchestrate

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/agentdesk-backend/internal/observability"
)

const citationFanout = 8

// DocumentDisplayMap resolves document id -> display info across the given
// knowledge bases. Lookups run concurrently; a failed lookup is logged and
// contributes nothing.
func (c *Client) DocumentDisplayMap(ctx context.Context, kbIDs []string) map[string]DocumentDisplay {
	out := make(map[string]DocumentDisplay)
	if len(kbIDs) == 0 {
		return out
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(citationFanout)
	for _, kbID := range kbIDs {
		kbID := kbID
		g.Go(func() error {
			st, err := c.GetKnowledgeBaseStatus(gctx, kbID)
			if err != nil {
				observability.Current().IncCitationLookup("error")
				c.log.Warn("knowledge base status lookup failed", "kb_id", kbID, "error", err)
				return nil
			}
			if st == nil {
				observability.Current().IncCitationLookup("missing")
				return nil
			}
			observability.Current().IncCitationLookup("ok")
			mu.Lock()
			defer mu.Unlock()
			for _, doc := range st.Documents {
				if doc.ID == "" {
					continue
				}
				out[doc.ID] = displayFor(doc)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func displayFor(doc KnowledgeBaseDocument) DocumentDisplay {
	d := DocumentDisplay{DisplayName: doc.ID}
	if doc.Name != "" {
		d.DisplayName = doc.Name
	}
	if m := doc.Metadata; m != nil {
		if m.OriginalFileName != "" {
			d.DisplayName = m.OriginalFileName
		}
		d.URL = m.URL
		if d.URL == "" {
			d.URL = m.SourceURL
		}
	}
	return d
}
