package agent

import (
	"context"

	"github.com/noema-ai/noema/internal/model"
	"github.com/noema-ai/noema/internal/search"
)

// minSnippetLen is the legibility floor: shorter content is noise, not a
// retrieval candidate.
const minSnippetLen = 5

// retrieveContext issues one broad search for the solve path, drops noise,
// and verifies provenance for the survivors. A snippet whose source cannot
// be resolved is kept with a nil SourceUID rather than dropped; degraded
// provenance still beats losing taught content. The store's rank order is
// preserved throughout.
func (a *Agent) retrieveContext(ctx context.Context, msg model.Message) []model.Snippet {
	snippets, err := a.store.Search(ctx, msg.UserID, msg.Text, a.cfg.RetrievalLimit)
	if err != nil {
		a.logger.Warn("agent: context retrieval failed, answering without context",
			"uid", msg.UID, "user_id", msg.UserID, "error", err)
		return nil
	}

	kept := search.Filter(snippets, a.cfg.RelevanceFloor, minSnippetLen)

	for i := range kept {
		if kept[i].SourceUID == nil {
			continue
		}
		uid, err := a.store.ResolveSource(ctx, model.EpisodeName(*kept[i].SourceUID))
		if err != nil {
			a.logger.Debug("agent: source resolution failed, keeping snippet without provenance",
				"source_uid", *kept[i].SourceUID, "error", err)
			kept[i].SourceUID = nil
			continue
		}
		kept[i].SourceUID = &uid
	}

	return kept
}
