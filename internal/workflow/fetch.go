package workflow

import (
	"context"

	"github.com/samber/lo"

	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/op"
)

// RunFetch drains the configured catalog window into the fetched_papers
// store. Writes happen in chunks so a crash mid-run loses at most one
// chunk; the merge is idempotent, so re-running simply refreshes the
// documents.
func RunFetch(ctx context.Context, deps Deps) error {
	cfg := deps.Config
	if err := deps.requireTopics(); err != nil {
		return err
	}

	store, err := openKV(cfg.Storage.BasePath, kvFetchedPapers)
	if err != nil {
		return err
	}

	source := op.NewArxivSource(deps.Arxiv, cfg.ArxivTopicList, cfg.ArxivSearchOffset, cfg.ArxivSearchLimit)
	out, err := source.Process(ctx, nil)
	if err != nil {
		return err
	}
	papers, _ := out.([]any)

	writer := op.NewKVWriter(store, paperKeyValue)
	for _, chunk := range lo.Chunk(papers, cfg.FetchBatchSize) {
		if _, err := writer.Process(ctx, chunk); err != nil {
			return err
		}
		logger.Info(ctx, "Stored paper chunk", "papers", len(chunk))
	}

	logger.Info(ctx, "Fetch workflow finished", "papers", len(papers))
	return nil
}
