package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/op"
	"github.com/paperdag/paperdag/internal/pipeline"
)

// BuildSummarize assembles the summarize pipeline: take a batch of
// pending papers, download and extract their bodies, summarize them, and
// persist the results. Only papers that actually got a summary are
// marked finished; the rest stay pending for the next iteration.
//
// The source depends on enable_llm_filter: against the raw catalog
// window when off, against the verdicts of the filter workflow when on.
func BuildSummarize(deps Deps) (*pipeline.Pipeline, error) {
	cfg := deps.Config

	states, err := openStates(cfg.Storage.BasePath, nsSummarize)
	if err != nil {
		return nil, err
	}
	summaries, err := openKV(cfg.Storage.BasePath, kvPaperSummaries)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	if cfg.EnableLLMFilter {
		verdicts, err := openKV(cfg.Storage.BasePath, kvFilteredPapers)
		if err != nil {
			return nil, err
		}
		b.add("paper_source", op.NewKVReader(verdicts, paperFromJSON, op.WithSkipNullValues()))
	} else {
		if err := deps.requireTopics(); err != nil {
			return nil, err
		}
		b.add("paper_source", op.NewArxivSource(deps.Arxiv, cfg.ArxivTopicList, cfg.ArxivSearchOffset, cfg.ArxivSearchLimit))
	}

	cacheDir := filepath.Join(cfg.Storage.BasePath, cacheDirName)
	summarizer := op.NewLLMSummarizer(deps.LLM, deps.chatOptions(), op.WithLanguage(cfg.LLM.Language))

	b.add("filter_pending_ids", op.NewFilterFinished(states, op.PaperID), "paper_source")
	b.add("limit_batch_size", op.NewLimit(cfg.ProcessBatchSize), "filter_pending_ids")
	b.add("paper_reader", op.NewPaperReader(cacheDir), "limit_batch_size")
	b.add("paper_summarizer", summarizer, "paper_reader")
	b.add("keep_summarized", op.NewCustom("keep_summarized", dropEmptySummaries), "paper_summarizer")
	b.add("save_paper_summaries", op.NewKVWriter(summaries, paperSummaryKeyValue), "keep_summarized")
	b.add("mark_processed_papers", op.NewMarkFinished(states, op.PaperID), "save_paper_summaries")
	return b.build()
}

// RunSummarize runs the summarize pipeline until the backlog is drained.
// It stops when an iteration takes an empty batch, and also when a full
// iteration marked nothing finished, so papers that fail every time
// cannot spin the loop; they stay pending for the next invocation.
func RunSummarize(ctx context.Context, deps Deps) error {
	p, err := BuildSummarize(deps)
	if err != nil {
		return err
	}

	total := 0
	for {
		results, err := p.Execute(ctx, nil)
		if err != nil {
			return err
		}

		batch := listLen(results["limit_batch_size"])
		if batch == 0 {
			break
		}

		marked := listLen(results["mark_processed_papers"])
		total += marked
		logger.Info(ctx, "Summarize batch finished", "batch", batch, "summarized", marked)

		if marked == 0 {
			logger.Warn(ctx, "No paper in the batch could be summarized, stopping", "pending", batch)
			break
		}
	}

	logger.Info(ctx, "Summarize workflow finished", "papers", total)
	return nil
}

// paperFromJSON rebuilds a stored paper. Null values never reach it; the
// reader skips them.
func paperFromJSON(key string, value json.RawMessage) (any, error) {
	var paper models.Paper
	if err := json.Unmarshal(value, &paper); err != nil {
		return nil, fmt.Errorf("invalid paper document %q: %w", key, err)
	}
	return &paper, nil
}

// dropEmptySummaries keeps only papers the summarizer produced text for.
func dropEmptySummaries(ctx context.Context, items []any) ([]any, error) {
	kept := make([]any, 0, len(items))
	for _, item := range items {
		paper, ok := item.(*models.PaperWithSummary)
		if !ok {
			return nil, fmt.Errorf("workflow: expected *models.PaperWithSummary, got %T", item)
		}
		if strings.TrimSpace(paper.Summary) == "" {
			logger.Debug(ctx, "Dropping paper without summary", "paper", paper.ID)
			continue
		}
		kept = append(kept, item)
	}
	return kept, nil
}
