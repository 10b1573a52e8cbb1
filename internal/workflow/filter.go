package workflow

import (
	"context"
	"fmt"

	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/op"
	"github.com/paperdag/paperdag/internal/pipeline"
)

// BuildFilter assembles the relevance-filter pipeline: fetch the catalog
// window, drop papers already judged, ask the model about the rest,
// record every verdict, and mark the judged papers so no paper is sent
// to the model twice.
func BuildFilter(deps Deps) (*pipeline.Pipeline, error) {
	cfg := deps.Config
	if cfg.LLMFilterTopic == "" {
		return nil, fmt.Errorf("workflow: llm_filter_topic must be set for the filter workflow")
	}
	if err := deps.requireTopics(); err != nil {
		return nil, err
	}

	states, err := openStates(cfg.Storage.BasePath, nsLLMFilter)
	if err != nil {
		return nil, err
	}
	verdicts, err := openKV(cfg.Storage.BasePath, kvFilteredPapers)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	b.add("arxiv_source", op.NewArxivSource(deps.Arxiv, cfg.ArxivTopicList, cfg.ArxivSearchOffset, cfg.ArxivSearchLimit))
	b.add("filter_arxiv_papers", op.NewFilterFinished(states, op.PaperID), "arxiv_source")
	b.add("llm_filter", op.NewLLMFilter(deps.LLM, deps.chatOptions(), cfg.LLMFilterTopic), "filter_arxiv_papers")
	b.add("save_filtered_papers", op.NewKVWriter(verdicts, filterVerdictKeyValue), "llm_filter")
	b.add("mark_filtered_papers", op.NewMarkFinished(states, op.PaperID), "save_filtered_papers")
	return b.build()
}

// RunFilter executes the filter workflow once.
func RunFilter(ctx context.Context, deps Deps) error {
	p, err := BuildFilter(deps)
	if err != nil {
		return err
	}
	results, err := p.Execute(ctx, nil)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Filter workflow finished",
		"fetched", listLen(results["arxiv_source"]),
		"judged", listLen(results["mark_filtered_papers"]))
	return nil
}

// filterVerdictKeyValue stores the paper under its id when it was kept
// and null when it was rejected, so later stages can tell "judged and
// rejected" from "never judged".
func filterVerdictKeyValue(item any) (string, any, error) {
	verdict, ok := item.(op.FilterResult)
	if !ok {
		return "", nil, fmt.Errorf("workflow: expected op.FilterResult, got %T", item)
	}
	if verdict.Rejected {
		return verdict.Paper.ID, nil, nil
	}
	return verdict.Paper.ID, verdict.Paper, nil
}
