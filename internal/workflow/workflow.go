// Package workflow assembles the standard operators into the runnable
// pipelines: filter, summarize, push, fetch, and report. Node names key
// the result map and stay stable across releases; the run loops read
// them to decide when a backlog is drained.
package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/paperdag/paperdag/internal/arxiv"
	"github.com/paperdag/paperdag/internal/config"
	"github.com/paperdag/paperdag/internal/feishu"
	"github.com/paperdag/paperdag/internal/idstate"
	"github.com/paperdag/paperdag/internal/kvstore"
	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/op"
	"github.com/paperdag/paperdag/internal/pipeline"
)

// Store and state namespaces. The namespace names the entity a document
// tracks, not the workflow that writes it, so several workflows can share
// one document.
const (
	kvFilteredPapers = "filtered_papers"
	kvPaperSummaries = "paper_summaries"
	kvFetchedPapers  = "fetched_papers"

	nsLLMFilter = "arxiv_llm_filter"
	nsSummarize = "arxiv"
	nsPush      = "push"

	stateDirName = "state"
	cacheDirName = "paper_caches"
)

// Deps carries the configuration and the shared clients into the
// workflow builders. The command layer fills it from the loaded
// configuration; tests fill it with fakes.
type Deps struct {
	Config *config.Config
	Arxiv  *arxiv.Client
	LLM    llm.Client
	Feishu *feishu.Client
}

func (d Deps) chatOptions() op.ChatOptions {
	return op.ChatOptions{
		Model:         d.Config.LLM.ModelName,
		Temperature:   d.Config.LLM.Temperature,
		MaxTokens:     d.Config.LLM.MaxTokens,
		MaxConcurrent: d.Config.LLM.MaxConcurrentRequests,
	}
}

func (d Deps) requireTopics() error {
	if len(d.Config.ArxivTopicList) == 0 {
		return fmt.Errorf("workflow: arxiv_topic_list must be set for catalog-sourced runs")
	}
	return nil
}

// openKV opens the key-value namespace under the storage base path.
func openKV(basePath, namespace string) (*kvstore.Store, error) {
	return kvstore.New(filepath.Join(basePath, namespace), namespace)
}

// openStates opens the id-state namespace under <base>/state.
func openStates(basePath, namespace string) (*idstate.Store, error) {
	return idstate.New(filepath.Join(basePath, stateDirName), namespace)
}

// builder accumulates the first AddOperator error so assemblies read as a
// flat list of stages.
type builder struct {
	p   *pipeline.Pipeline
	err error
}

func newBuilder() *builder {
	return &builder{p: pipeline.New()}
}

func (b *builder) add(name string, operator pipeline.Operator, deps ...string) {
	if b.err != nil {
		return
	}
	b.err = b.p.AddOperator(name, operator, deps...)
}

func (b *builder) build() (*pipeline.Pipeline, error) {
	if b.err != nil {
		return nil, fmt.Errorf("workflow: %w", b.err)
	}
	return b.p, nil
}

// listLen reports how many items a node result holds.
func listLen(result any) int {
	items, ok := result.([]any)
	if !ok {
		return 0
	}
	return len(items)
}

func paperKeyValue(item any) (string, any, error) {
	paper, ok := item.(*models.Paper)
	if !ok {
		return "", nil, fmt.Errorf("workflow: expected *models.Paper, got %T", item)
	}
	return paper.ID, paper, nil
}

func paperSummaryKeyValue(item any) (string, any, error) {
	paper, ok := item.(*models.PaperWithSummary)
	if !ok {
		return "", nil, fmt.Errorf("workflow: expected *models.PaperWithSummary, got %T", item)
	}
	return paper.ID, paper, nil
}
