package op

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/pipeline"
)

const filterSystemPrompt = "你是一位论文过滤专家，专精于通过论文的摘要判断论文是否属于用户关注的领域。"

// LLMFilter asks the model whether each paper's abstract belongs to the
// target topic. Unlike the summarizer, a failed completion aborts the
// run: a partial verdict list would mark papers filtered that were never
// judged.
type LLMFilter struct {
	pipeline.BaseOperator

	client      llm.Client
	opts        ChatOptions
	targetTopic string
}

var _ pipeline.Operator = (*LLMFilter)(nil)

// NewLLMFilter creates the filter for the given target topic.
func NewLLMFilter(client llm.Client, opts ChatOptions, targetTopic string) *LLMFilter {
	return &LLMFilter{
		client:      client,
		opts:        opts.withDefaults(),
		targetTopic: targetTopic,
	}
}

// Process takes []any of *models.Paper and returns []any of FilterResult
// aligned with the input.
func (f *LLMFilter) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}
	papers, err := papersOf(items)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Filtering papers", "topic", f.targetTopic, "count", len(papers))

	results := make([]FilterResult, len(papers))
	errs := make([]error, len(papers))
	sem := make(chan struct{}, f.opts.MaxConcurrent)
	var wg sync.WaitGroup

	for i, paper := range papers {
		wg.Add(1)
		go func(i int, paper *models.Paper) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rejected, err := f.filterPaper(ctx, paper)
			if err != nil {
				errs[i] = fmt.Errorf("op: failed to filter paper %s: %w", paper.ID, err)
				return
			}
			results[i] = FilterResult{Paper: paper, Rejected: rejected}
		}(i, paper)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return lo.ToAnySlice(results), nil
}

func (f *LLMFilter) filterPaper(ctx context.Context, paper *models.Paper) (bool, error) {
	prompt := "请判断以下论文是否属于用户关注的领域\n" +
		"如果是，回答YES，否则回答NO\n" +
		fmt.Sprintf("用户关注的领域是：%s\n", f.targetTopic) +
		fmt.Sprintf("论文的摘要：%s\n", paper.Abstract)

	req := llm.NewChatRequest(f.opts.Model, []llm.Message{
		{Role: llm.RoleSystem, Content: filterSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})

	resp, err := f.client.Chat(ctx, req)
	if err != nil {
		return false, err
	}

	rejected := strings.Contains(resp.Content, "NO")
	if rejected {
		logger.Debug(ctx, "Paper rejected", "paper", paper.ID, "title", paper.Title)
	} else {
		logger.Debug(ctx, "Paper kept", "paper", paper.ID, "title", paper.Title)
	}
	return rejected, nil
}
