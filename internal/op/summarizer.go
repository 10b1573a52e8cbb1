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

const (
	defaultSummaryLanguage = "中文"

	// maxPaperTextLength bounds the prompt so a long paper body cannot
	// blow the model's context window.
	maxPaperTextLength = 128000
	truncationMarker   = "[...截断...]"
)

// LLMSummarizer generates a summary for each paper body. Papers with
// empty text are skipped and individual completion failures leave the
// summary empty; both stay unmarked so a later run picks them up again.
type LLMSummarizer struct {
	pipeline.BaseOperator

	client   llm.Client
	opts     ChatOptions
	language string
}

var _ pipeline.Operator = (*LLMSummarizer)(nil)

// SummarizerOption is a functional option for configuring an LLMSummarizer.
type SummarizerOption func(*LLMSummarizer)

// WithLanguage sets the language the summary is written in.
func WithLanguage(language string) SummarizerOption {
	return func(s *LLMSummarizer) {
		if language != "" {
			s.language = language
		}
	}
}

// NewLLMSummarizer creates the summarizer.
func NewLLMSummarizer(client llm.Client, opts ChatOptions, extra ...SummarizerOption) *LLMSummarizer {
	s := &LLMSummarizer{
		client:   client,
		opts:     opts.withDefaults(),
		language: defaultSummaryLanguage,
	}
	for _, opt := range extra {
		opt(s)
	}
	return s
}

// Process takes []any of PaperText and returns []any of
// *models.PaperWithSummary aligned with the input.
func (s *LLMSummarizer) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}

	out := make([]*models.PaperWithSummary, len(items))
	sem := make(chan struct{}, s.opts.MaxConcurrent)
	var wg sync.WaitGroup

	for i, item := range items {
		pt, ok := item.(PaperText)
		if !ok {
			return nil, fmt.Errorf("op: expected PaperText, got %T", item)
		}
		out[i] = &models.PaperWithSummary{Paper: *pt.Paper}

		if strings.TrimSpace(pt.Text) == "" {
			logger.Warn(ctx, "Skipping paper with empty text", "paper", pt.Paper.ID)
			continue
		}

		wg.Add(1)
		go func(i int, pt PaperText) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			summary, err := s.summarize(ctx, pt.Text)
			if err != nil {
				logger.Warn(ctx, "Failed to summarize paper", "paper", pt.Paper.ID, "err", err)
				return
			}
			out[i].Summary = summary
		}(i, pt)
	}
	wg.Wait()

	return lo.ToAnySlice(out), nil
}

func (s *LLMSummarizer) summarize(ctx context.Context, text string) (string, error) {
	if runes := []rune(text); len(runes) > maxPaperTextLength {
		text = string(runes[:maxPaperTextLength]) + truncationMarker
	}

	prompt := fmt.Sprintf("用%s帮我介绍一下这篇文章: %s", s.language, text)
	req := llm.NewChatRequest(s.opts.Model,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.WithTemperature(s.opts.Temperature),
		llm.WithMaxTokens(s.opts.MaxTokens),
	)

	resp, err := s.client.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
