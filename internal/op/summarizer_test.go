package op

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/models"
)

// chatFunc adapts a function to llm.Client for tests.
type chatFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

func (f chatFunc) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return f(ctx, req)
}

func requirePaperSummaries(t *testing.T, out any, n int) []*models.PaperWithSummary {
	t.Helper()
	items, ok := out.([]any)
	require.True(t, ok, "expected []any, got %T", out)
	require.Len(t, items, n)
	results := make([]*models.PaperWithSummary, n)
	for i, item := range items {
		result, ok := item.(*models.PaperWithSummary)
		require.True(t, ok, "expected *models.PaperWithSummary, got %T", item)
		results[i] = result
	}
	return results
}

func TestLLMSummarizer(t *testing.T) {
	t.Parallel()

	t.Run("SummarizesPapers", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		requests := make([]*llm.ChatRequest, 0, 2)
		client := chatFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			mu.Lock()
			requests = append(requests, req)
			mu.Unlock()
			return &llm.ChatResponse{Content: "  a fine summary  "}, nil
		})

		s := NewLLMSummarizer(client, ChatOptions{Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 2000})
		out, err := s.Process(context.Background(), []any{
			PaperText{Paper: testPaper("2408.00001", "One"), Text: "full body one"},
			PaperText{Paper: testPaper("2408.00002", "Two"), Text: "full body two"},
		})
		require.NoError(t, err)

		results := requirePaperSummaries(t, out, 2)
		assert.Equal(t, "2408.00001", results[0].ID)
		assert.Equal(t, "One", results[0].Title)
		assert.Equal(t, "a fine summary", results[0].Summary)
		assert.Equal(t, "2408.00002", results[1].ID)
		assert.Equal(t, "a fine summary", results[1].Summary)

		require.Len(t, requests, 2)
		req := requests[0]
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "用中文帮我介绍一下这篇文章: ")
		require.NotNil(t, req.Temperature)
		assert.Equal(t, 0.7, *req.Temperature)
		require.NotNil(t, req.MaxTokens)
		assert.Equal(t, 2000, *req.MaxTokens)
	})

	t.Run("SkipsEmptyText", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		client := chatFunc(func(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
			calls.Add(1)
			return &llm.ChatResponse{Content: "unused"}, nil
		})

		s := NewLLMSummarizer(client, ChatOptions{Model: "m"})
		out, err := s.Process(context.Background(), []any{
			PaperText{Paper: testPaper("2408.00001", "One"), Text: "  \n\t "},
		})
		require.NoError(t, err)

		results := requirePaperSummaries(t, out, 1)
		assert.Empty(t, results[0].Summary)
		assert.Equal(t, "2408.00001", results[0].ID)
		assert.Equal(t, int32(0), calls.Load(), "model must not be asked about an empty body")
	})

	t.Run("FailureLeavesSummaryEmpty", func(t *testing.T) {
		t.Parallel()

		client := chatFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			if strings.Contains(req.Messages[0].Content, "broken body") {
				return nil, errors.New("model overloaded")
			}
			return &llm.ChatResponse{Content: "ok"}, nil
		})

		s := NewLLMSummarizer(client, ChatOptions{Model: "m"})
		out, err := s.Process(context.Background(), []any{
			PaperText{Paper: testPaper("2408.00001", "One"), Text: "broken body"},
			PaperText{Paper: testPaper("2408.00002", "Two"), Text: "good body"},
		})
		require.NoError(t, err, "one failed completion must not fail the batch")

		results := requirePaperSummaries(t, out, 2)
		assert.Empty(t, results[0].Summary)
		assert.Equal(t, "ok", results[1].Summary)
	})

	t.Run("TruncatesLongText", func(t *testing.T) {
		t.Parallel()

		var prompt string
		var mu sync.Mutex
		client := chatFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			mu.Lock()
			prompt = req.Messages[0].Content
			mu.Unlock()
			return &llm.ChatResponse{Content: "ok"}, nil
		})

		s := NewLLMSummarizer(client, ChatOptions{Model: "m"})
		long := strings.Repeat("a", maxPaperTextLength+50)
		_, err := s.Process(context.Background(), []any{
			PaperText{Paper: testPaper("2408.00001", "One"), Text: long},
		})
		require.NoError(t, err)

		assert.True(t, strings.HasSuffix(prompt, truncationMarker))
		assert.Equal(t, maxPaperTextLength, strings.Count(prompt, "a"))
	})

	t.Run("WithLanguage", func(t *testing.T) {
		t.Parallel()

		var prompt string
		var mu sync.Mutex
		client := chatFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
			mu.Lock()
			prompt = req.Messages[0].Content
			mu.Unlock()
			return &llm.ChatResponse{Content: "ok"}, nil
		})

		s := NewLLMSummarizer(client, ChatOptions{Model: "m"}, WithLanguage("English"))
		_, err := s.Process(context.Background(), []any{
			PaperText{Paper: testPaper("2408.00001", "One"), Text: "body"},
		})
		require.NoError(t, err)
		assert.Contains(t, prompt, "用English帮我介绍一下这篇文章: body")
	})

	t.Run("BoundsConcurrency", func(t *testing.T) {
		t.Parallel()

		var inFlight, peak atomic.Int32
		client := chatFunc(func(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return &llm.ChatResponse{Content: "ok"}, nil
		})

		s := NewLLMSummarizer(client, ChatOptions{Model: "m", MaxConcurrent: 2})
		items := make([]any, 6)
		for i := range items {
			items[i] = PaperText{Paper: testPaper(fmt.Sprintf("2408.%05d", i), "T"), Text: "body"}
		}
		_, err := s.Process(context.Background(), items)
		require.NoError(t, err)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("RejectsNonPaperText", func(t *testing.T) {
		t.Parallel()

		s := NewLLMSummarizer(chatFunc(nil), ChatOptions{Model: "m"})
		_, err := s.Process(context.Background(), []any{42})
		require.ErrorContains(t, err, "expected PaperText")
	})
}
