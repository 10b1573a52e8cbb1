package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/models"
)

// pdfFixture returns a small parseable PDF body.
func pdfFixture(t *testing.T) []byte {
	t.Helper()
	pdf, err := os.ReadFile(filepath.Join("testdata", "paper.pdf"))
	require.NoError(t, err)
	return pdf
}

// paperAt returns a paper whose PDF the given server will serve.
func paperAt(t *testing.T, baseURL, id, title, updated string) *models.Paper {
	t.Helper()
	paper := testPaper(t, id, title, updated)
	paper.URL = baseURL + "/abs/" + id
	return paper
}

func TestRunSummarize(t *testing.T) {
	t.Parallel()

	t.Run("DrainsBacklogExactlyOnce", func(t *testing.T) {
		t.Parallel()

		pdf := pdfFixture(t)
		var downloads atomic.Int32
		pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			downloads.Add(1)
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdf)
		}))
		defer pdfSrv.Close()

		var chatCalls atomic.Int32
		client := chatFunc(func(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
			chatCalls.Add(1)
			return &llm.ChatResponse{Content: "一篇值得细读的论文"}, nil
		})

		cfg := testConfig(t)
		cfg.EnableLLMFilter = true
		cfg.ProcessBatchSize = 2

		seedStore(t, cfg.Storage.BasePath, kvFilteredPapers,
			paperAt(t, pdfSrv.URL, "2408.00001", "One", "2024-08-01"),
			paperAt(t, pdfSrv.URL, "2408.00002", "Two", "2024-08-02"),
			paperAt(t, pdfSrv.URL, "2408.00003", "Three", "2024-08-03"),
		)

		// Three pending papers against a batch size of two: the loop
		// needs two working iterations plus one that sees an empty batch.
		deps := Deps{Config: cfg, LLM: client}
		require.NoError(t, RunSummarize(context.Background(), deps))

		assert.Equal(t, int32(3), chatCalls.Load())
		assert.Equal(t, int32(3), downloads.Load())

		summaries, err := openKV(cfg.Storage.BasePath, kvPaperSummaries)
		require.NoError(t, err)
		entries, err := summaries.Read()
		require.NoError(t, err)
		require.Len(t, entries, 3)

		var got models.PaperWithSummary
		require.NoError(t, json.Unmarshal(entries["2408.00001"].Value, &got))
		assert.Equal(t, "One", got.Title)
		assert.Equal(t, "一篇值得细读的论文", got.Summary)

		// Re-running finds no pending papers: no chat calls, no downloads.
		require.NoError(t, RunSummarize(context.Background(), deps))
		assert.Equal(t, int32(3), chatCalls.Load())
		assert.Equal(t, int32(3), downloads.Load())
	})

	t.Run("UnreadablePaperStaysPending", func(t *testing.T) {
		t.Parallel()

		pdf := pdfFixture(t)
		pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "2408.00001") {
				_, _ = w.Write([]byte("not a pdf at all"))
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(pdf)
		}))
		defer pdfSrv.Close()

		var chatCalls atomic.Int32
		client := chatFunc(func(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
			chatCalls.Add(1)
			return &llm.ChatResponse{Content: "总结"}, nil
		})

		cfg := testConfig(t)
		cfg.EnableLLMFilter = true
		cfg.ProcessBatchSize = 2

		seedStore(t, cfg.Storage.BasePath, kvFilteredPapers,
			paperAt(t, pdfSrv.URL, "2408.00001", "Broken", "2024-08-01"),
			paperAt(t, pdfSrv.URL, "2408.00002", "Good", "2024-08-02"),
			paperAt(t, pdfSrv.URL, "2408.00003", "Fine", "2024-08-03"),
		)

		// The unreadable paper yields no text, so no summary and no mark.
		// The loop must still drain the readable ones and then stop on an
		// iteration that made no progress, not spin on the broken paper.
		deps := Deps{Config: cfg, LLM: client}
		require.NoError(t, RunSummarize(context.Background(), deps))

		assert.Equal(t, int32(2), chatCalls.Load())

		summaries, err := openKV(cfg.Storage.BasePath, kvPaperSummaries)
		require.NoError(t, err)
		entries, err := summaries.Read()
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.NotContains(t, entries, "2408.00001")

		states, err := openStates(cfg.Storage.BasePath, nsSummarize)
		require.NoError(t, err)
		finished, err := states.IsFinished("2408.00001")
		require.NoError(t, err)
		assert.False(t, finished, "a paper without a summary must stay pending")
	})
}

func TestBuildSummarizeCatalogSourceRequiresTopics(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.EnableLLMFilter = false
	cfg.ArxivTopicList = nil

	_, err := BuildSummarize(Deps{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arxiv_topic_list")
}
