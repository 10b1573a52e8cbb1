package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdag/paperdag/internal/arxiv"
	"github.com/paperdag/paperdag/internal/idstate"
	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/models"
)

func TestRunFilter(t *testing.T) {
	t.Parallel()

	feed := atomFeedOf(
		atomEntry("2408.00001v1", "Attention Revisited", "faster transformer inference", "2024-08-01T00:00:00Z", "2024-08-01T00:00:00Z"),
		atomEntry("2408.00002v1", "Wet Lab Protocols", "a study of biology workflows", "2024-08-02T00:00:00Z", "2024-08-02T00:00:00Z"),
		atomEntry("2408.00003v2", "KV Cache Tricks", "kv cache reuse for inference", "2024-08-03T00:00:00Z", "2024-08-03T00:00:00Z"),
	)
	catalog := newCatalogServer(t, feed)

	// The verdict prompt quotes the abstract, so the fake model can judge
	// by content: biology is off-topic, the rest is kept.
	var chatCalls atomic.Int32
	client := chatFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		chatCalls.Add(1)
		prompt := req.Messages[len(req.Messages)-1].Content
		if strings.Contains(prompt, "biology") {
			return &llm.ChatResponse{Content: "NO"}, nil
		}
		return &llm.ChatResponse{Content: "YES"}, nil
	})

	cfg := testConfig(t)
	deps := Deps{
		Config: cfg,
		Arxiv:  arxiv.New(arxiv.WithBaseURL(catalog.URL)),
		LLM:    client,
	}

	require.NoError(t, RunFilter(context.Background(), deps))
	assert.Equal(t, int32(3), chatCalls.Load())

	// Kept papers are stored whole; the rejected one as null, so "judged
	// and rejected" stays distinguishable from "never judged".
	verdicts, err := openKV(cfg.Storage.BasePath, kvFilteredPapers)
	require.NoError(t, err)
	entries, err := verdicts.Read()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "null", string(bytes.TrimSpace(entries["2408.00002"].Value)))

	var kept models.Paper
	require.NoError(t, json.Unmarshal(entries["2408.00001"].Value, &kept))
	assert.Equal(t, "Attention Revisited", kept.Title)
	assert.Equal(t, "https://arxiv.org/abs/2408.00001", kept.URL)

	states, err := openStates(cfg.Storage.BasePath, nsLLMFilter)
	require.NoError(t, err)
	all, err := states.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for id, state := range all {
		assert.Equal(t, idstate.StateFinished, state, "paper %s", id)
	}

	// A second run finds every paper already judged and asks nothing.
	require.NoError(t, RunFilter(context.Background(), deps))
	assert.Equal(t, int32(3), chatCalls.Load())
}

func TestBuildFilterValidation(t *testing.T) {
	t.Parallel()

	t.Run("RequiresFilterTopic", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.LLMFilterTopic = ""

		_, err := BuildFilter(Deps{Config: cfg})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm_filter_topic")
	})

	t.Run("RequiresTopics", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t)
		cfg.ArxivTopicList = nil

		_, err := BuildFilter(Deps{Config: cfg})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "arxiv_topic_list")
	})
}
