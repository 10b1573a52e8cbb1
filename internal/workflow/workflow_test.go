package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paperdag/paperdag/internal/config"
	"github.com/paperdag/paperdag/internal/llm"
	"github.com/paperdag/paperdag/internal/models"
)

// chatFunc adapts a function to llm.Client for tests.
type chatFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

func (f chatFunc) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return f(ctx, req)
}

// testConfig returns a small valid configuration rooted at its own
// temporary storage directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LLM: config.LLM{
			ModelName:             "test-model",
			Temperature:           0.7,
			MaxTokens:             512,
			MaxConcurrentRequests: 2,
			Language:              "中文",
		},
		Storage:           config.Storage{BasePath: t.TempDir()},
		ArxivTopicList:    []string{"LLM"},
		ArxivSearchOffset: 0,
		ArxivSearchLimit:  10,
		LLMFilterTopic:    "efficient LLM inference",
		ProcessBatchSize:  2,
		FetchBatchSize:    2,
	}
}

func testPaper(t *testing.T, id, title, updated string) *models.Paper {
	t.Helper()
	date, err := models.ParseDate(updated)
	require.NoError(t, err)
	return &models.Paper{
		ID:          id,
		Title:       title,
		URL:         "https://arxiv.org/abs/" + id,
		Abstract:    "abstract of " + title,
		Authors:     "A. Author",
		Category:    "cs.CL",
		PublishDate: date,
		UpdateDate:  date,
	}
}

func summaryOf(paper *models.Paper, summary string) *models.PaperWithSummary {
	return &models.PaperWithSummary{Paper: *paper, Summary: summary}
}

// seedStore merges the papers into the given key-value namespace, keyed
// by paper id, the way the workflows themselves persist them.
func seedStore(t *testing.T, basePath, namespace string, items ...any) {
	t.Helper()

	store, err := openKV(basePath, namespace)
	require.NoError(t, err)

	pairs := make(map[string]json.RawMessage, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		require.NoError(t, err)
		pairs[paperID(t, item)] = raw
	}
	require.NoError(t, store.Merge(pairs))
}

func paperID(t *testing.T, item any) string {
	t.Helper()
	switch v := item.(type) {
	case *models.Paper:
		return v.ID
	case *models.PaperWithSummary:
		return v.ID
	default:
		t.Fatalf("unexpected item type %T", item)
		return ""
	}
}

func atomEntry(id, title, abstract, published, updated string) string {
	return fmt.Sprintf(`<entry>
		<id>http://arxiv.org/abs/%s</id>
		<published>%s</published>
		<updated>%s</updated>
		<title>%s</title>
		<summary>%s</summary>
		<author><name>A. Author</name></author>
		<category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/></entry>`,
		id, published, updated, title, abstract)
}

func atomFeedOf(entries ...string) string {
	feed := `<?xml version="1.0" encoding="UTF-8"?><feed xmlns="http://www.w3.org/2005/Atom">`
	for _, e := range entries {
		feed += e
	}
	return feed + "</feed>"
}

// newCatalogServer serves a fixed Atom feed for every query.
func newCatalogServer(t *testing.T, feed string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// pushedCard is one card received by a fake webhook.
type pushedCard struct {
	Title   string
	Content string
}

// decodeCard pulls the title and body text out of a pushed card payload.
func decodeCard(t *testing.T, r *http.Request) pushedCard {
	t.Helper()
	var payload struct {
		Card struct {
			Header struct {
				Title struct {
					Content string `json:"content"`
				} `json:"title"`
			} `json:"header"`
			Elements []struct {
				Text struct {
					Content string `json:"content"`
				} `json:"text"`
			} `json:"elements"`
		} `json:"card"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	require.Len(t, payload.Card.Elements, 1)
	return pushedCard{
		Title:   payload.Card.Header.Title.Content,
		Content: payload.Card.Elements[0].Text.Content,
	}
}
