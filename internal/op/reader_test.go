package op

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperdag/paperdag/internal/models"
)

func sourcePaper(id string, baseURL string) *models.Paper {
	return &models.Paper{ID: id, Title: id, URL: baseURL + "/abs/" + id}
}

func TestPaperReaderDownloadsToCache(t *testing.T) {
	t.Parallel()

	var pdfRequests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/pdf/"), "expected pdf path, got %s", r.URL.Path)
		pdfRequests.Add(1)
		_, _ = w.Write([]byte("%PDF-1.4 not really a pdf"))
	}))
	defer srv.Close()

	cacheDir := filepath.Join(t.TempDir(), "paper_caches")
	reader := NewPaperReader(cacheDir, WithWorkers(4))
	reader.retryInterval = time.Millisecond

	require.NoError(t, reader.Setup(context.Background()))

	papers := []any{
		sourcePaper("2408.00001", srv.URL),
		sourcePaper("2408.00002", srv.URL),
	}
	out, err := reader.Process(context.Background(), papers)
	require.NoError(t, err)

	results := out.([]any)
	require.Len(t, results, 2)

	// Order preserved; the fake PDF defeats every parser, so text is
	// empty and the failure stays per-paper.
	first := results[0].(PaperText)
	assert.Equal(t, "2408.00001", first.Paper.ID)
	assert.Empty(t, first.Text)
	assert.Equal(t, "2408.00002", results[1].(PaperText).Paper.ID)

	assert.Equal(t, int32(2), pdfRequests.Load())
	assert.FileExists(t, filepath.Join(cacheDir, "2408.00001.pdf"))
	assert.FileExists(t, filepath.Join(cacheDir, "2408.00002.pdf"))
}

func TestPaperReaderUsesCache(t *testing.T) {
	t.Parallel()

	var pdfRequests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pdfRequests.Add(1)
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "2408.00001.pdf"), []byte("cached"), 0600))

	reader := NewPaperReader(cacheDir)
	reader.retryInterval = time.Millisecond
	require.NoError(t, reader.Setup(context.Background()))

	_, err := reader.Process(context.Background(), []any{sourcePaper("2408.00001", srv.URL)})
	require.NoError(t, err)
	assert.Equal(t, int32(0), pdfRequests.Load())
}

func TestPaperReaderRetriesIncompleteDownload(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		// Declare more bytes than are sent; the truncated body fails
		// every attempt.
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	reader := NewPaperReader(cacheDir, WithHTTPClient(resty.New().SetTimeout(time.Second)))
	reader.retryInterval = time.Millisecond
	require.NoError(t, reader.Setup(context.Background()))

	out, err := reader.Process(context.Background(), []any{sourcePaper("2408.00001", srv.URL)})
	require.NoError(t, err)

	// Download never succeeded: retries exhausted, text empty, no file
	// left in the cache.
	assert.Empty(t, out.([]any)[0].(PaperText).Text)
	assert.Equal(t, int32(3), calls.Load())
	assert.NoFileExists(t, filepath.Join(cacheDir, "2408.00001.pdf"))
}

func TestPaperReaderServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	reader := NewPaperReader(t.TempDir())
	reader.retryInterval = time.Millisecond
	require.NoError(t, reader.Setup(context.Background()))

	out, err := reader.Process(context.Background(), []any{sourcePaper("2408.00001", srv.URL)})
	require.NoError(t, err)
	assert.Empty(t, out.([]any)[0].(PaperText).Text)
}

func TestPaperReaderRejectsNonPapers(t *testing.T) {
	t.Parallel()

	reader := NewPaperReader(t.TempDir())
	require.NoError(t, reader.Setup(context.Background()))

	_, err := reader.Process(context.Background(), []any{"not a paper"})
	require.Error(t, err)
}
