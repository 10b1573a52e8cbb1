package op

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"

	"github.com/paperdag/paperdag/internal/backoff"
	"github.com/paperdag/paperdag/internal/fileutil"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/pdftext"
	"github.com/paperdag/paperdag/internal/pipeline"
)

const (
	defaultReaderWorkers = 20
	downloadTimeout      = 30 * time.Second
	downloadRetries      = 2
)

// PaperReader downloads each paper's PDF into a cache directory and
// extracts its text. Failures are per-paper: a paper that cannot be
// fetched or parsed yields empty text and the run continues.
type PaperReader struct {
	pipeline.BaseOperator

	cacheDir      string
	workers       int
	http          *resty.Client
	retryInterval time.Duration
}

var _ pipeline.Operator = (*PaperReader)(nil)

// PaperReaderOption is a functional option for configuring a PaperReader.
type PaperReaderOption func(*PaperReader)

// WithWorkers bounds the number of concurrent downloads and extractions.
func WithWorkers(n int) PaperReaderOption {
	return func(r *PaperReader) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithHTTPClient replaces the download client, mainly for tests.
func WithHTTPClient(client *resty.Client) PaperReaderOption {
	return func(r *PaperReader) {
		r.http = client
	}
}

// NewPaperReader creates a reader caching PDFs under cacheDir.
func NewPaperReader(cacheDir string, opts ...PaperReaderOption) *PaperReader {
	r := &PaperReader{
		cacheDir:      cacheDir,
		workers:       defaultReaderWorkers,
		http:          resty.New().SetTimeout(downloadTimeout),
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Setup creates the cache directory.
func (r *PaperReader) Setup(_ context.Context) error {
	return fileutil.EnsureDir(r.cacheDir)
}

// Process downloads and extracts the papers with bounded parallelism and
// returns []any of PaperText preserving input order.
func (r *PaperReader) Process(ctx context.Context, input any) (any, error) {
	items, err := toList(input)
	if err != nil {
		return nil, err
	}
	papers, err := papersOf(items)
	if err != nil {
		return nil, err
	}

	results := make([]PaperText, len(papers))
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup

	for i, paper := range papers {
		wg.Add(1)
		go func(i int, paper *models.Paper) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			text, err := r.readPaper(ctx, paper)
			if err != nil {
				logger.Error(ctx, "Failed to read paper", "paper", paper.ID, "err", err)
				text = ""
			}
			results[i] = PaperText{Paper: paper, Text: text}
		}(i, paper)
	}
	wg.Wait()

	return lo.ToAnySlice(results), nil
}

func (r *PaperReader) readPaper(ctx context.Context, paper *models.Paper) (string, error) {
	path := filepath.Join(r.cacheDir, paper.ID+".pdf")

	if fileutil.FileExists(path) {
		logger.Debug(ctx, "Using cached PDF", "paper", paper.ID)
	} else {
		// The catalog serves the PDF at the abs URL with one path
		// segment swapped.
		pdfURL := strings.Replace(paper.URL, "abs/", "pdf/", 1)

		policy := backoff.NewExponentialBackoffPolicy(r.retryInterval)
		policy.MaxRetries = downloadRetries

		err := backoff.Retry(ctx, func(ctx context.Context) error {
			return r.download(ctx, pdfURL, path)
		}, policy, nil)
		if err != nil {
			return "", fmt.Errorf("download failed: %w", err)
		}
		logger.Info(ctx, "Downloaded PDF", "paper", paper.ID, "url", pdfURL)
	}

	return pdftext.Extract(path)
}

func (r *PaperReader) download(ctx context.Context, url, path string) error {
	resp, err := r.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	body := resp.Body()
	if cl := resp.Header().Get("Content-Length"); cl != "" {
		want, err := strconv.Atoi(cl)
		if err == nil && want > 0 && want != len(body) {
			return fmt.Errorf("incomplete download: got %d bytes, want %d", len(body), want)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, fileutil.FilePermissions); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
