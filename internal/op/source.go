package op

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/paperdag/paperdag/internal/arxiv"
	"github.com/paperdag/paperdag/internal/backoff"
	"github.com/paperdag/paperdag/internal/logger"
	"github.com/paperdag/paperdag/internal/models"
	"github.com/paperdag/paperdag/internal/pipeline"
	"github.com/paperdag/paperdag/internal/stringutil"
)

const paperURLPrefix = "https://arxiv.org/abs/"

var errEmptyResults = errors.New("catalog returned no results")

// ArxivSource fetches one window of catalog results and normalizes them
// into papers. It ignores its input.
type ArxivSource struct {
	pipeline.BaseOperator

	client        *arxiv.Client
	query         string
	offset        int
	limit         int
	emptyRetries  int
	retryInterval time.Duration
}

var _ pipeline.Operator = (*ArxivSource)(nil)

// SourceOption is a functional option for configuring an ArxivSource.
type SourceOption func(*ArxivSource)

// WithRetryWhenEmpty retries an empty result under backoff up to
// maxRetries times before accepting it. The catalog indexes new
// submissions with a delay, so a transiently empty window is common.
func WithRetryWhenEmpty(maxRetries int) SourceOption {
	return func(s *ArxivSource) {
		s.emptyRetries = maxRetries
	}
}

// NewArxivSource creates a source over the given topics and result window.
func NewArxivSource(client *arxiv.Client, topics []string, offset, limit int, opts ...SourceOption) *ArxivSource {
	s := &ArxivSource{
		client:        client,
		query:         arxiv.BuildQuery(topics),
		offset:        offset,
		limit:         limit,
		retryInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process queries the catalog and returns []any of *models.Paper.
func (s *ArxivSource) Process(ctx context.Context, _ any) (any, error) {
	logger.Info(ctx, "Fetching papers", "query", s.query, "offset", s.offset, "limit", s.limit)

	papers, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if len(papers) == 0 && s.emptyRetries > 0 {
		policy := backoff.NewExponentialBackoffPolicy(s.retryInterval)
		policy.MaxRetries = s.emptyRetries

		err := backoff.Retry(ctx, func(ctx context.Context) error {
			papers, err = s.fetch(ctx)
			if err != nil {
				return err
			}
			if len(papers) == 0 {
				return errEmptyResults
			}
			return nil
		}, policy, func(err error) bool { return errors.Is(err, errEmptyResults) })
		// An exhausted empty window is a valid outcome, not a failure.
		if err != nil && !errors.Is(err, errEmptyResults) {
			return nil, err
		}
	}

	logger.Info(ctx, "Fetched papers", "count", len(papers))
	return lo.ToAnySlice(papers), nil
}

func (s *ArxivSource) fetch(ctx context.Context) ([]*models.Paper, error) {
	entries, err := s.client.Search(ctx, s.query, 0, s.offset+s.limit)
	if err != nil {
		return nil, err
	}

	if len(entries) <= s.offset {
		return nil, nil
	}
	entries = entries[s.offset:]
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}

	papers := make([]*models.Paper, 0, len(entries))
	for _, e := range entries {
		papers = append(papers, normalizeEntry(e))
	}
	return papers, nil
}

// normalizeEntry maps a catalog entry onto the paper model: version
// suffix stripped from the id, canonical abs URL, single-line abstract.
func normalizeEntry(e arxiv.Entry) *models.Paper {
	id := models.CanonicalID(e.ID)
	return &models.Paper{
		ID:          id,
		Title:       stringutil.CollapseSpaces(e.Title),
		URL:         paperURLPrefix + id,
		Abstract:    strings.TrimSpace(strings.ReplaceAll(e.Summary, "\n", " ")),
		Authors:     strings.Join(e.Authors, ", "),
		Category:    e.Category,
		PublishDate: models.NewDate(e.Published),
		UpdateDate:  models.NewDate(e.Updated),
	}
}
