// Package arxiv provides a read-only client for the arxiv.org catalog API.
// Results come back as Atom XML and are parsed into Entry values; mapping to
// the workflow's paper model happens at the operator layer.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://export.arxiv.org/api/query"
	defaultTimeout = 10 * time.Second
	maxRetries     = 3
)

// Entry is one catalog record. ID is the versioned short identifier
// (e.g. "2408.12345v2") extracted from the Atom entry URL.
type Entry struct {
	ID        string
	Title     string
	Summary   string
	Authors   []string
	Category  string
	Published time.Time
	Updated   time.Time
}

// Client queries the arxiv catalog API.
type Client struct {
	http    *resty.Client
	baseURL string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithBaseURL overrides the catalog endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// New creates a catalog client. Transient failures (timeouts, 429, 5xx)
// are retried at the transport layer.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http: resty.New().
			SetTimeout(defaultTimeout).
			SetRetryCount(maxRetries).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					var netErr net.Error
					return errors.As(err, &netErr) && netErr.Timeout()
				}
				code := r.StatusCode()
				return code == 429 || code >= 500
			}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildQuery turns a list of topics into a catalog search query. Each topic
// is double-quoted and the topics are joined with OR. A single topic that
// already contains " OR " is treated as a prebuilt query and passed through.
func BuildQuery(topics []string) string {
	if len(topics) == 1 && strings.Contains(topics[0], " OR ") {
		return topics[0]
	}
	quoted := make([]string, len(topics))
	for i, t := range topics {
		quoted[i] = strconv.Quote(t)
	}
	return strings.Join(quoted, " OR ")
}

// Search fetches one page of catalog results for the given query, newest
// submissions first.
func (c *Client) Search(ctx context.Context, query string, start, maxResults int) ([]Entry, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"search_query": query,
			"start":        strconv.Itoa(start),
			"max_results":  strconv.Itoa(maxResults),
			"sortBy":       "submittedDate",
			"sortOrder":    "descending",
		}).
		Get(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("arxiv: request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("arxiv: unexpected status code: %d", resp.StatusCode())
	}

	return parseFeed(resp.Body())
}

// Atom feed structures. The arxiv namespace prefix on primary_category is
// ignored; encoding/xml matches on the local name.

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
	Categories      []atomCategory `xml:"category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

func parseFeed(data []byte) ([]Entry, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("arxiv: failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		entry, err := e.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (e atomEntry) toEntry() (Entry, error) {
	id := shortID(e.ID)

	published, err := time.Parse(time.RFC3339, e.Published)
	if err != nil {
		return Entry{}, fmt.Errorf("arxiv: entry %s: invalid published time %q: %w", id, e.Published, err)
	}
	updated, err := time.Parse(time.RFC3339, e.Updated)
	if err != nil {
		return Entry{}, fmt.Errorf("arxiv: entry %s: invalid updated time %q: %w", id, e.Updated, err)
	}

	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, a.Name)
	}

	category := e.PrimaryCategory.Term
	if category == "" && len(e.Categories) > 0 {
		category = e.Categories[0].Term
	}

	return Entry{
		ID:        id,
		Title:     e.Title,
		Summary:   e.Summary,
		Authors:   authors,
		Category:  category,
		Published: published,
		Updated:   updated,
	}, nil
}

// shortID extracts the versioned short identifier from an Atom entry URL
// such as "http://arxiv.org/abs/2408.12345v2". Old-style identifiers keep
// their category prefix ("hep-th/9901001v1").
func shortID(idURL string) string {
	const marker = "/abs/"
	if i := strings.Index(idURL, marker); i >= 0 {
		return idURL[i+len(marker):]
	}
	return idURL
}
