// Package feed pages through the EDGAR current-filings Atom feed.
package feed

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bighogz/secform/internal/aggregator"
	"github.com/bighogz/secform/internal/config"
	"github.com/bighogz/secform/internal/httpclient"
	"github.com/bighogz/secform/internal/models"
	"github.com/bighogz/secform/internal/telemetry"
)

// PageSize is the number of entries requested per feed page.
const PageSize = 100

// Query selects a window of the feed. Count is the number of raw feed
// entries to scan, starting at Start; results are never longer than Count.
type Query struct {
	Start      int
	Count      int
	FilingType string
	Owner      string
}

type Client struct {
	fetcher httpclient.Fetcher
	baseURL string
}

// New returns a feed client. An empty baseURL uses config.FeedURL.
func New(fetcher httpclient.Fetcher, baseURL string) *Client {
	if baseURL == "" {
		baseURL = config.FeedURL
	}
	return &Client{fetcher: fetcher, baseURL: baseURL}
}

func (c *Client) pageURL(q Query, start int) string {
	params := url.Values{}
	params.Set("action", "getcurrent")
	params.Set("type", q.FilingType)
	params.Set("owner", q.Owner)
	params.Set("start", strconv.Itoa(start))
	params.Set("count", strconv.Itoa(PageSize))
	params.Set("output", "atom")
	return c.baseURL + "?" + params.Encode()
}

// GetRecentFilings fetches pages sequentially until Count raw entries have
// been requested or the feed runs out, then filters them. Any fetch or
// parse failure ends pagination early; whatever was gathered up to that
// point is still filtered and returned. Errors are logged, never returned.
func (c *Client) GetRecentFilings(ctx context.Context, q Query) []models.FilteredEntry {
	if q.Count <= 0 {
		return []models.FilteredEntry{}
	}
	ctx, span := telemetry.Tracer().Start(ctx, "feed.get_recent_filings", trace.WithAttributes(
		attribute.Int("feed.start", q.Start),
		attribute.Int("feed.count", q.Count),
		attribute.String("feed.type", q.FilingType),
	))
	defer span.End()

	raw := make([]models.FeedEntry, 0, min(q.Count, 10*PageSize))
	for offset := 0; offset < q.Count; offset += PageSize {
		start := q.Start + offset
		entries, err := c.fetchPage(ctx, q, start)
		if err != nil {
			slog.WarnContext(ctx, "feed pagination stopped", "start", start, "collected", len(raw), "error", err)
			span.RecordError(err)
			break
		}
		raw = append(raw, entries...)
		if len(entries) < PageSize {
			break
		}
	}

	filtered, err := ParseEntries(raw)
	if err != nil {
		slog.WarnContext(ctx, "feed entry filtering stopped", "kept", len(filtered), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	filtered = aggregator.DedupeEntries(filtered)
	if len(filtered) > q.Count {
		filtered = filtered[:q.Count]
	}
	span.SetAttributes(attribute.Int("feed.raw_entries", len(raw)), attribute.Int("feed.filtered_entries", len(filtered)))
	return filtered
}

func (c *Client) fetchPage(ctx context.Context, q Query, start int) ([]models.FeedEntry, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "feed.page", trace.WithAttributes(attribute.Int("feed.page_start", start)))
	defer span.End()

	body, err := c.fetcher.Fetch(ctx, c.pageURL(q, start))
	if err != nil {
		return nil, err
	}
	entries, err := parsePage(body)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "feed page fetched", "start", start, "entries", len(entries))
	return entries, nil
}
