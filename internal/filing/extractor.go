// Package filing resolves filtered feed entries into issuer and
// transaction records by fetching and parsing each submission document.
package filing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/bighogz/secform/internal/config"
	"github.com/bighogz/secform/internal/form4"
	"github.com/bighogz/secform/internal/httpclient"
	"github.com/bighogz/secform/internal/markup"
	"github.com/bighogz/secform/internal/models"
	"github.com/bighogz/secform/internal/telemetry"
)

const (
	indexSuffix    = "-index.htm"
	documentSuffix = ".txt"

	fragmentPreviewBytes = 512
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type Extractor struct {
	fetcher        httpclient.Fetcher
	workers        int
	diagnosticsDir string
}

type Option func(*Extractor)

// WithWorkers bounds how many filings are fetched and parsed at once.
func WithWorkers(n int) Option {
	return func(x *Extractor) { x.workers = max(n, 1) }
}

// WithDiagnosticsDir makes failing fragments be written to dir, one file
// per accession number. An empty dir disables the files.
func WithDiagnosticsDir(dir string) Option {
	return func(x *Extractor) { x.diagnosticsDir = dir }
}

func New(fetcher httpclient.Fetcher, opts ...Option) *Extractor {
	x := &Extractor{
		fetcher:        fetcher,
		workers:        max(config.DetailWorkers, 1),
		diagnosticsDir: config.DiagnosticsDir,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// DocumentURL maps a filing index page link to its full submission text file.
func DocumentURL(link string) (string, error) {
	if !strings.HasSuffix(link, indexSuffix) {
		return "", &markup.MalformedError{What: "link suffix " + indexSuffix, Err: fmt.Errorf("unexpected link %q", link)}
	}
	return strings.TrimSuffix(link, indexSuffix) + documentSuffix, nil
}

// DetailEntries builds one record per entry whose document parses. Filings
// with derivative tables are skipped, and a failing entry is logged and
// dropped without affecting the others. Surviving records keep input order.
func (x *Extractor) DetailEntries(ctx context.Context, entries []models.FilteredEntry) []models.FilingRecord {
	results := make([]*models.FilingRecord, len(entries))

	var g errgroup.Group
	g.SetLimit(x.workers)
	for i, e := range entries {
		g.Go(func() error {
			rec, fragment, err := x.detailEntry(ctx, e)
			switch {
			case errors.Is(err, form4.ErrUnsupportedSchema):
				slog.DebugContext(ctx, "skipping filing with derivative table", "accession", e.AccessionNumber)
			case err != nil:
				x.reportFailure(ctx, i, e, fragment, err)
			default:
				results[i] = &rec
			}
			return nil
		})
	}
	g.Wait()

	out := make([]models.FilingRecord, 0, len(entries))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// detailEntry also returns the last fragment it worked on so failures can
// be diagnosed.
func (x *Extractor) detailEntry(ctx context.Context, e models.FilteredEntry) (models.FilingRecord, string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "filing.detail", trace.WithAttributes(
		attribute.String("filing.accession", e.AccessionNumber),
	))
	defer span.End()

	rec, fragment, err := x.extract(ctx, e)
	if err != nil && !errors.Is(err, form4.ErrUnsupportedSchema) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return rec, fragment, err
}

func (x *Extractor) extract(ctx context.Context, e models.FilteredEntry) (models.FilingRecord, string, error) {
	docURL, err := DocumentURL(e.Link)
	if err != nil {
		return models.FilingRecord{}, "", err
	}
	body, err := x.fetcher.Fetch(ctx, docURL)
	if err != nil {
		return models.FilingRecord{}, "", err
	}
	text := string(body)

	fragment, err := markup.ExtractXML(text)
	if err != nil {
		return models.FilingRecord{}, text, err
	}
	doc, err := markup.Parse(fragment)
	if err != nil {
		return models.FilingRecord{}, fragment, err
	}
	issuer, txs, err := form4.ParseDocument(doc)
	if err != nil {
		return models.FilingRecord{}, fragment, err
	}
	return models.FilingRecord{
		AccessionNumber: e.AccessionNumber,
		Link:            e.Link,
		Issuer:          issuer,
		Transactions:    txs,
	}, fragment, nil
}

func (x *Extractor) reportFailure(ctx context.Context, idx int, e models.FilteredEntry, fragment string, err error) {
	preview := fragment
	if len(preview) > fragmentPreviewBytes {
		preview = preview[:fragmentPreviewBytes]
	}
	attrs := []any{
		"accession", e.AccessionNumber,
		"link", e.Link,
		"error", err,
		"fragment_bytes", len(fragment),
		"fragment", preview,
	}
	if path, werr := x.writeDiagnostic(idx, e, fragment); werr != nil {
		attrs = append(attrs, "diagnostic_error", werr)
	} else if path != "" {
		attrs = append(attrs, "diagnostic_file", path)
	}
	slog.WarnContext(ctx, "filing detail failed", attrs...)
}

func (x *Extractor) writeDiagnostic(idx int, e models.FilteredEntry, fragment string) (string, error) {
	if x.diagnosticsDir == "" || fragment == "" {
		return "", nil
	}
	name := unsafeFileChars.ReplaceAllString(e.AccessionNumber, "_")
	if name == "" {
		name = fmt.Sprintf("entry-%d", idx)
	}
	if err := os.MkdirAll(x.diagnosticsDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(x.diagnosticsDir, name+".xml")
	if err := os.WriteFile(path, []byte(fragment), 0644); err != nil {
		return "", err
	}
	return path, nil
}
