package filing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/secform/internal/httpclient"
	"github.com/bighogz/secform/internal/markup"
	"github.com/bighogz/secform/internal/models"
)

const appleAccession = "0001127602-24-014530"

// archive serves testdata submissions. Names starting with "copy-" get the
// Apple filing; names in fail answer 500.
type archive struct {
	mu   sync.Mutex
	fail map[string]bool
	hits []string
}

func (a *archive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(path.Base(r.URL.Path), ".txt")
	a.mu.Lock()
	a.hits = append(a.hits, path.Base(r.URL.Path))
	fail := a.fail[name]
	a.mu.Unlock()

	if fail {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	if strings.HasPrefix(name, "copy-") {
		name = appleAccession
	}
	body, err := os.ReadFile(filepath.Join("testdata", name+".txt"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Write(body)
}

func newTestExtractor(t *testing.T, a *archive, opts ...Option) (*Extractor, string) {
	t.Helper()
	srv := httptest.NewServer(a)
	t.Cleanup(srv.Close)
	fetcher := httpclient.New(httpclient.WithRateLimit(0), httpclient.WithMaxRetries(0))
	opts = append([]Option{WithDiagnosticsDir("")}, opts...)
	return New(fetcher, opts...), srv.URL
}

func entryFor(base, accession string) models.FilteredEntry {
	return models.FilteredEntry{
		Link:            base + "/Archives/edgar/data/1/" + accession + "-index.htm",
		Date:            "2024-05-01",
		AccessionNumber: accession,
		Title:           "4 - Owner (Reporting)",
	}
}

func TestDocumentURL(t *testing.T) {
	got, err := DocumentURL("https://www.sec.gov/Archives/edgar/data/1214156/000112760224014530/0001127602-24-014530-index.htm")
	require.NoError(t, err)
	require.Equal(t, "https://www.sec.gov/Archives/edgar/data/1214156/000112760224014530/0001127602-24-014530.txt", got)

	_, err = DocumentURL("https://www.sec.gov/Archives/edgar/data/1214156/000112760224014530/form4.xml")
	require.ErrorIs(t, err, markup.ErrMalformed)
}

func TestDetailEntries(t *testing.T) {
	x, base := newTestExtractor(t, &archive{})

	got := x.DetailEntries(context.Background(), []models.FilteredEntry{entryFor(base, appleAccession)})
	want := []models.FilingRecord{{
		AccessionNumber: appleAccession,
		Link:            base + "/Archives/edgar/data/1/" + appleAccession + "-index.htm",
		Issuer: models.Issuer{
			IssuerCik:           "0000320193",
			IssuerName:          "Apple Inc.",
			IssuerTradingSymbol: "AAPL",
		},
		Transactions: []models.Transaction{
			{TransactionShares: "500", TransactionPricePerShare: "12.50", SharesOwnedFollowingTransaction: "1500"},
			{TransactionShares: "250", TransactionPricePerShare: "13.00", SharesOwnedFollowingTransaction: "1250"},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDetailEntriesFetchFailureSkipsOnlyThatEntry(t *testing.T) {
	a := &archive{fail: map[string]bool{"copy-2": true}}
	x, base := newTestExtractor(t, a)

	entries := []models.FilteredEntry{
		entryFor(base, "copy-1"),
		entryFor(base, "copy-2"),
		entryFor(base, "copy-3"),
	}
	got := x.DetailEntries(context.Background(), entries)
	require.Len(t, got, 2)
	require.Equal(t, "copy-1", got[0].AccessionNumber)
	require.Equal(t, "copy-3", got[1].AccessionNumber)
	require.Len(t, a.hits, 3)
}

func TestDetailEntriesSkipsDerivativeFilings(t *testing.T) {
	dir := t.TempDir()
	x, base := newTestExtractor(t, &archive{}, WithDiagnosticsDir(dir))

	got := x.DetailEntries(context.Background(), []models.FilteredEntry{
		entryFor(base, "0001045810-24-000101"),
		entryFor(base, "0001318605-24-000033"),
	})
	require.Len(t, got, 1)
	require.Equal(t, "TSLA", got[0].Issuer.IssuerTradingSymbol)
	require.NotNil(t, got[0].Transactions)
	require.Empty(t, got[0].Transactions)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, files, "a derivative skip is not a failure")
}

func TestDetailEntriesWritesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	x, base := newTestExtractor(t, &archive{}, WithDiagnosticsDir(dir))

	got := x.DetailEntries(context.Background(), []models.FilteredEntry{
		entryFor(base, "0000789019-24-000077"),
		entryFor(base, "0000000000-24-000000"),
	})
	require.Empty(t, got)

	fragment, err := os.ReadFile(filepath.Join(dir, "0000789019-24-000077.xml"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(fragment), `<?xml version="1.0"?>`))
	require.Contains(t, string(fragment), "MICROSOFT CORP")

	whole, err := os.ReadFile(filepath.Join(dir, "0000000000-24-000000.xml"))
	require.NoError(t, err)
	require.Contains(t, string(whole), "no embedded markup here")
}

func TestDetailEntriesRejectsUnexpectedLink(t *testing.T) {
	a := &archive{}
	x, base := newTestExtractor(t, a)

	e := entryFor(base, appleAccession)
	e.Link = base + "/Archives/edgar/data/1/" + appleAccession + ".htm"
	got := x.DetailEntries(context.Background(), []models.FilteredEntry{e})
	require.Empty(t, got)
	require.Empty(t, a.hits)
}

func TestDetailEntriesPreservesOrderAcrossWorkers(t *testing.T) {
	x, base := newTestExtractor(t, &archive{}, WithWorkers(4))

	entries := make([]models.FilteredEntry, 20)
	for i := range entries {
		entries[i] = entryFor(base, fmt.Sprintf("copy-%02d", i))
	}
	got := x.DetailEntries(context.Background(), entries)
	require.Len(t, got, 20)
	for i, rec := range got {
		require.Equal(t, fmt.Sprintf("copy-%02d", i), rec.AccessionNumber)
	}
}

func TestDetailEntriesEmpty(t *testing.T) {
	x, _ := newTestExtractor(t, &archive{})
	got := x.DetailEntries(context.Background(), nil)
	require.NotNil(t, got)
	require.Empty(t, got)
}
