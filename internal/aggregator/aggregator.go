package aggregator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/bighogz/secform/internal/models"
)

// DedupeEntries drops entries identical to an earlier one in accession
// number, link and title. The live feed can shift between page requests, so
// one entry may show up at the end of one page and the start of the next.
// A joint filing lists one entry per reporting owner under a single
// accession number; those differ in title and link and are all kept.
// Entries without an accession number are kept as-is.
func DedupeEntries(entries []models.FilteredEntry) []models.FilteredEntry {
	seen := make(map[entryKey]bool)
	return lo.Filter(entries, func(e models.FilteredEntry, _ int) bool {
		key := entryKey{
			accession: strings.TrimSpace(e.AccessionNumber),
			link:      strings.TrimSpace(e.Link),
			title:     strings.TrimSpace(e.Title),
		}
		if key.accession == "" {
			return true
		}
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
}

type entryKey struct {
	accession, link, title string
}

// FilterIssuers keeps the records whose issuer satisfies keep.
func FilterIssuers(records []models.FilingRecord, keep func(models.Issuer) bool) []models.FilingRecord {
	return lo.Filter(records, func(r models.FilingRecord, _ int) bool {
		return keep(r.Issuer)
	})
}

// IssuerSummary totals the non-derivative activity reported for one issuer.
type IssuerSummary struct {
	IssuerCik           string  `json:"issuer_cik"`
	IssuerName          string  `json:"issuer_name"`
	TradingSymbol       string  `json:"trading_symbol"`
	Filings             int     `json:"filings"`
	Transactions        int     `json:"transactions"`
	TotalShares         float64 `json:"total_shares"`
	LastSharesFollowing float64 `json:"last_shares_following"`
}

// Summarize groups records by issuer CIK, sorted by total transaction
// shares descending. Unparseable numeric strings count as zero.
func Summarize(records []models.FilingRecord) []IssuerSummary {
	byIssuer := lo.GroupBy(records, func(r models.FilingRecord) string {
		return strings.TrimLeft(r.Issuer.IssuerCik, "0")
	})

	out := make([]IssuerSummary, 0, len(byIssuer))
	for _, recs := range byIssuer {
		first := recs[0].Issuer
		s := IssuerSummary{
			IssuerCik:     first.IssuerCik,
			IssuerName:    first.IssuerName,
			TradingSymbol: strings.ToUpper(first.IssuerTradingSymbol),
			Filings:       len(recs),
		}
		for _, r := range recs {
			for _, tx := range r.Transactions {
				s.Transactions++
				s.TotalShares += toFloat(tx.TransactionShares)
				s.LastSharesFollowing = toFloat(tx.SharesOwnedFollowingTransaction)
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalShares != out[j].TotalShares {
			return out[i].TotalShares > out[j].TotalShares
		}
		return out[i].IssuerCik < out[j].IssuerCik
	})
	return out
}

func toFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
