package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bighogz/secform/internal/aggregator"
	"github.com/bighogz/secform/internal/models"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

func writeEntries(w io.Writer, format string, entries []models.FilteredEntry) error {
	header := []string{"date", "accession_number", "title", "updated", "link"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Date, e.AccessionNumber, e.Title, e.Updated, e.Link})
	}
	return write(w, format, entries, header, rows)
}

// writeRecords prints one row per transaction; filings without
// transactions still get a row so the issuer is visible.
func writeRecords(w io.Writer, format string, records []models.FilingRecord) error {
	header := []string{"accession_number", "issuer_cik", "issuer_name", "symbol", "shares", "price_per_share", "shares_owned_following"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		base := []string{r.AccessionNumber, r.Issuer.IssuerCik, r.Issuer.IssuerName, r.Issuer.IssuerTradingSymbol}
		if len(r.Transactions) == 0 {
			rows = append(rows, append(base, "", "", ""))
			continue
		}
		for _, tx := range r.Transactions {
			row := append(append([]string{}, base...), tx.TransactionShares, tx.TransactionPricePerShare, tx.SharesOwnedFollowingTransaction)
			rows = append(rows, row)
		}
	}
	return write(w, format, records, header, rows)
}

func writeSummary(w io.Writer, format string, summaries []aggregator.IssuerSummary) error {
	header := []string{"issuer_cik", "issuer_name", "symbol", "filings", "transactions", "total_shares", "last_shares_following"}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.IssuerCik,
			s.IssuerName,
			s.TradingSymbol,
			fmt.Sprintf("%d", s.Filings),
			fmt.Sprintf("%d", s.Transactions),
			fmt.Sprintf("%.0f", s.TotalShares),
			fmt.Sprintf("%.0f", s.LastSharesFollowing),
		})
	}
	return write(w, format, summaries, header, rows)
}

func write(w io.Writer, format string, v any, header []string, rows [][]string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatCSV:
		cw := csv.NewWriter(w)
		cw.Write(header)
		cw.WriteAll(rows)
		return cw.Error()
	default:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(toRow(header))
		for _, r := range rows {
			t.AppendRow(toRow(r))
		}
		if len(rows) == 0 {
			t.AppendFooter(table.Row{"(no data)"})
		}
		t.Render()
		return nil
	}
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
