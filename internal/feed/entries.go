package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/mmcdole/gofeed"

	"github.com/bighogz/secform/internal/markup"
	"github.com/bighogz/secform/internal/models"
)

const (
	atomNS = "http://www.w3.org/2005/Atom"

	// Titles of entries filed by the reporting owner, as opposed to the
	// issuer's copy of the same filing.
	reportingSuffix = "(Reporting)"
)

// parsePage decodes one Atom feed page into raw entries.
func parsePage(body []byte) ([]models.FeedEntry, error) {
	if t := gofeed.DetectFeedType(bytes.NewReader(body)); t != gofeed.FeedTypeAtom {
		return nil, &markup.MalformedError{What: "atom feed", Err: fmt.Errorf("detected feed type %d", t)}
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &markup.MalformedError{What: "atom feed", Err: err}
	}

	entries := make([]models.FeedEntry, 0)
	for _, n := range xmlquery.Find(doc, "//*[local-name()='entry']") {
		if n.NamespaceURI != atomNS {
			continue
		}
		entries = append(entries, readEntry(n))
	}
	return entries, nil
}

func readEntry(n *xmlquery.Node) models.FeedEntry {
	var e models.FeedEntry
	if t := markup.Child(n, "title"); t != nil {
		e.Title, e.HasTitle = t.InnerText(), true
	}
	for _, l := range markup.Children(n, "link") {
		if l.SelectAttr("rel") == "alternate" {
			e.Link, e.HasLink = l.SelectAttr("href"), true
			break
		}
	}
	if s := markup.Child(n, "summary"); s != nil {
		e.Summary, e.HasSummary = s.InnerText(), true
	}
	if u := markup.Child(n, "updated"); u != nil {
		e.Updated = u.InnerText()
	}
	return e
}

// ParseEntries keeps the entries whose title ends in "(Reporting)" and
// pulls the filing date and accession number out of each summary. Order is
// preserved. On a lookup failure it returns the entries accepted so far
// together with the error.
func ParseEntries(raw []models.FeedEntry) ([]models.FilteredEntry, error) {
	out := make([]models.FilteredEntry, 0, len(raw))
	for i, e := range raw {
		switch {
		case !e.HasTitle:
			return out, &markup.MalformedError{What: fmt.Sprintf("entry[%d].title", i)}
		case !e.HasLink:
			return out, &markup.MalformedError{What: fmt.Sprintf("entry[%d].link[@rel=alternate]", i)}
		case !e.HasSummary:
			return out, &markup.MalformedError{What: fmt.Sprintf("entry[%d].summary", i)}
		}
		if !strings.HasSuffix(e.Title, reportingSuffix) {
			continue
		}

		date, err := boldSpan(e.Summary, 1)
		if err != nil {
			return out, fmt.Errorf("entry[%d] date: %w", i, err)
		}
		accession, err := boldSpan(e.Summary, 2)
		if err != nil {
			return out, fmt.Errorf("entry[%d] accession number: %w", i, err)
		}

		out = append(out, models.FilteredEntry{
			Link:            strings.TrimSpace(e.Link),
			Updated:         strings.TrimSpace(e.Updated),
			Date:            strings.TrimSpace(date),
			AccessionNumber: strings.TrimSpace(accession),
			Title:           strings.TrimSpace(e.Title),
		})
	}
	return out, nil
}

// boldSpan returns the value following the label of the nth "<b>label</b>
// value" pair in a feed summary such as
//
//	<b>Filed:</b> 2024-01-02 <b>AccNo:</b> 0001234567-24-000001 <b>Size:</b> 5 KB
//
// where n=1 yields the filing date and n=2 the accession number.
// The text is split on "<b>" and segment n is split on "</b>"; the value
// is the second piece of that split, untrimmed.
func boldSpan(summary string, n int) (string, error) {
	segments := strings.Split(summary, "<b>")
	if n >= len(segments) {
		return "", &markup.MalformedError{What: fmt.Sprintf("summary <b> segment %d", n)}
	}
	parts := strings.Split(segments[n], "</b>")
	if len(parts) < 2 {
		return "", &markup.MalformedError{What: fmt.Sprintf("summary </b> in segment %d", n)}
	}
	return parts[1], nil
}
