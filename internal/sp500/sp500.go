// Package sp500 loads the S&P 500 constituent list so results can be
// narrowed to index members.
package sp500

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bighogz/secform/internal/httpclient"
)

type Company struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Sector      string `json:"sector"`
	SubIndustry string `json:"sub_industry,omitempty"`
}

// Index maps normalized ticker symbols to constituents.
type Index map[string]Company

// Contains reports whether symbol is a constituent. Class-share spellings
// "BRK-B", "brk.b" and "BRK.B" are treated alike.
func (ix Index) Contains(symbol string) bool {
	_, ok := ix[Normalize(symbol)]
	return ok
}

func Normalize(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(symbol)), "-", ".")
}

// Load fetches and parses the constituents CSV at url (config.SP500URL in
// the binaries).
func Load(ctx context.Context, f httpclient.Fetcher, url string) (Index, error) {
	if url == "" {
		return nil, errors.New("load constituents: no source URL")
	}
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("load constituents: %w", err)
	}
	return Parse(bytes.NewReader(body))
}

// Parse reads a constituents CSV. Columns are located by header name; only
// "Symbol" is required.
func Parse(r io.Reader) (Index, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse constituents: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("parse constituents: no rows")
	}
	symIdx, nameIdx, sectorIdx, subIdx := -1, -1, -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "symbol":
			symIdx = i
		case "security", "name":
			nameIdx = i
		case "gics sector", "sector":
			sectorIdx = i
		case "gics sub-industry":
			subIdx = i
		}
	}
	if symIdx < 0 {
		return nil, fmt.Errorf("parse constituents: no Symbol column")
	}

	ix := make(Index, len(rows)-1)
	for _, row := range rows[1:] {
		if symIdx >= len(row) {
			continue
		}
		sym := Normalize(row[symIdx])
		if sym == "" {
			continue
		}
		if _, dup := ix[sym]; dup {
			continue
		}
		c := Company{Symbol: sym, Sector: "Unknown"}
		if nameIdx >= 0 && nameIdx < len(row) {
			c.Name = strings.TrimSpace(row[nameIdx])
		}
		if sectorIdx >= 0 && sectorIdx < len(row) {
			if s := strings.TrimSpace(row[sectorIdx]); s != "" {
				c.Sector = s
			}
		}
		if subIdx >= 0 && subIdx < len(row) {
			c.SubIndustry = strings.TrimSpace(row[subIdx])
		}
		ix[sym] = c
	}
	return ix, nil
}
