package models

// FeedEntry is one raw Atom entry from the current-filings feed.
// The Has* flags record whether the element was present at all, since an
// empty element and a missing one are handled differently.
type FeedEntry struct {
	Title      string
	HasTitle   bool
	Link       string
	HasLink    bool
	Summary    string
	HasSummary bool
	Updated    string
}

// FilteredEntry is a FeedEntry that passed the "(Reporting)" title filter.
type FilteredEntry struct {
	Link            string `json:"link"`
	Updated         string `json:"updated"`
	Date            string `json:"date"`
	AccessionNumber string `json:"accession_number"`
	Title           string `json:"title"`
}

type Transaction struct {
	TransactionShares               string `json:"transactionShares"`
	TransactionPricePerShare        string `json:"transactionPricePerShare"`
	SharesOwnedFollowingTransaction string `json:"sharesOwnedFollowingTransaction"`
}

type Issuer struct {
	IssuerCik           string `json:"issuerCik"`
	IssuerName          string `json:"issuerName"`
	IssuerTradingSymbol string `json:"issuerTradingSymbol"`
}

// FilingRecord is the issuer and non-derivative transactions of one filing.
type FilingRecord struct {
	AccessionNumber string        `json:"accession_number,omitempty"`
	Link            string        `json:"link,omitempty"`
	Issuer          Issuer        `json:"issuer"`
	Transactions    []Transaction `json:"transactions"`
}
