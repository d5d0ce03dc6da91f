// Package form4 reads issuer and non-derivative transaction facts out of an
// ownership document.
package form4

import (
	"errors"

	"github.com/antchfx/xmlquery"

	"github.com/bighogz/secform/internal/markup"
	"github.com/bighogz/secform/internal/models"
)

// ErrUnsupportedSchema marks documents carrying a derivative table. Those
// filings are skipped rather than treated as failures.
var ErrUnsupportedSchema = errors.New("form4: derivative table present")

// ScrapeTransaction reads one nonDerivativeTransaction element.
func ScrapeTransaction(n *xmlquery.Node) (models.Transaction, error) {
	var tx models.Transaction
	var err error
	if tx.TransactionShares, err = markup.Text(n, "transactionAmounts", "transactionShares", "value"); err != nil {
		return models.Transaction{}, err
	}
	if tx.TransactionPricePerShare, err = markup.Text(n, "transactionAmounts", "transactionPricePerShare", "value"); err != nil {
		return models.Transaction{}, err
	}
	if tx.SharesOwnedFollowingTransaction, err = markup.Text(n, "postTransactionAmounts", "sharesOwnedFollowingTransaction", "value"); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

// ScrapeIssuer reads an issuer element.
func ScrapeIssuer(n *xmlquery.Node) (models.Issuer, error) {
	var is models.Issuer
	var err error
	if is.IssuerCik, err = markup.Text(n, "issuerCik"); err != nil {
		return models.Issuer{}, err
	}
	if is.IssuerName, err = markup.Text(n, "issuerName"); err != nil {
		return models.Issuer{}, err
	}
	if is.IssuerTradingSymbol, err = markup.Text(n, "issuerTradingSymbol"); err != nil {
		return models.Issuer{}, err
	}
	return is, nil
}

// ParseDocument extracts the issuer and every non-derivative transaction of
// a parsed ownership document. It returns ErrUnsupportedSchema when the
// document has a derivativeTable anywhere.
func ParseDocument(doc *xmlquery.Node) (models.Issuer, []models.Transaction, error) {
	if markup.Find(doc, "derivativeTable") != nil {
		return models.Issuer{}, nil, ErrUnsupportedSchema
	}

	table := markup.Find(doc, "nonDerivativeTable")
	if table == nil {
		return models.Issuer{}, nil, &markup.MalformedError{What: "nonDerivativeTable"}
	}
	txs := make([]models.Transaction, 0)
	for _, n := range markup.Children(table, "nonDerivativeTransaction") {
		tx, err := ScrapeTransaction(n)
		if err != nil {
			return models.Issuer{}, nil, err
		}
		txs = append(txs, tx)
	}

	issuerNode := markup.Find(doc, "issuer")
	if issuerNode == nil {
		return models.Issuer{}, nil, &markup.MalformedError{What: "issuer"}
	}
	issuer, err := ScrapeIssuer(issuerNode)
	if err != nil {
		return models.Issuer{}, nil, err
	}
	return issuer, txs, nil
}
