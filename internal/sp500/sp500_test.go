package sp500

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/secform/internal/httpclient"
)

const constituents = `Symbol,Security,GICS Sector,GICS Sub-Industry,Headquarters Location
AAPL,Apple Inc.,Information Technology,"Technology Hardware, Storage & Peripherals","Cupertino, California"
BRK.B,Berkshire Hathaway,Financials,Multi-Sector Holdings,"Omaha, Nebraska"
TSLA,Tesla, Inc.,Consumer Discretionary,Automobile Manufacturers,"Austin, Texas"
AAPL,Apple duplicate,,,
`

func TestParse(t *testing.T) {
	_, err := Parse(strings.NewReader(constituents))
	require.Error(t, err, "TSLA row has an unquoted comma")

	fixed := strings.Replace(constituents, "Tesla, Inc.", `"Tesla, Inc."`, 1)
	ix, err := Parse(strings.NewReader(fixed))
	require.NoError(t, err)
	require.Len(t, ix, 3)
	assert.Equal(t, Company{
		Symbol:      "AAPL",
		Name:        "Apple Inc.",
		Sector:      "Information Technology",
		SubIndustry: "Technology Hardware, Storage & Peripherals",
	}, ix["AAPL"])
	assert.True(t, ix.Contains("brk-b"))
	assert.True(t, ix.Contains(" TSLA "))
	assert.False(t, ix.Contains("NVDA"))
}

func TestParseRequiresSymbolColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Ticker,Name\nAAPL,Apple\n"))
	require.ErrorContains(t, err, "Symbol")
}

func TestLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Symbol,Security\nAAPL,Apple Inc.\n"))
	}))
	defer srv.Close()

	f := httpclient.New(httpclient.WithRateLimit(0), httpclient.WithMaxRetries(0))
	ix, err := Load(context.Background(), f, srv.URL)
	require.NoError(t, err)
	assert.True(t, ix.Contains("AAPL"))
	assert.Equal(t, "Unknown", ix["AAPL"].Sector)
}

func TestLoadRequiresURL(t *testing.T) {
	f := httpclient.New(httpclient.WithRateLimit(0), httpclient.WithMaxRetries(0))
	_, err := Load(context.Background(), f, "")
	require.ErrorContains(t, err, "no source URL")
}
