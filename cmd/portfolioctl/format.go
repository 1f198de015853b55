package main

import (
	"io"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/ndewijer/portfolio-rebalancer/internal/model"
)

// displayCurrency is the ISO code amounts are displayed in.
const displayCurrency = "USD"

// formatMoney renders a float amount as US dollars, rounded to cents.
func formatMoney(v float64) string {
	return money.New(int64(math.Round(v*100)), displayCurrency).Display()
}

// formatDecimalMoney renders a decimal amount as US dollars.
func formatDecimalMoney(d decimal.Decimal) string {
	return money.New(d.Shift(2).Round(0).IntPart(), displayCurrency).Display()
}

func formatPct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// renderTable writes rows under header as a borderless table.
func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// renderWarnings lists report warnings below a table. Nothing is written
// when there are none.
func renderWarnings(w io.Writer, warnings []model.Warning) {
	if len(warnings) == 0 {
		return
	}
	rows := make([][]string, 0, len(warnings))
	for _, warn := range warnings {
		rows = append(rows, []string{string(warn.Kind), warn.Message})
	}
	io.WriteString(w, "\n")
	renderTable(w, []string{"Warning", "Message"}, rows)
}

// tickerIndex maps holding ids to tickers for display.
func tickerIndex(holdings []model.Holding) map[string]string {
	index := make(map[string]string, len(holdings))
	for _, h := range holdings {
		index[h.ID] = h.Ticker
	}
	return index
}

// accountIndex maps account ids to names for display.
func accountIndex(accounts []model.Account) map[string]string {
	index := make(map[string]string, len(accounts))
	for _, a := range accounts {
		index[a.ID] = a.Name
	}
	return index
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
