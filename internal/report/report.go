// Package report форматирует результаты анализа для вывода в терминал
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
	"github.com/skalibog/cryptoscalp/pkg/models"
)

var quoteAssets = []string{"USDT", "USDC", "FDUSD", "BUSD", "BTC", "ETH"}

// Table печатает сводку по инструментам, отсортированную по символу
func Table(w io.Writer, results []*models.AnalysisResult) {
	sorted := make([]*models.AnalysisResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Symbol < sorted[j].Symbol
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("MARKET SIGNALS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Pair", "Status", "Dir", "Score", "Regime", "Trend", "RSI", "Bias", "Entry", "Stop", "TP1", "TP2", "TP3", "R:R"})

	for _, r := range sorted {
		row := table.Row{
			FormatPair(r.Symbol),
			r.Status.String(),
			r.Direction.String(),
			r.ConfidenceScore,
			r.Regime.String(),
			r.Trend.String(),
			fmt.Sprintf("%.1f", r.RSI),
			fmt.Sprintf("%+.2f", r.OrderBookBias),
			price(r.EntryPrice),
		}
		if r.Direction == models.DirectionNone {
			row = append(row, "-", "-", "-", "-", "-")
		} else {
			row = append(row,
				price(r.StopLoss),
				price(r.TakeProfits[0]),
				price(r.TakeProfits[1]),
				price(r.TakeProfits[2]),
				fmt.Sprintf("%.2f", r.RiskReward))
		}
		t.AppendRow(row)
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 4, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
}

// Reasons печатает подтверждения и блокирующие причины одного результата
func Reasons(w io.Writer, r *models.AnalysisResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(FormatPair(r.Symbol) + " " + r.Status.String())
	t.SetStyle(table.StyleRounded)

	for _, c := range r.Confirmations {
		t.AppendRow(table.Row{"+", c})
	}
	if len(r.Confirmations) > 0 && len(r.BlockingReasons) > 0 {
		t.AppendSeparator()
	}
	for _, b := range r.BlockingReasons {
		t.AppendRow(table.Row{"-", b})
	}
	t.Render()
}

// SignalText текст сигнала для копирования
func SignalText(r *models.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SIGNAL: %s\n", r.Direction)
	fmt.Fprintf(&sb, "PAIR: %s\n", FormatPair(r.Symbol))
	fmt.Fprintf(&sb, "ENTRY: %s\n", price(r.EntryPrice))
	fmt.Fprintf(&sb, "STOP: %s\n", price(r.StopLoss))
	fmt.Fprintf(&sb, "TP1: %s\n", price(r.TakeProfits[0]))
	fmt.Fprintf(&sb, "TP2: %s", price(r.TakeProfits[1]))
	return sb.String()
}

// FormatPair BTCUSDT -> BTC/USDT
func FormatPair(symbol string) string {
	for _, quote := range quoteAssets {
		if base := strings.TrimSuffix(symbol, quote); base != symbol && base != "" {
			return base + "/" + quote
		}
	}
	return symbol
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
