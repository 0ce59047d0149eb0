// Package reporter renders an end-of-session summary of the paper
// account: balances, performance metrics, open positions, closed trades
// and the tail of the event log.
package reporter

import (
	"fmt"
	"io"
	"math"
	"time"

	"chart-trigger-bot-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Metrics holds the performance figures derived from a finished session.
type Metrics struct {
	InitialBalance   float64
	FinalEquity      float64
	TotalProfit      float64
	ProfitPercentage float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgProfitLoss    float64
	MaxDrawdown      float64
}

// CalculateMetrics derives session metrics from the account's closed
// trades and the per-tick equity curve.
func CalculateMetrics(acct models.PaperAccount, initialBalance, markPrice float64, equityCurve []float64) Metrics {
	m := Metrics{
		InitialBalance: initialBalance,
		FinalEquity:    acct.Equity(markPrice),
		TotalTrades:    len(acct.PositionHistory),
	}

	var totalWin, totalLoss float64
	for _, trade := range acct.PositionHistory {
		if trade.RealizedPnl > 0 {
			m.WinningTrades++
			totalWin += trade.RealizedPnl
		} else {
			m.LosingTrades++
			totalLoss += trade.RealizedPnl
		}
	}

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if m.WinningTrades > 0 && m.LosingTrades > 0 {
		avgWin := totalWin / float64(m.WinningTrades)
		avgLoss := math.Abs(totalLoss / float64(m.LosingTrades))
		m.AvgProfitLoss = avgWin / avgLoss
	}

	m.TotalProfit = m.FinalEquity - m.InitialBalance
	if m.InitialBalance != 0 {
		m.ProfitPercentage = m.TotalProfit / m.InitialBalance * 100
	}
	m.MaxDrawdown = maxDrawdown(equityCurve) * 100

	return m
}

// WriteReport renders the full session report to w.
func WriteReport(w io.Writer, symbol string, acct models.PaperAccount, markPrice float64, metrics Metrics, eventTail int) {
	fmt.Fprintf(w, "\nSession report: %s\n\n", symbol)

	summary := table.NewWriter()
	summary.SetOutputMirror(w)
	summary.SetStyle(table.StyleLight)
	summary.AppendRows([]table.Row{
		{"Initial balance", fmt.Sprintf("%.2f USD", metrics.InitialBalance)},
		{"Final equity", fmt.Sprintf("%.2f USD", metrics.FinalEquity)},
		{"Free cash", fmt.Sprintf("%.2f USD", acct.BalanceUSD)},
		{"Used margin", fmt.Sprintf("%.2f USD", acct.UsedMargin())},
		{"Total profit", fmt.Sprintf("%.2f USD (%.2f%%)", metrics.TotalProfit, metrics.ProfitPercentage)},
		{"Closed trades", metrics.TotalTrades},
		{"Win rate", fmt.Sprintf("%.2f%% (%d won, %d lost)", metrics.WinRate, metrics.WinningTrades, metrics.LosingTrades)},
		{"Avg win/loss ratio", fmt.Sprintf("%.2f", metrics.AvgProfitLoss)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", metrics.MaxDrawdown)},
	})
	summary.Render()

	if len(acct.OpenPositions) > 0 {
		fmt.Fprintln(w, "\nOpen positions:")
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"ID", "Side", "Amount", "Entry", "Leverage", "Margin", "Unrealized PnL"})
		for _, pos := range acct.OpenPositions {
			tw.AppendRow(table.Row{
				pos.ID,
				pos.Side,
				fmt.Sprintf("%.6f", pos.Amount),
				fmt.Sprintf("%.2f", pos.EntryPrice),
				fmt.Sprintf("%.0fx", pos.Leverage),
				fmt.Sprintf("%.2f", pos.MarginUsedUsd),
				fmt.Sprintf("%.2f", pos.UnrealizedPnl(markPrice)),
			})
		}
		tw.Render()
	}

	if len(acct.PositionHistory) > 0 {
		fmt.Fprintln(w, "\nClosed trades:")
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"ID", "Side", "Amount", "Entry", "Exit", "Realized PnL", "Closed at"})
		for _, trade := range acct.PositionHistory {
			tw.AppendRow(table.Row{
				trade.ID,
				trade.Side,
				fmt.Sprintf("%.6f", trade.Amount),
				fmt.Sprintf("%.2f", trade.EntryPrice),
				fmt.Sprintf("%.2f", trade.ExitPrice),
				fmt.Sprintf("%.2f", trade.RealizedPnl),
				formatMillis(trade.ClosedAt),
			})
		}
		tw.Render()
	}

	if eventTail > 0 && len(acct.ExecutionEvents) > 0 {
		events := acct.ExecutionEvents
		if len(events) > eventTail {
			events = events[len(events)-eventTail:]
		}
		fmt.Fprintf(w, "\nLast %d events:\n", len(events))
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Time", "Kind", "Message"})
		for _, evt := range events {
			tw.AppendRow(table.Row{formatMillis(evt.Timestamp), evt.Kind, evt.Message})
		}
		tw.Render()
	}
}

func maxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) < 2 {
		return 0
	}
	peak := equityCurve[0]
	worst := 0.0
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - equity) / peak
		if drawdown > worst {
			worst = drawdown
		}
	}
	return worst
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
