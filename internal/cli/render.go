package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"stockpilot/internal/domain"
)

func renderBatch(w io.Writer, batch *domain.BatchResult) {
	fmt.Fprintf(w, "Strategy: %s  Mode: %s\n\n", batch.Strategy, batch.Mode)
	if len(batch.Results) == 0 {
		fmt.Fprintln(w, "No trades planned.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tSIDE\tQTY\tPRICE\tAMOUNT\tSTATUS\tORDER ID\tREASON")
	for _, r := range batch.Results {
		symbol := r.Intent.Symbol
		if r.Intent.Option != nil {
			symbol = r.Intent.Option.ContractSymbol
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			symbol, r.Intent.Side, r.Intent.Quantity,
			r.Intent.EstimatedPrice.StringFixed(2), r.Intent.EstimatedAmount.StringFixed(2),
			r.Status, r.BrokerOrderID, r.ReasonCode)
	}
	tw.Flush()

	s := batch.Summary
	fmt.Fprintf(w, "\nTotal: %d  Previewed: %d  Submitted: %d  Failed: %d\n", s.Total, s.Previewed, s.Submitted, s.Failed)
	if s.Previewed > 0 {
		fmt.Fprintf(w, "Estimated amount (non-binding): $%s\n", s.EstimatedAmount.StringFixed(2))
	}
	if s.Submitted > 0 {
		fmt.Fprintf(w, "Realized amount: $%s\n", s.RealizedAmount.StringFixed(2))
	}
}

func renderSnapshot(w io.Writer, snap *domain.AccountSnapshot) {
	fmt.Fprintf(w, "Snapshot taken: %s\n", snap.TakenAt().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Liquidation value:  $%s\n", snap.LiquidationValue().StringFixed(2))
	fmt.Fprintf(w, "Cash available:     $%s\n", snap.CashAvailable().StringFixed(2))
	fmt.Fprintf(w, "Buying power:       $%s\n", snap.BuyingPower().StringFixed(2))
	for _, warn := range snap.Warnings() {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func renderPositions(w io.Writer, snap *domain.AccountSnapshot) {
	positions := snap.Positions()
	if len(positions) == 0 {
		fmt.Fprintln(w, "No positions held.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG COST\tLAST\tMARKET VALUE")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			p.Symbol, p.Quantity, p.AverageCost.StringFixed(2),
			p.LastPrice.StringFixed(2), p.MarketValue().StringFixed(2))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nTotal market value: $%s\n", snap.TotalMarketValue().StringFixed(2))
}

func renderHistory(w io.Writer, records []*domain.AuditRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No trade history recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTRATEGY\tSYMBOL\tSIDE\tQTY\tPRICE\tAMOUNT\tSTATUS\tORDER ID")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04"), r.StrategyTag, r.Symbol, r.Side,
			r.Quantity, r.Price.StringFixed(2), r.Amount.StringFixed(2), r.Status, r.BrokerOrderID)
	}
	tw.Flush()
}
