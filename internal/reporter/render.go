package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/elys-network/clpm/internal/analyzer"
	"github.com/elys-network/clpm/internal/types"
)

// RenderWeekly writes the weekly summaries as a table followed by a totals line.
func RenderWeekly(w io.Writer, weeks []PeriodSummary) error {
	if len(weeks) == 0 {
		_, err := fmt.Fprintln(w, "no fee periods to report")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Week", "From", "To", "Records", "Fees A", "Fees B", "USD", "Annualized", "Sources")

	var total float64
	for i, s := range weeks {
		total += s.TotalUSD
		if err := table.Append(
			fmt.Sprintf("%d", i+1),
			s.From.Format("2006-01-02"),
			s.To.Format("2006-01-02"),
			fmt.Sprintf("%d", s.Records),
			s.AmountA.String(),
			s.AmountB.String(),
			fmt.Sprintf("$%.2f", s.TotalUSD),
			fmt.Sprintf("$%.2f", s.AnnualizedUSD),
			sourceBreakdown(s.BySource),
		); err != nil {
			return fmt.Errorf("failed to append report row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render weekly report: %w", err)
	}

	_, err := fmt.Fprintf(w, "  Total: $%.2f over %d weeks (avg $%.2f/week)\n", total, len(weeks), total/float64(len(weeks)))
	return err
}

// RenderTarget writes the target tracking status.
func RenderTarget(w io.Writer, st TargetStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")

	rows := [][]string{
		{"Annual target", fmt.Sprintf("$%.2f", st.TargetAnnualUSD)},
		{"Weekly target", fmt.Sprintf("$%.2f", st.WeeklyTargetUSD)},
		{fmt.Sprintf("Avg weekly (%dw)", st.TrailingWeeks), fmt.Sprintf("$%.2f", st.AverageWeeklyUSD)},
		{"Projected annual", fmt.Sprintf("$%.2f", st.ProjectedAnnualUSD)},
		{"Progress", fmt.Sprintf("%.1f%%", st.ProgressPercent)},
		{"On track", fmt.Sprintf("%t", st.OnTrack)},
	}
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return fmt.Errorf("failed to append target row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render target report: %w", err)
	}

	_, err := fmt.Fprintf(w, "  %s\n", st.Recommendation)
	return err
}

// RenderAdvisory writes the advisory projection, comparing the configured and suggested ranges.
func RenderAdvisory(w io.Writer, adv Advisory) error {
	if _, err := fmt.Fprintf(w, "\n[%s] %s/%s on %s: price $%.4f, 24h volume $%.0f, TVL $%.0f, active liquidity $%.0f\n",
		adv.GeneratedAt.Format("2006-01-02 15:04"), adv.Pair.BaseSymbol, adv.Pair.QuoteSymbol, adv.Pair.DexID,
		adv.Pair.PriceUSD, adv.Pair.Volume24hUSD, adv.Pair.LiquidityUSD, adv.ActiveLiquidityUSD); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Range", "Base APR", "Factor", "Naive", "Eff. APR", "Req. capital", "Naive req.", "Exp. weekly", "Edge IL")

	appendRow := func(label string, p analyzer.YieldProjection) error {
		return table.Append(
			label,
			fmt.Sprintf("%.2f%%", p.BaseAPR*100),
			fmt.Sprintf("%.2fx", p.ConcentrationFactor),
			fmt.Sprintf("%.2fx", p.NaiveFactor),
			fmt.Sprintf("%.2f%%", p.EffectiveAPR*100),
			fmt.Sprintf("$%.0f", p.RequiredCapitalUSD),
			fmt.Sprintf("$%.0f", p.NaiveRequiredCapital),
			fmt.Sprintf("$%.2f", p.ExpectedWeeklyFees),
			fmt.Sprintf("%.2f%%", p.EdgeImpermanentLoss*100),
		)
	}
	if err := appendRow("configured", adv.Configured); err != nil {
		return fmt.Errorf("failed to append advisory row: %w", err)
	}
	if adv.Suggested != nil {
		label := fmt.Sprintf("suggested ±%.1f%%", adv.SuggestedRangePercent)
		if err := appendRow(label, *adv.Suggested); err != nil {
			return fmt.Errorf("failed to append advisory row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render advisory: %w", err)
	}

	if adv.AnnualVolatility > 0 {
		if _, err := fmt.Fprintf(w, "  Annualized volatility: %.1f%%\n", adv.AnnualVolatility*100); err != nil {
			return err
		}
	}
	for _, warning := range adv.Warnings {
		if _, err := fmt.Fprintf(w, "  ⚠ %s\n", warning); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "  Advisory only: market data never drives rebalancing or compounding.")
	return err
}

func sourceBreakdown(bySource map[types.FeeSource]float64) string {
	if len(bySource) == 0 {
		return "-"
	}
	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, string(src))
	}
	sort.Strings(sources)

	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		parts = append(parts, fmt.Sprintf("%s $%.2f", src, bySource[types.FeeSource(src)]))
	}
	return strings.Join(parts, ", ")
}
