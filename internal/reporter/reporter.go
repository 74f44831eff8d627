/*

This file contains the fee summaries and target tracking built from recorded fee events.

The reporter is read-only over the fee ledger: it never talks to the manager, the venue or the
oracle, and the figures it derives are never used for lifecycle decisions.

*/

package reporter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/types"
	"github.com/elys-network/clpm/internal/utils"
)

var reportLogger = logger.GetForComponent("reporter")

var (
	ErrInvalidPeriod = errors.New("invalid report period")
	ErrNoLedger      = errors.New("reporter requires a fee ledger")
)

const (
	Week           = 7 * 24 * time.Hour
	year           = 365 * 24 * time.Hour
	weeksPerYear   = 52
	MaxReportWeeks = 104
)

// FeeLedger is the read side of the fee record store.
type FeeLedger interface {
	ListFeeRecords(ctx context.Context, from, to time.Time) ([]types.FeeRecord, error)
}

// Reporter derives summaries from the fee ledger.
type Reporter struct {
	ledger          FeeLedger
	targetAnnualUSD float64
	now             func() time.Time
}

func NewReporter(ledger FeeLedger, targetAnnualFeesUSD float64, now func() time.Time) (*Reporter, error) {
	if ledger == nil {
		return nil, ErrNoLedger
	}
	if math.IsNaN(targetAnnualFeesUSD) || math.IsInf(targetAnnualFeesUSD, 0) || targetAnnualFeesUSD < 0 {
		return nil, fmt.Errorf("target annual fees must be finite and non-negative, got %v", targetAnnualFeesUSD)
	}
	if now == nil {
		now = time.Now
	}
	return &Reporter{ledger: ledger, targetAnnualUSD: targetAnnualFeesUSD, now: now}, nil
}

// PeriodSummary aggregates the fee records with From <= timestamp < To.
type PeriodSummary struct {
	From          time.Time                   `json:"from"`
	To            time.Time                   `json:"to"`
	Records       int                         `json:"records"`
	AmountA       sdkmath.Int                 `json:"amount_a"`
	AmountB       sdkmath.Int                 `json:"amount_b"`
	TotalUSD      float64                     `json:"total_usd"`
	BySource      map[types.FeeSource]float64 `json:"by_source"`
	AnnualizedUSD float64                     `json:"annualized_usd"`
}

// Summarize aggregates a single period.
func (r *Reporter) Summarize(ctx context.Context, from, to time.Time) (PeriodSummary, error) {
	if !to.After(from) {
		return PeriodSummary{}, fmt.Errorf("%w: %s is not after %s", ErrInvalidPeriod, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	records, err := r.ledger.ListFeeRecords(ctx, from, to)
	if err != nil {
		return PeriodSummary{}, fmt.Errorf("failed to list fee records: %w", err)
	}
	return summarize(from, to, records), nil
}

func summarize(from, to time.Time, records []types.FeeRecord) PeriodSummary {
	s := PeriodSummary{
		From:     from,
		To:       to,
		AmountA:  sdkmath.ZeroInt(),
		AmountB:  sdkmath.ZeroInt(),
		BySource: make(map[types.FeeSource]float64),
	}
	for _, rec := range records {
		if rec.Timestamp.Before(from) || !rec.Timestamp.Before(to) {
			continue
		}
		s.Records++
		s.AmountA = s.AmountA.Add(utils.OrZero(rec.AmountA))
		s.AmountB = s.AmountB.Add(utils.OrZero(rec.AmountB))
		s.TotalUSD += rec.USDValue
		s.BySource[rec.Source] += rec.USDValue
	}
	s.AnnualizedUSD = s.TotalUSD * float64(year) / float64(to.Sub(from))
	return s
}

// WeeklySummaries returns the trailing weeks ending now, oldest first. Records are fetched once.
func (r *Reporter) WeeklySummaries(ctx context.Context, weeks int) ([]PeriodSummary, error) {
	if weeks <= 0 || weeks > MaxReportWeeks {
		return nil, fmt.Errorf("%w: weeks must be within [1, %d], got %d", ErrInvalidPeriod, MaxReportWeeks, weeks)
	}
	end := r.now().UTC()
	start := end.Add(-time.Duration(weeks) * Week)

	records, err := r.ledger.ListFeeRecords(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list fee records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp.Before(records[j].Timestamp) })

	summaries := make([]PeriodSummary, 0, weeks)
	for i := 0; i < weeks; i++ {
		from := start.Add(time.Duration(i) * Week)
		summaries = append(summaries, summarize(from, from.Add(Week), records))
	}

	reportLogger.Debug().Int("weeks", weeks).Int("records", len(records)).Msg("Built weekly summaries")
	return summaries, nil
}

// TargetStatus compares the trailing fee run-rate with the annual target.
type TargetStatus struct {
	TargetAnnualUSD    float64 `json:"target_annual_usd"`
	WeeklyTargetUSD    float64 `json:"weekly_target_usd"`
	TrailingWeeks      int     `json:"trailing_weeks"`
	AverageWeeklyUSD   float64 `json:"average_weekly_usd"`
	ProjectedAnnualUSD float64 `json:"projected_annual_usd"`
	ProgressPercent    float64 `json:"progress_percent"`
	OnTrack            bool    `json:"on_track"`
	CapitalMultiplier  float64 `json:"capital_multiplier,omitempty"` // Capital scale needed at the current yield
	Recommendation     string  `json:"recommendation"`
}

// TrackTarget evaluates the trailing weeks against the configured annual target.
func (r *Reporter) TrackTarget(ctx context.Context, trailingWeeks int) (TargetStatus, error) {
	if r.targetAnnualUSD <= 0 {
		return TargetStatus{}, fmt.Errorf("%w: no annual fee target configured", ErrInvalidPeriod)
	}
	weekly, err := r.WeeklySummaries(ctx, trailingWeeks)
	if err != nil {
		return TargetStatus{}, err
	}

	var total float64
	records := 0
	for _, w := range weekly {
		total += w.TotalUSD
		records += w.Records
	}

	st := TargetStatus{
		TargetAnnualUSD:  r.targetAnnualUSD,
		WeeklyTargetUSD:  r.targetAnnualUSD / weeksPerYear,
		TrailingWeeks:    trailingWeeks,
		AverageWeeklyUSD: total / float64(trailingWeeks),
	}
	st.ProjectedAnnualUSD = st.AverageWeeklyUSD * weeksPerYear
	st.ProgressPercent = st.ProjectedAnnualUSD / st.TargetAnnualUSD * 100
	st.OnTrack = st.ProgressPercent >= 100
	if st.ProjectedAnnualUSD > 0 {
		st.CapitalMultiplier = st.TargetAnnualUSD / st.ProjectedAnnualUSD
	}

	switch {
	case records == 0 || st.ProjectedAnnualUSD <= 0:
		st.Recommendation = "No fees recorded in the trailing window; check that the position is active and in range"
	case st.OnTrack:
		st.Recommendation = "On track for the annual target"
	case st.ProgressPercent >= 75:
		st.Recommendation = "Slightly behind target; consider a narrower range or more frequent compounding"
	default:
		st.Recommendation = fmt.Sprintf("Behind target; about %.1fx the deployed capital is needed at the current fee yield", st.CapitalMultiplier)
	}

	reportLogger.Info().
		Float64("projectedAnnualUSD", st.ProjectedAnnualUSD).
		Float64("targetAnnualUSD", st.TargetAnnualUSD).
		Float64("progressPercent", st.ProgressPercent).
		Bool("onTrack", st.OnTrack).
		Msg("Target tracking evaluated")

	return st, nil
}
