package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/basket"
	"github.com/aristath/noteengine/internal/modules/coupons"
	"github.com/aristath/noteengine/internal/modules/payout"
	"github.com/aristath/noteengine/internal/modules/scenarios"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/rs/zerolog"
)

// Report is everything the presentation layer consumes for one product at one instant.
type Report struct {
	EvaluatedAt   time.Time                    `json:"evaluated_at"`
	Product       *domain.ProductLifecycleData `json:"product"`
	Resolution    *basket.Resolution           `json:"resolution"`
	Status        *triggers.Status             `json:"status"`
	Coupons       []domain.CouponEntry         `json:"coupons,omitempty"`
	CouponSummary *coupons.Summary             `json:"coupon_summary,omitempty"`
	ScheduleError string                       `json:"schedule_error,omitempty"`
	Payout        *payout.Result               `json:"payout"`
	Scenarios     *scenarios.ScenarioFlow      `json:"scenarios"`
}

// Overrides are the hypothetical inputs of a what-if evaluation, keyed by symbol.
type Overrides struct {
	InitialPrices map[string]float64 `json:"initial_prices,omitempty"`
	CurrentPrices map[string]float64 `json:"current_prices,omitempty"`
}

// Engine runs the outcome pipeline.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new lifecycle engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "lifecycle_engine").Logger()}
}

// Evaluate runs the pipeline on p at the given instant. It appends new breach events to
// p's breach logs and refreshes its derived fields; nothing else on p changes.
func (e *Engine) Evaluate(p *domain.ProductLifecycleData, at time.Time) (*Report, error) {
	return e.EvaluateWithHistory(p, nil, at)
}

// EvaluateWithHistory is Evaluate with a previously stored coupon schedule, which is
// reconciled so paid coupons stay untouched and no status moves backwards.
func (e *Engine) EvaluateWithHistory(p *domain.ProductLifecycleData, previous []domain.CouponEntry, at time.Time) (*Report, error) {
	terms, err := p.ResolveTerms()
	if err != nil {
		return nil, err
	}
	res, err := basket.Resolve(p.Basket)
	if err != nil {
		return nil, err
	}
	st, err := triggers.Evaluate(p, res, at)
	if err != nil {
		return nil, err
	}

	report := &Report{EvaluatedAt: at, Product: p, Resolution: res, Status: st}

	schedule, err := domain.MatchTerms(terms,
		func(t *domain.RegularIncomeTerms) ([]domain.CouponEntry, error) {
			params := coupons.Params{
				Terms:          t,
				TradeDate:      p.TradeDate,
				MaturityDate:   p.MaturityDate,
				Notional:       p.Notional,
				PaymentLagDays: p.PaymentLagDays(),
				Fixings:        p,
				At:             at,
				CurrentLevel:   &res.ReferenceLevel,
			}
			if end := st.EarlyTermination(); end != nil {
				params.TerminatedOn = *end
			}
			return coupons.Generate(params)
		},
		func(*domain.CapitalProtectionTerms) ([]domain.CouponEntry, error) { return nil, nil },
		func(*domain.BoostedGrowthTerms) ([]domain.CouponEntry, error) { return nil, nil },
	)
	var scheduleErr *domain.ScheduleConfigError
	switch {
	case errors.As(err, &scheduleErr):
		e.log.Warn().
			Err(err).
			Str("product_id", p.ID).
			Msg("Coupon schedule omitted, only maturity payout applies")
		report.ScheduleError = err.Error()
		schedule = nil
	case err != nil:
		return nil, fmt.Errorf("failed to generate coupon schedule: %w", err)
	}

	if len(previous) > 0 && schedule != nil {
		schedule = coupons.Reconcile(previous, schedule)
	}
	if schedule != nil {
		summary := coupons.Summarize(schedule, p.Notional)
		report.Coupons = schedule
		report.CouponSummary = &summary
	}

	report.Payout, err = payout.Calculate(p, res, st, schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate payout: %w", err)
	}
	report.Scenarios, err = scenarios.Narrate(p, st)
	if err != nil {
		return nil, fmt.Errorf("failed to build scenarios: %w", err)
	}

	Refresh(p, res, st, schedule, at)

	if len(st.NewBreaches) > 0 {
		e.log.Info().
			Str("product_id", p.ID).
			Int("new_breaches", len(st.NewBreaches)).
			Msg("Recorded breach events")
	}
	e.log.Debug().
		Str("product_id", p.ID).
		Str("state", string(st.State())).
		Float64("reference_level", res.ReferenceLevel).
		Float64("payout", report.Payout.Amount).
		Msg("Product evaluated")

	return report, nil
}

// WhatIf evaluates a clone of p with hypothetical prices. p itself is never touched,
// breach logs included.
func (e *Engine) WhatIf(p *domain.ProductLifecycleData, o Overrides, at time.Time) (*Report, error) {
	clone, err := p.Clone()
	if err != nil {
		return nil, err
	}
	for symbol, price := range o.InitialPrices {
		u, ok := clone.Basket.Find(symbol)
		if !ok {
			return nil, fmt.Errorf("what-if: unknown underlying %s", symbol)
		}
		u.InitialPrice = price
		u.SetCurrentPrice(u.CurrentPrice)
		if err := u.ApplyTermLevels(clone.Terms); err != nil {
			return nil, err
		}
	}
	for symbol, price := range o.CurrentPrices {
		u, ok := clone.Basket.Find(symbol)
		if !ok {
			return nil, fmt.Errorf("what-if: unknown underlying %s", symbol)
		}
		u.SetCurrentPrice(price)
	}
	return e.Evaluate(clone, at)
}
