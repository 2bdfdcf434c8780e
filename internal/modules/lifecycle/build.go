// Package lifecycle assembles product aggregates from plain inputs and runs the
// full outcome pipeline over them: basket resolution, trigger evaluation, coupon
// schedule, payout and scenario narrative.
package lifecycle

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/basket"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/aristath/noteengine/pkg/formulas"
)

// UnderlyingInput is the plain-data description of one underlying.
type UnderlyingInput struct {
	Symbol       string               `json:"symbol" yaml:"symbol"`
	Name         string               `json:"name" yaml:"name"`
	InitialPrice float64              `json:"initial_price" yaml:"initial_price"`
	CurrentPrice float64              `json:"current_price" yaml:"current_price"`
	Breaches     []domain.BreachEvent `json:"breaches,omitempty" yaml:"breaches,omitempty"`
}

// ProductInput is the plain-data description of one product instance.
type ProductInput struct {
	ID                string                   `json:"id" yaml:"id"`
	Name              string                   `json:"name" yaml:"name"`
	Currency          string                   `json:"currency" yaml:"currency"`
	Notional          float64                  `json:"notional" yaml:"notional"`
	Terms             domain.TermSheet         `json:"terms" yaml:"terms"`
	BasketType        domain.BasketType        `json:"basket_type" yaml:"basket_type"`
	Underlyings       []UnderlyingInput        `json:"underlyings" yaml:"underlyings"`
	TradeDate         time.Time                `json:"trade_date" yaml:"trade_date"`
	InitialFixingDate time.Time                `json:"initial_fixing_date,omitempty" yaml:"initial_fixing_date,omitempty"`
	MaturityDate      time.Time                `json:"maturity_date" yaml:"maturity_date"`
	SettlementDate    time.Time                `json:"settlement_date,omitempty" yaml:"settlement_date,omitempty"`
	Fixings           []domain.Fixing          `json:"fixings,omitempty" yaml:"fixings,omitempty"`
	IssuerCall        *domain.IssuerCallRecord `json:"issuer_call,omitempty" yaml:"issuer_call,omitempty"`
}

// Build creates the aggregate for in and fills its derived fields as of at.
func Build(in ProductInput, at time.Time) (*domain.ProductLifecycleData, error) {
	terms, err := in.Terms.Terms()
	if err != nil {
		return nil, err
	}
	if err := terms.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s terms: %w", terms.Bucket(), err)
	}

	b := &domain.Basket{Type: domain.BasketType(strings.ToLower(string(in.BasketType)))}
	if b.Type == "" && len(in.Underlyings) == 1 {
		b.Type = domain.BasketSingle
	}
	for _, ui := range in.Underlyings {
		u := domain.NewUnderlying(ui.Symbol, ui.Name, ui.InitialPrice, ui.CurrentPrice)
		u.Breaches = domain.NewBreachLog(ui.Breaches...)
		if err := u.ApplyTermLevels(terms); err != nil {
			return nil, err
		}
		b.Underlyings = append(b.Underlyings, u)
	}

	p := &domain.ProductLifecycleData{
		ID:                in.ID,
		Name:              in.Name,
		Currency:          strings.ToUpper(in.Currency),
		Notional:          in.Notional,
		Bucket:            terms.Bucket(),
		Terms:             terms,
		Basket:            b,
		TradeDate:         domain.DateOnly(in.TradeDate),
		InitialFixingDate: domain.DateOnly(in.InitialFixingDate),
		MaturityDate:      domain.DateOnly(in.MaturityDate),
		SettlementDate:    domain.DateOnly(in.SettlementDate),
		IssuerCall:        in.IssuerCall,
	}
	if in.InitialFixingDate.IsZero() {
		p.InitialFixingDate = p.TradeDate
	}
	if in.SettlementDate.IsZero() {
		p.SettlementDate = p.MaturityDate
	}
	for _, f := range in.Fixings {
		p.AddFixing(f)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	res, err := basket.Resolve(p.Basket)
	if err != nil {
		return nil, err
	}
	Refresh(p, res, nil, nil, at)
	return p, nil
}

// Refresh recomputes the derived fields of p: performer indices, tenor progress and the
// event timeline. Status and schedule may be nil when they are not known yet.
func Refresh(p *domain.ProductLifecycleData, res *basket.Resolution, st *triggers.Status, schedule []domain.CouponEntry, at time.Time) {
	if res != nil {
		p.WorstPerformerIndex = res.WorstIndex
		p.BestPerformerIndex = res.BestIndex
	}
	p.ProgressPct = ProgressPct(p.TradeDate, p.MaturityDate, at)
	p.DaysToMaturity = DaysToMaturity(p.MaturityDate, at)
	p.Events = Timeline(p, st, schedule, at)
}

// ProgressPct is the elapsed share of the tenor in percent, clamped to [0, 100].
func ProgressPct(trade, maturity, at time.Time) float64 {
	total := domain.DaysBetween(trade, maturity)
	if total <= 0 {
		return 100
	}
	elapsed := float64(domain.DaysBetween(trade, at))
	return formulas.Round(formulas.Clamp(elapsed/float64(total)*100, 0, 100), 2)
}

// DaysToMaturity counts calendar days left, never negative.
func DaysToMaturity(maturity, at time.Time) int {
	days := domain.DaysBetween(at, maturity)
	if days < 0 {
		return 0
	}
	return days
}

// Timeline lists the product's dated events ordered by date. Scheduled events after an
// early termination are dropped; breach and call events are added when they happened.
func Timeline(p *domain.ProductLifecycleData, st *triggers.Status, schedule []domain.CouponEntry, at time.Time) []domain.LifecycleEvent {
	var events []domain.LifecycleEvent
	add := func(t domain.EventType, date time.Time, label string) {
		if date.IsZero() {
			return
		}
		events = append(events, domain.LifecycleEvent{Type: t, Date: domain.DateOnly(date), Label: label})
	}

	add(domain.EventTrade, p.TradeDate, "Trade date")
	add(domain.EventInitialFixing, p.InitialFixingDate, "Initial fixing")
	for i, c := range schedule {
		add(domain.EventCouponObservation, c.ObservationDate, fmt.Sprintf("Coupon %d observation", i+1))
	}
	callDates, _ := domain.MatchTerms(p.Terms,
		func(*domain.RegularIncomeTerms) ([]time.Time, error) { return nil, nil },
		func(t *domain.CapitalProtectionTerms) ([]time.Time, error) { return triggers.CallDates(p, t.IssuerCall), nil },
		func(*domain.BoostedGrowthTerms) ([]time.Time, error) { return nil, nil },
	)
	for i, d := range callDates {
		add(domain.EventCallObservation, d, fmt.Sprintf("Issuer call date %d", i+1))
	}
	add(domain.EventFinalObservation, p.MaturityDate, "Final observation")
	add(domain.EventSettlement, p.SettlementDate, "Settlement")

	var terminated *time.Time
	if st != nil {
		terminated = st.EarlyTermination()
	}
	if terminated != nil {
		kept := events[:0]
		for _, e := range events {
			if !e.Date.After(*terminated) {
				kept = append(kept, e)
			}
		}
		events = kept
	}

	assignEventStatuses(events, at)

	// occurred events are always completed
	if st != nil {
		if ri := st.RegularIncome; ri != nil && ri.AutocallTriggered && ri.AutocallDate != nil {
			events = append(events, completed(domain.EventAutocall, *ri.AutocallDate, "Autocall triggered"))
		}
		if cp := st.CapitalProtection; cp != nil && cp.IssuerCalled && cp.CallDate != nil {
			events = append(events, completed(domain.EventIssuerCall, *cp.CallDate, "Called by issuer"))
		}
	}
	for _, kind := range []domain.BreachKind{domain.BreachKindBarrier, domain.BreachKindKnockIn} {
		if d, ok := firstBreach(p, kind, at); ok {
			if kind == domain.BreachKindKnockIn {
				events = append(events, completed(domain.EventKnockIn, d, "Knock-in triggered"))
			} else {
				events = append(events, completed(domain.EventBarrierBreach, d, "Barrier breached"))
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events
}

func completed(t domain.EventType, date time.Time, label string) domain.LifecycleEvent {
	return domain.LifecycleEvent{Type: t, Date: domain.DateOnly(date), Label: label, Status: domain.EventCompleted}
}

func assignEventStatuses(events []domain.LifecycleEvent, at time.Time) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	cutoff := domain.DateOnly(at)
	upcomingSet := false
	for i := range events {
		switch {
		case !events[i].Date.After(cutoff):
			events[i].Status = domain.EventCompleted
		case !upcomingSet:
			events[i].Status = domain.EventUpcoming
			upcomingSet = true
		default:
			events[i].Status = domain.EventPending
		}
	}
}

func firstBreach(p *domain.ProductLifecycleData, kind domain.BreachKind, at time.Time) (time.Time, bool) {
	var first time.Time
	found := false
	for _, u := range p.Basket.Underlyings {
		ev, ok := u.Breaches.FirstOf(kind, at)
		if ok && (!found || ev.Date.Before(first)) {
			first, found = ev.Date, true
		}
	}
	return first, found
}
