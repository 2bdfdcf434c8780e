package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EventType classifies lifecycle timeline entries.
type EventType string

const (
	EventTrade             EventType = "trade"
	EventInitialFixing     EventType = "initial_fixing"
	EventCouponObservation EventType = "coupon_observation"
	EventCallObservation   EventType = "call_observation"
	EventFinalObservation  EventType = "final_observation"
	EventSettlement        EventType = "settlement"
	EventBarrierBreach     EventType = "barrier_breach"
	EventKnockIn           EventType = "knock_in"
	EventAutocall          EventType = "autocall"
	EventIssuerCall        EventType = "issuer_call"
)

// EventStatus is the state of a lifecycle event relative to the evaluation date.
type EventStatus string

const (
	EventCompleted EventStatus = "completed"
	EventUpcoming  EventStatus = "upcoming"
	EventPending   EventStatus = "pending"
)

// LifecycleEvent is one dated entry of the product timeline.
type LifecycleEvent struct {
	Type   EventType   `json:"type"`
	Date   time.Time   `json:"date"`
	Label  string      `json:"label"`
	Status EventStatus `json:"status"`
}

// Fixing is a dated observation of the basket reference level (ratio of initial).
type Fixing struct {
	Date  time.Time `json:"date" yaml:"date"`
	Level float64   `json:"level" yaml:"level"`
}

// IssuerCallRecord marks the observation date on which the issuer redeemed early.
type IssuerCallRecord struct {
	Date  time.Time `json:"date" yaml:"date"`
	Month int       `json:"month" yaml:"month"` // months elapsed since the initial fixing
}

// ProductLifecycleData is the aggregate root for one product instance.
// It owns its basket and derived timeline; dates and terms are write-once.
type ProductLifecycleData struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Notional float64 `json:"notional"`
	Bucket   Bucket  `json:"bucket"`
	Terms    Terms   `json:"-"`
	Basket   *Basket `json:"basket"`

	TradeDate         time.Time `json:"trade_date"`
	InitialFixingDate time.Time `json:"initial_fixing_date"`
	MaturityDate      time.Time `json:"maturity_date"`
	SettlementDate    time.Time `json:"settlement_date"`

	Fixings    []Fixing          `json:"fixings,omitempty"`
	IssuerCall *IssuerCallRecord `json:"issuer_call,omitempty"`

	Events              []LifecycleEvent `json:"events"`
	ProgressPct         float64          `json:"progress_pct"`
	DaysToMaturity      int              `json:"days_to_maturity"`
	WorstPerformerIndex int              `json:"worst_performer_index"`
	BestPerformerIndex  int              `json:"best_performer_index"`
}

// ResolveTerms returns the terms after checking they belong to the product's bucket.
func (p *ProductLifecycleData) ResolveTerms() (Terms, error) {
	if !p.Bucket.Valid() {
		return nil, &UnknownBucketError{Tag: string(p.Bucket)}
	}
	if p.Terms == nil {
		return nil, &MissingTermsForBucketError{Bucket: p.Bucket}
	}
	bucket, err := MatchTerms(p.Terms,
		func(*RegularIncomeTerms) (Bucket, error) { return BucketRegularIncome, nil },
		func(*CapitalProtectionTerms) (Bucket, error) { return BucketCapitalProtection, nil },
		func(*BoostedGrowthTerms) (Bucket, error) { return BucketBoostedGrowth, nil },
	)
	if err != nil {
		return nil, err
	}
	if bucket != p.Bucket {
		return nil, &MissingTermsForBucketError{Bucket: p.Bucket}
	}
	return p.Terms, nil
}

// AnchorDate is the date levels and schedules are measured from.
func (p *ProductLifecycleData) AnchorDate() time.Time {
	if !p.InitialFixingDate.IsZero() {
		return p.InitialFixingDate
	}
	return p.TradeDate
}

// TenorMonths is the whole number of months from trade date to maturity.
func (p *ProductLifecycleData) TenorMonths() int {
	return MonthsBetween(p.TradeDate, p.MaturityDate)
}

// PaymentLagDays is the settlement delay after maturity, reused for coupon payments.
func (p *ProductLifecycleData) PaymentLagDays() int {
	if p.SettlementDate.IsZero() || p.SettlementDate.Before(p.MaturityDate) {
		return 0
	}
	return DaysBetween(p.MaturityDate, p.SettlementDate)
}

// FixingOn returns the reference level observed on date.
func (p *ProductLifecycleData) FixingOn(date time.Time) (float64, bool) {
	for _, f := range p.Fixings {
		if SameDate(f.Date, date) {
			return f.Level, true
		}
	}
	return 0, false
}

// AddFixing records an observation. A fixing already stored for that date wins.
func (p *ProductLifecycleData) AddFixing(f Fixing) bool {
	f.Date = DateOnly(f.Date)
	if _, ok := p.FixingOn(f.Date); ok {
		return false
	}
	p.Fixings = append(p.Fixings, f)
	sort.SliceStable(p.Fixings, func(i, j int) bool {
		return p.Fixings[i].Date.Before(p.Fixings[j].Date)
	})
	return true
}

// Matured reports whether at is on or after the maturity date.
func (p *ProductLifecycleData) Matured(at time.Time) bool {
	return !DateOnly(at).Before(DateOnly(p.MaturityDate))
}

// Validate checks the write-once fields of the aggregate.
func (p *ProductLifecycleData) Validate() error {
	var errs ValidationErrors
	if p.Notional <= 0 {
		errs = append(errs, ValidationError{Field: "notional", Message: "must be greater than 0"})
	}
	if p.TradeDate.IsZero() {
		errs = append(errs, ValidationError{Field: "trade_date", Message: "is required"})
	}
	if p.MaturityDate.IsZero() || !p.MaturityDate.After(p.TradeDate) {
		errs = append(errs, ValidationError{Field: "maturity_date", Message: "must be after trade_date"})
	}
	if !p.InitialFixingDate.IsZero() && p.InitialFixingDate.Before(p.TradeDate) {
		errs = append(errs, ValidationError{Field: "initial_fixing_date", Message: "must not precede trade_date"})
	}
	if !p.SettlementDate.IsZero() && p.SettlementDate.Before(p.MaturityDate) {
		errs = append(errs, ValidationError{Field: "settlement_date", Message: "must not precede maturity_date"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Clone deep-copies the aggregate so what-if evaluations never touch the live instance.
func (p *ProductLifecycleData) Clone() (*ProductLifecycleData, error) {
	c := *p
	if p.Terms != nil {
		terms, err := CloneTerms(p.Terms)
		if err != nil {
			return nil, fmt.Errorf("failed to clone terms: %w", err)
		}
		c.Terms = terms
	}
	c.Basket = p.Basket.Clone()
	c.Fixings = append([]Fixing(nil), p.Fixings...)
	c.Events = append([]LifecycleEvent(nil), p.Events...)
	if p.IssuerCall != nil {
		call := *p.IssuerCall
		c.IssuerCall = &call
	}
	return &c, nil
}

// MarshalJSON emits the terms as a TermSheet next to the aggregate fields.
func (p *ProductLifecycleData) MarshalJSON() ([]byte, error) {
	type alias ProductLifecycleData
	var sheet *TermSheet
	if p.Terms != nil {
		s, err := SheetFor(p.Terms)
		if err != nil {
			return nil, err
		}
		sheet = &s
	}
	return json.Marshal(struct {
		*alias
		Terms *TermSheet `json:"terms"`
	}{
		alias: (*alias)(p),
		Terms: sheet,
	})
}
