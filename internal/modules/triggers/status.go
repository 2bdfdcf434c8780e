package triggers

import (
	"time"

	"github.com/aristath/noteengine/internal/domain"
)

// State is the headline classification of a product's trigger status.
type State string

const (
	StateSafe      State = "safe"
	StateBreached  State = "breached"
	StateTriggered State = "triggered"
)

// RegularIncomeStatus is the evaluated autocall/protection state of a Regular Income product.
type RegularIncomeStatus struct {
	State                 State      `json:"state"`
	ProtectionLevel       float64    `json:"protection_level"` // ratio of initial
	ProtectionBreached    bool       `json:"protection_breached"`
	BufferToProtectionPct float64    `json:"buffer_to_protection_pct"` // positive = safe
	AutocallEnabled       bool       `json:"autocall_enabled"`
	AutocallLevel         float64    `json:"autocall_level,omitempty"`
	AutocallTriggered     bool       `json:"autocall_triggered"`
	AutocallDate          *time.Time `json:"autocall_date,omitempty"`
	DistanceToAutocallPct float64    `json:"distance_to_autocall_pct,omitempty"`
}

// CapitalProtectionStatus is the participation, knock-in and issuer-call state.
type CapitalProtectionStatus struct {
	State                      State      `json:"state"`
	ParticipationStart         float64    `json:"participation_start"`
	ParticipationActive        bool       `json:"participation_active"`
	DistanceToParticipationPct float64    `json:"distance_to_participation_pct"`
	KnockInEnabled             bool       `json:"knock_in_enabled"`
	KnockInLevel               float64    `json:"knock_in_level,omitempty"`
	KnockInTriggered           bool       `json:"knock_in_triggered"`
	KnockInDate                *time.Time `json:"knock_in_date,omitempty"`
	BufferToKnockInPct         float64    `json:"buffer_to_knock_in_pct,omitempty"`
	IssuerCallEnabled          bool       `json:"issuer_call_enabled"`
	IssuerCalled               bool       `json:"issuer_called"`
	CallDate                   *time.Time `json:"call_date,omitempty"`
	CallMonth                  int        `json:"call_month,omitempty"`
	NextCallDate               *time.Time `json:"next_call_date,omitempty"`
}

// BoostedGrowthStatus is the bonus barrier state of a Boosted Growth product.
type BoostedGrowthStatus struct {
	State              State                     `json:"state"`
	Observation        domain.BarrierObservation `json:"observation"`
	Observed           bool                      `json:"observed"` // false for european barriers before the final date
	BarrierLevel       float64                   `json:"barrier_level"`
	BarrierBreached    bool                      `json:"barrier_breached"`
	BreachDate         *time.Time                `json:"breach_date,omitempty"`
	BufferToBarrierPct float64                   `json:"buffer_to_barrier_pct"`
	BonusLevel         float64                   `json:"bonus_level"`
	AboveBonus         bool                      `json:"above_bonus"`
}

// RecordedBreach is a breach event newly appended to an underlying's log during evaluation.
type RecordedBreach struct {
	Symbol string             `json:"symbol"`
	Event  domain.BreachEvent `json:"event"`
}

// Status is the trigger evaluation of one product at one instant.
// Exactly one bucket block is populated.
type Status struct {
	Bucket         domain.Bucket `json:"bucket"`
	EvaluatedAt    time.Time     `json:"evaluated_at"`
	ReferenceLevel float64       `json:"reference_level"`

	RegularIncome     *RegularIncomeStatus     `json:"regular_income,omitempty"`
	CapitalProtection *CapitalProtectionStatus `json:"capital_protection,omitempty"`
	BoostedGrowth     *BoostedGrowthStatus     `json:"boosted_growth,omitempty"`

	NewBreaches []RecordedBreach `json:"new_breaches,omitempty"`
}

// State returns the headline state of the populated bucket block.
func (s *Status) State() State {
	switch {
	case s.RegularIncome != nil:
		return s.RegularIncome.State
	case s.CapitalProtection != nil:
		return s.CapitalProtection.State
	case s.BoostedGrowth != nil:
		return s.BoostedGrowth.State
	}
	return StateSafe
}

// EarlyTermination returns the date the product ended before maturity, if it did.
func (s *Status) EarlyTermination() *time.Time {
	if ri := s.RegularIncome; ri != nil && ri.AutocallTriggered {
		return ri.AutocallDate
	}
	if cp := s.CapitalProtection; cp != nil && cp.IssuerCalled {
		return cp.CallDate
	}
	return nil
}
