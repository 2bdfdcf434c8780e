// Package triggers evaluates barrier, knock-in, autocall and issuer-call
// conditions of a product against its resolved basket level.
//
// The only mutation the evaluator performs is appending breach events to the
// underlyings' breach logs; everything else is returned in the Status.
package triggers

import (
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/basket"
	"github.com/aristath/noteengine/pkg/formulas"
)

// tolerance absorbs float noise when a level sits exactly on a threshold.
const tolerance = 1e-12

func atOrAbove(level, pct float64) bool {
	return level >= formulas.PctToRatio(pct)-tolerance
}

func atOrBelow(level, pct float64) bool {
	return level <= formulas.PctToRatio(pct)+tolerance
}

// BelowLevel reports whether a reference level (ratio of initial) is strictly under pct percent.
// A level sitting exactly on the threshold is not below it.
func BelowLevel(level, pct float64) bool {
	return !atOrAbove(level, pct)
}

// bufferTo is 1 - threshold/level: positive while the level is above the threshold.
// A zero level reports -1.
func bufferTo(level, pct float64) float64 {
	if level <= 0 {
		return -1
	}
	return 1 - formulas.PctToRatio(pct)/level
}

// distanceTo is threshold/level - 1: how far the level must still move to reach the threshold.
// A zero level reports 0.
func distanceTo(level, pct float64) float64 {
	if level <= 0 {
		return 0
	}
	return formulas.PctToRatio(pct)/level - 1
}

type evaluation struct {
	product *domain.ProductLifecycleData
	res     *basket.Resolution
	at      time.Time
	status  *Status
}

// Evaluate classifies the trigger state of p at the given instant.
// A nil resolution is resolved from the product's basket.
func Evaluate(p *domain.ProductLifecycleData, res *basket.Resolution, at time.Time) (*Status, error) {
	terms, err := p.ResolveTerms()
	if err != nil {
		return nil, err
	}
	if res == nil {
		res, err = basket.Resolve(p.Basket)
		if err != nil {
			return nil, err
		}
	}

	e := &evaluation{
		product: p,
		res:     res,
		at:      at,
		status: &Status{
			Bucket:         p.Bucket,
			EvaluatedAt:    at,
			ReferenceLevel: res.ReferenceLevel,
		},
	}

	_, err = domain.MatchTerms(terms,
		func(t *domain.RegularIncomeTerms) (struct{}, error) {
			e.status.RegularIncome = e.regularIncome(t)
			return struct{}{}, nil
		},
		func(t *domain.CapitalProtectionTerms) (struct{}, error) {
			e.status.CapitalProtection = e.capitalProtection(t)
			return struct{}{}, nil
		},
		func(t *domain.BoostedGrowthTerms) (struct{}, error) {
			e.status.BoostedGrowth = e.boostedGrowth(t)
			return struct{}{}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return e.status, nil
}

func (e *evaluation) regularIncome(t *domain.RegularIncomeTerms) *RegularIncomeStatus {
	level := e.res.ReferenceLevel
	s := &RegularIncomeStatus{
		ProtectionLevel:       formulas.PctToRatio(t.ProtectionLevelPct),
		ProtectionBreached:    BelowLevel(level, t.ProtectionLevelPct),
		BufferToProtectionPct: bufferTo(level, t.ProtectionLevelPct),
		AutocallEnabled:       t.AutocallEnabled(),
	}

	if s.AutocallEnabled {
		autocall := *t.AutocallLevelPct
		s.AutocallLevel = formulas.PctToRatio(autocall)
		s.DistanceToAutocallPct = distanceTo(level, autocall)
		if d, ok := e.firstFixingAtOrAbove(autocall); ok {
			s.AutocallTriggered = true
			s.AutocallDate = &d
		} else if e.inObservationWindow() && atOrAbove(level, autocall) {
			d := domain.DateOnly(e.at)
			s.AutocallTriggered = true
			s.AutocallDate = &d
		}
	}

	switch {
	case s.AutocallTriggered:
		s.State = StateTriggered
	case s.ProtectionBreached:
		s.State = StateBreached
	default:
		s.State = StateSafe
	}
	return s
}

func (e *evaluation) capitalProtection(t *domain.CapitalProtectionTerms) *CapitalProtectionStatus {
	s := &CapitalProtectionStatus{IssuerCallEnabled: t.IssuerCallEnabled()}

	if s.IssuerCallEnabled {
		if call := e.product.IssuerCall; call != nil && !domain.DateOnly(call.Date).After(domain.DateOnly(e.at)) {
			d := domain.DateOnly(call.Date)
			s.IssuerCalled = true
			s.CallDate = &d
			s.CallMonth = call.Month
			s.State = StateTriggered
			return s
		}
		if next, ok := NextCallDate(e.product, t.IssuerCall, e.at); ok {
			s.NextCallDate = &next
		}
	}

	level := e.res.ReferenceLevel
	s.ParticipationStart = formulas.PctToRatio(t.ParticipationStartPct)
	s.ParticipationActive = atOrAbove(level, t.ParticipationStartPct)
	s.DistanceToParticipationPct = distanceTo(level, t.ParticipationStartPct)

	if t.KnockInEnabled() {
		ki := t.KnockIn.LevelPct
		s.KnockInEnabled = true
		s.KnockInLevel = formulas.PctToRatio(ki)
		s.BufferToKnockInPct = bufferTo(level, ki)
		e.recordFixingsAtOrBelow(domain.BreachKindKnockIn, ki)
		if atOrBelow(level, ki) {
			e.record(domain.BreachKindKnockIn, ki, level, e.at)
		}
		if first, ok := e.firstBreach(domain.BreachKindKnockIn); ok {
			s.KnockInTriggered = true
			s.KnockInDate = &first
		}
	}

	if s.KnockInTriggered {
		s.State = StateBreached
	} else {
		s.State = StateSafe
	}
	return s
}

func (e *evaluation) boostedGrowth(t *domain.BoostedGrowthTerms) *BoostedGrowthStatus {
	s := &BoostedGrowthStatus{
		Observation:  domain.ObservationContinuous,
		BarrierLevel: formulas.PctToRatio(t.BarrierLevelPct),
		BonusLevel:   formulas.PctToRatio(t.BonusLevelPct),
	}

	level := e.res.ReferenceLevel
	observeOn := e.at
	if t.European() {
		s.Observation = domain.ObservationEuropean
		if e.product.Matured(e.at) {
			observeOn = e.product.MaturityDate
			if fixing, ok := e.product.FixingOn(e.product.MaturityDate); ok {
				level = fixing
			}
			s.Observed = true
		}
	} else {
		s.Observed = true
	}

	s.BufferToBarrierPct = bufferTo(level, t.BarrierLevelPct)
	s.AboveBonus = atOrAbove(level, t.BonusLevelPct)

	if !s.Observed {
		s.State = StateSafe
		return s
	}

	if s.Observation == domain.ObservationContinuous {
		e.recordFixingsAtOrBelow(domain.BreachKindBarrier, t.BarrierLevelPct)
	}
	if atOrBelow(level, t.BarrierLevelPct) {
		e.record(domain.BreachKindBarrier, t.BarrierLevelPct, level, observeOn)
	}
	if first, ok := e.firstBreach(domain.BreachKindBarrier); ok {
		s.BarrierBreached = true
		s.BreachDate = &first
		s.State = StateBreached
	} else {
		s.State = StateSafe
	}
	return s
}

// targets are the underlyings a basket-level breach is attributed to: the driver,
// or every constituent of an averaging basket.
func (e *evaluation) targets() []*domain.Underlying {
	if driver := e.res.Driver(e.product.Basket); driver != nil {
		return []*domain.Underlying{driver}
	}
	return e.product.Basket.Underlyings
}

func (e *evaluation) record(kind domain.BreachKind, levelPct, referenceLevel float64, date time.Time) {
	event := domain.BreachEvent{
		Date:           domain.DateOnly(date),
		Kind:           kind,
		ReferenceLevel: referenceLevel,
		LevelPct:       levelPct,
	}
	for _, u := range e.targets() {
		if u.RecordBreach(event) {
			e.status.NewBreaches = append(e.status.NewBreaches, RecordedBreach{Symbol: u.Symbol, Event: event})
		}
	}
}

// firstBreach is the earliest breach of kind on any underlying, as of the evaluation date.
func (e *evaluation) firstBreach(kind domain.BreachKind) (time.Time, bool) {
	var first time.Time
	found := false
	for _, u := range e.product.Basket.Underlyings {
		ev, ok := u.Breaches.FirstOf(kind, e.at)
		if !ok {
			continue
		}
		if !found || ev.Date.Before(first) {
			first = ev.Date
			found = true
		}
	}
	return first, found
}

// inObservationWindow reports whether the evaluation date lies after the anchor
// and on or before maturity. Outside it the current level observes nothing.
func (e *evaluation) inObservationWindow() bool {
	today := domain.DateOnly(e.at)
	return today.After(domain.DateOnly(e.product.AnchorDate())) &&
		!today.After(domain.DateOnly(e.product.MaturityDate))
}

// fixingsThrough returns the fixings dated after the anchor and on or before the evaluation date.
func (e *evaluation) fixingsThrough() []domain.Fixing {
	anchor := domain.DateOnly(e.product.AnchorDate())
	cutoff := domain.DateOnly(e.at)
	var out []domain.Fixing
	for _, f := range e.product.Fixings {
		d := domain.DateOnly(f.Date)
		if !d.After(anchor) || d.After(cutoff) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// recordFixingsAtOrBelow logs a breach for every historical fixing that touched pct.
func (e *evaluation) recordFixingsAtOrBelow(kind domain.BreachKind, pct float64) {
	for _, f := range e.fixingsThrough() {
		if atOrBelow(f.Level, pct) {
			e.record(kind, pct, f.Level, f.Date)
		}
	}
}

// firstFixingAtOrAbove finds the earliest post-inception fixing at or above pct.
func (e *evaluation) firstFixingAtOrAbove(pct float64) (time.Time, bool) {
	var first time.Time
	found := false
	for _, f := range e.fixingsThrough() {
		d := domain.DateOnly(f.Date)
		if atOrAbove(f.Level, pct) && (!found || d.Before(first)) {
			first = d
			found = true
		}
	}
	return first, found
}
