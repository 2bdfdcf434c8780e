package domain

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/aristath/noteengine/pkg/formulas"
)

// BreachKind names the barrier a breach event refers to.
type BreachKind string

const (
	BreachKindBarrier BreachKind = "barrier"  // Boosted Growth barrier
	BreachKindKnockIn BreachKind = "knock_in" // Capital Protection knock-in
)

// BreachEvent is one observation of the basket at or through a monitored barrier.
type BreachEvent struct {
	Date           time.Time  `json:"date" yaml:"date"`
	Kind           BreachKind `json:"kind" yaml:"kind"`
	ReferenceLevel float64    `json:"reference_level" yaml:"reference_level"` // basket level as a ratio of initial
	LevelPct       float64    `json:"level_pct" yaml:"level_pct"`             // barrier level from the terms
}

// BreachLog is the append-only breach history of one underlying.
// The breached flag is derived from it (log non-empty) and can never be unset.
// It is safe for concurrent use.
type BreachLog struct {
	mu     sync.Mutex
	events []BreachEvent
}

// NewBreachLog seeds a log, typically from the product store.
func NewBreachLog(events ...BreachEvent) *BreachLog {
	l := &BreachLog{}
	for _, e := range events {
		l.Record(e)
	}
	return l
}

// Record appends e unless an event of the same kind already exists for that date.
// It returns true when the event was appended.
func (l *BreachLog) Record(e BreachEvent) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Date = DateOnly(e.Date)
	for _, existing := range l.events {
		if existing.Kind == e.Kind && existing.Date.Equal(e.Date) {
			return false
		}
	}
	l.events = append(l.events, e)
	sort.SliceStable(l.events, func(i, j int) bool {
		return l.events[i].Date.Before(l.events[j].Date)
	})
	return true
}

// Breached reports whether any breach has ever been recorded.
func (l *BreachLog) Breached() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events) > 0
}

// FirstOf returns the earliest breach of kind observed on or before asOf.
func (l *BreachLog) FirstOf(kind BreachKind, asOf time.Time) (BreachEvent, bool) {
	if l == nil {
		return BreachEvent{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := DateOnly(asOf)
	for _, e := range l.events {
		if e.Kind == kind && !e.Date.After(cutoff) {
			return e, true
		}
	}
	return BreachEvent{}, false
}

// FirstDate returns the date of the earliest recorded breach of any kind.
func (l *BreachLog) FirstDate() (time.Time, bool) {
	if l == nil {
		return time.Time{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return time.Time{}, false
	}
	return l.events[0].Date, true
}

// Events returns a copy of the log ordered by date.
func (l *BreachLog) Events() []BreachEvent {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]BreachEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Clone copies the log into an independent instance.
func (l *BreachLog) Clone() *BreachLog {
	return NewBreachLog(l.Events()...)
}

func (l *BreachLog) MarshalJSON() ([]byte, error) {
	events := l.Events()
	if events == nil {
		events = []BreachEvent{}
	}
	return json.Marshal(events)
}

func (l *BreachLog) UnmarshalJSON(data []byte) error {
	var events []BreachEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return err
	}
	for _, e := range events {
		l.Record(e)
	}
	return nil
}

// Underlying is one asset of a product basket.
//
// InitialPrice is fixed at inception. CurrentPrice is the only field refreshed on reload,
// always through SetCurrentPrice so PerformancePct stays in step.
type Underlying struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	InitialPrice   float64 `json:"initial_price"`
	CurrentPrice   float64 `json:"current_price"`
	PerformancePct float64 `json:"performance_pct"` // current/initial - 1

	BarrierLevel          *float64 `json:"barrier_level,omitempty"`
	BarrierLevelPct       *float64 `json:"barrier_level_pct,omitempty"`
	AutocallLevel         *float64 `json:"autocall_level,omitempty"`
	AutocallLevelPct      *float64 `json:"autocall_level_pct,omitempty"`
	ProtectionLevel       *float64 `json:"protection_level,omitempty"`
	ProtectionLevelPct    *float64 `json:"protection_level_pct,omitempty"`
	ParticipationStart    *float64 `json:"participation_start,omitempty"`
	ParticipationStartPct *float64 `json:"participation_start_pct,omitempty"`
	CapLevel              *float64 `json:"cap_level,omitempty"`
	CapLevelPct           *float64 `json:"cap_level_pct,omitempty"`

	Breaches *BreachLog `json:"breaches"`
}

// NewUnderlying builds an underlying with its performance computed.
func NewUnderlying(symbol, name string, initialPrice, currentPrice float64) *Underlying {
	u := &Underlying{
		Symbol:       symbol,
		Name:         name,
		InitialPrice: initialPrice,
		Breaches:     &BreachLog{},
	}
	u.SetCurrentPrice(currentPrice)
	return u
}

// SetCurrentPrice refreshes the price and recomputes PerformancePct.
func (u *Underlying) SetCurrentPrice(price float64) {
	u.CurrentPrice = price
	u.PerformancePct = formulas.Performance(price, u.InitialPrice)
}

// Performance computes current/initial - 1 from the prices, ignoring the cached field.
func (u *Underlying) Performance() float64 {
	return formulas.Performance(u.CurrentPrice, u.InitialPrice)
}

// Level is the current price as a ratio of the initial price (1 when unpriced).
func (u *Underlying) Level() float64 {
	if u.InitialPrice <= 0 {
		return 1
	}
	return u.CurrentPrice / u.InitialPrice
}

// BarrierBreached is derived from the breach log.
func (u *Underlying) BarrierBreached() bool {
	return u.Breaches.Breached()
}

// BarrierBreachedDate is the date of the first recorded breach, if any.
func (u *Underlying) BarrierBreachedDate() *time.Time {
	d, ok := u.Breaches.FirstDate()
	if !ok {
		return nil
	}
	return &d
}

// RecordBreach appends to the breach log, creating it on first use.
func (u *Underlying) RecordBreach(e BreachEvent) bool {
	if u.Breaches == nil {
		u.Breaches = &BreachLog{}
	}
	return u.Breaches.Record(e)
}

// levelFromPct derives an absolute level and its percentage from the initial price.
func (u *Underlying) levelFromPct(pct float64) (*float64, *float64) {
	abs := u.InitialPrice * pct / 100
	p := pct
	return &abs, &p
}

// ApplyTermLevels fills the absolute/percentage level fields from the terms.
func (u *Underlying) ApplyTermLevels(t Terms) error {
	_, err := MatchTerms(t,
		func(ri *RegularIncomeTerms) (struct{}, error) {
			u.ProtectionLevel, u.ProtectionLevelPct = u.levelFromPct(ri.ProtectionLevelPct)
			if ri.AutocallEnabled() {
				u.AutocallLevel, u.AutocallLevelPct = u.levelFromPct(*ri.AutocallLevelPct)
			}
			return struct{}{}, nil
		},
		func(cp *CapitalProtectionTerms) (struct{}, error) {
			u.ProtectionLevel, u.ProtectionLevelPct = u.levelFromPct(cp.CapitalProtectionPct)
			u.ParticipationStart, u.ParticipationStartPct = u.levelFromPct(cp.ParticipationStartPct)
			if cp.HasCap() {
				u.CapLevel, u.CapLevelPct = u.levelFromPct(*cp.CapLevelPct)
			}
			if cp.KnockInEnabled() {
				u.BarrierLevel, u.BarrierLevelPct = u.levelFromPct(cp.KnockIn.LevelPct)
			}
			return struct{}{}, nil
		},
		func(bg *BoostedGrowthTerms) (struct{}, error) {
			u.BarrierLevel, u.BarrierLevelPct = u.levelFromPct(bg.BarrierLevelPct)
			return struct{}{}, nil
		},
	)
	return err
}

// Clone returns an independent copy, breach log included.
func (u *Underlying) Clone() *Underlying {
	c := *u
	c.BarrierLevel = cloneFloat(u.BarrierLevel)
	c.BarrierLevelPct = cloneFloat(u.BarrierLevelPct)
	c.AutocallLevel = cloneFloat(u.AutocallLevel)
	c.AutocallLevelPct = cloneFloat(u.AutocallLevelPct)
	c.ProtectionLevel = cloneFloat(u.ProtectionLevel)
	c.ProtectionLevelPct = cloneFloat(u.ProtectionLevelPct)
	c.ParticipationStart = cloneFloat(u.ParticipationStart)
	c.ParticipationStartPct = cloneFloat(u.ParticipationStartPct)
	c.CapLevel = cloneFloat(u.CapLevel)
	c.CapLevelPct = cloneFloat(u.CapLevelPct)
	c.Breaches = u.Breaches.Clone()
	return &c
}

// MarshalJSON adds the derived breach flag and date for the presentation layer.
func (u *Underlying) MarshalJSON() ([]byte, error) {
	type alias Underlying
	return json.Marshal(struct {
		*alias
		BarrierBreached     bool       `json:"barrier_breached"`
		BarrierBreachedDate *time.Time `json:"barrier_breached_date,omitempty"`
	}{
		alias:               (*alias)(u),
		BarrierBreached:     u.BarrierBreached(),
		BarrierBreachedDate: u.BarrierBreachedDate(),
	})
}
