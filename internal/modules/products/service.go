package products

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/events"
	"github.com/aristath/noteengine/internal/modules/lifecycle"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrProductNotFound is returned for ids with no stored product.
var ErrProductNotFound = errors.New("product not found")

// ErrNotCallable is returned when an issuer call is recorded on a product without one.
var ErrNotCallable = errors.New("product has no issuer call feature")

// ProductStore is the persistence the service needs. *Repository implements it.
type ProductStore interface {
	Create(in lifecycle.ProductInput) (string, error)
	GetByID(id string) (*lifecycle.ProductInput, error)
	List() ([]lifecycle.ProductInput, error)
	UpdatePrices(id string, prices map[string]float64) error
	AddFixing(id string, f domain.Fixing) (bool, error)
	RecordIssuerCall(id string, call domain.IssuerCallRecord) error
	AppendBreachEvents(id string, breaches []triggers.RecordedBreach) (int, error)
	SaveCouponStates(id string, entries []domain.CouponEntry) error
	GetCouponStates(id string) ([]domain.CouponEntry, error)
}

// EventPublisher receives lifecycle notifications. *events.Bus implements it.
type EventPublisher interface {
	Publish(module string, data events.EventData)
}

const moduleName = "products"

// Service runs the lifecycle engine over stored products.
//
// Read paths (Get, List, Evaluate, WhatIf) never write. Observe and the mutating
// operations persist newly recorded breaches, autocall observations and coupon
// states, then publish the matching events.
type Service struct {
	store           ProductStore
	engine          *lifecycle.Engine
	publisher       EventPublisher
	defaultCurrency string
	mu              sync.Mutex // serializes writes
	log             zerolog.Logger
}

// NewService creates a new product service. publisher may be nil.
func NewService(store ProductStore, publisher EventPublisher, defaultCurrency string, log zerolog.Logger) *Service {
	return &Service{
		store:           store,
		engine:          lifecycle.NewEngine(log),
		publisher:       publisher,
		defaultCurrency: strings.ToUpper(defaultCurrency),
		log:             log.With().Str("service", "products").Logger(),
	}
}

func (s *Service) publish(data events.EventData) {
	if s.publisher != nil {
		s.publisher.Publish(moduleName, data)
	}
}

func (s *Service) load(id string) (*lifecycle.ProductInput, error) {
	in, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return in, nil
}

func (s *Service) build(id string, at time.Time) (*domain.ProductLifecycleData, error) {
	in, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return lifecycle.Build(*in, at)
}

// Create validates in by building it, then stores it.
func (s *Service) Create(in lifecycle.ProductInput, at time.Time) (*domain.ProductLifecycleData, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Currency == "" {
		in.Currency = s.defaultCurrency
	}

	p, err := lifecycle.Build(in, at)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store.Create(in); err != nil {
		return nil, fmt.Errorf("failed to store product: %w", err)
	}

	s.publish(&events.ProductCreatedData{ProductID: p.ID, Name: p.Name, Bucket: string(p.Bucket)})
	return p, nil
}

// Get returns the product with its derived fields as of at.
func (s *Service) Get(id string, at time.Time) (*domain.ProductLifecycleData, error) {
	return s.build(id, at)
}

// List returns every stored product. Products that no longer build are logged and skipped.
func (s *Service) List(at time.Time) ([]*domain.ProductLifecycleData, error) {
	inputs, err := s.store.List()
	if err != nil {
		return nil, err
	}
	result := make([]*domain.ProductLifecycleData, 0, len(inputs))
	for _, in := range inputs {
		p, err := lifecycle.Build(in, at)
		if err != nil {
			s.log.Warn().Err(err).Str("product_id", in.ID).Msg("Skipping product that fails to build")
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// Evaluate produces the full report for a product without persisting anything.
func (s *Service) Evaluate(id string, at time.Time) (*lifecycle.Report, error) {
	p, err := s.build(id, at)
	if err != nil {
		return nil, err
	}
	previous, err := s.store.GetCouponStates(id)
	if err != nil {
		return nil, err
	}
	return s.engine.EvaluateWithHistory(p, previous, at)
}

// WhatIf evaluates hypothetical prices on a copy of the product. Nothing is stored.
func (s *Service) WhatIf(id string, o lifecycle.Overrides, at time.Time) (*lifecycle.Report, error) {
	p, err := s.build(id, at)
	if err != nil {
		return nil, err
	}
	for _, prices := range []map[string]float64{o.InitialPrices, o.CurrentPrices} {
		for symbol := range prices {
			if _, ok := p.Basket.Find(symbol); !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownUnderlying, symbol)
			}
		}
	}
	if err := validatePrices("initial_prices", o.InitialPrices, false); err != nil {
		return nil, err
	}
	if err := validatePrices("current_prices", o.CurrentPrices, true); err != nil {
		return nil, err
	}
	return s.engine.WhatIf(p, o, at)
}

func validatePrices(field string, prices map[string]float64, allowZero bool) error {
	var errs domain.ValidationErrors
	for symbol, price := range prices {
		if price < 0 || (!allowZero && price == 0) {
			errs = append(errs, domain.ValidationError{Field: field + "." + symbol, Message: "must be greater than 0"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Observe evaluates a product and persists what the evaluation observed.
func (s *Service) Observe(id string, at time.Time) (*lifecycle.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observe(id, at)
}

func (s *Service) observe(id string, at time.Time) (*lifecycle.Report, error) {
	p, err := s.build(id, at)
	if err != nil {
		return nil, err
	}
	previous, err := s.store.GetCouponStates(id)
	if err != nil {
		return nil, err
	}
	report, err := s.engine.EvaluateWithHistory(p, previous, at)
	if err != nil {
		return nil, err
	}

	if err := s.persistBreaches(p.ID, report); err != nil {
		return nil, err
	}
	if err := s.persistAutocall(p.ID, report); err != nil {
		return nil, err
	}
	if err := s.persistObservationFixing(p.ID, report, at); err != nil {
		return nil, err
	}
	if err := s.persistCoupons(p.ID, previous, report.Coupons); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) persistBreaches(id string, report *lifecycle.Report) error {
	breaches := report.Status.NewBreaches
	added, err := s.store.AppendBreachEvents(id, breaches)
	if err != nil {
		return fmt.Errorf("failed to store breach events: %w", err)
	}
	if added == 0 {
		return nil
	}

	s.log.Info().Str("product_id", id).Int("count", added).Msg("Barrier breach recorded")
	for _, b := range breaches {
		s.publish(&events.BreachData{
			ProductID:      id,
			Symbol:         b.Symbol,
			Kind:           string(b.Event.Kind),
			Date:           b.Event.Date,
			ReferenceLevel: b.Event.ReferenceLevel,
			LevelPct:       b.Event.LevelPct,
		})
	}
	return nil
}

// persistAutocall stores the observation that triggered an autocall as a fixing, so
// the early redemption survives later price moves.
func (s *Service) persistAutocall(id string, report *lifecycle.Report) error {
	ri := report.Status.RegularIncome
	if ri == nil || !ri.AutocallTriggered || ri.AutocallDate == nil {
		return nil
	}
	inserted, err := s.store.AddFixing(id, domain.Fixing{Date: *ri.AutocallDate, Level: report.Resolution.ReferenceLevel})
	if err != nil {
		return fmt.Errorf("failed to store autocall fixing: %w", err)
	}
	if inserted {
		s.publishAutocall(id, report)
	}
	return nil
}

// persistObservationFixing stores the level seen on a coupon observation date, so the
// conditional coupon check does not move with later prices.
func (s *Service) persistObservationFixing(id string, report *lifecycle.Report, at time.Time) error {
	today := domain.DateOnly(at)
	for _, c := range report.Coupons {
		if !domain.SameDate(c.ObservationDate, today) {
			continue
		}
		if _, ok := report.Product.FixingOn(today); ok {
			return nil
		}
		level := report.Resolution.ReferenceLevel
		if _, err := s.store.AddFixing(id, domain.Fixing{Date: today, Level: level}); err != nil {
			return fmt.Errorf("failed to store observation fixing: %w", err)
		}
		s.log.Debug().Str("product_id", id).Time("date", today).Float64("level", level).Msg("Coupon observation fixed")
		return nil
	}
	return nil
}

func (s *Service) publishAutocall(id string, report *lifecycle.Report) {
	ri := report.Status.RegularIncome
	s.log.Info().Str("product_id", id).Time("date", *ri.AutocallDate).Msg("Autocall triggered")
	s.publish(&events.AutocallData{
		ProductID:      id,
		Date:           *ri.AutocallDate,
		ReferenceLevel: report.Resolution.ReferenceLevel,
		Redemption:     report.Payout.Amount,
	})
}

func (s *Service) persistCoupons(id string, previous, schedule []domain.CouponEntry) error {
	if len(schedule) == 0 {
		return nil
	}
	if err := s.store.SaveCouponStates(id, schedule); err != nil {
		return err
	}

	before := make(map[time.Time]domain.CouponStatus, len(previous))
	for _, c := range previous {
		before[domain.DateOnly(c.ObservationDate)] = c.Status
	}
	for _, c := range schedule {
		status, known := before[domain.DateOnly(c.ObservationDate)]
		if !known || status == domain.CouponPaid || c.Status != domain.CouponPaid {
			continue
		}
		s.publish(&events.CouponPaidData{
			ProductID:       id,
			ObservationDate: c.ObservationDate,
			PaymentDate:     c.PaymentDate,
			Amount:          c.Amount,
		})
	}
	return nil
}

// ObserveAll observes every stored product and returns how many succeeded.
// A failing product does not stop the others.
func (s *Service) ObserveAll(at time.Time) (int, error) {
	inputs, err := s.store.List()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	observed := 0
	for _, in := range inputs {
		if _, err := s.observe(in.ID, at); err != nil {
			s.log.Error().Err(err).Str("product_id", in.ID).Msg("Failed to observe product")
			errs = append(errs, fmt.Errorf("%s: %w", in.ID, err))
			continue
		}
		observed++
	}
	return observed, errors.Join(errs...)
}

// UpdatePrices stores new current prices and observes the product with them.
func (s *Service) UpdatePrices(id string, prices map[string]float64, at time.Time) (*lifecycle.Report, error) {
	if len(prices) == 0 {
		return nil, domain.ValidationErrors{{Field: "prices", Message: "at least one price is required"}}
	}
	if err := validatePrices("prices", prices, true); err != nil {
		return nil, err
	}
	if _, err := s.load(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.UpdatePrices(id, prices); err != nil {
		return nil, err
	}
	report, err := s.observe(id, at)
	if err != nil {
		return nil, err
	}

	s.publish(&events.PricesUpdatedData{
		ProductID:      id,
		Prices:         prices,
		ReferenceLevel: report.Resolution.ReferenceLevel,
		State:          string(report.Status.State()),
	})
	return report, nil
}

// AddFixing stores a dated reference-level observation and re-observes the product.
func (s *Service) AddFixing(id string, f domain.Fixing, at time.Time) (*lifecycle.Report, error) {
	var errs domain.ValidationErrors
	if f.Date.IsZero() {
		errs = append(errs, domain.ValidationError{Field: "date", Message: "is required"})
	} else if domain.DateOnly(f.Date).After(domain.DateOnly(at)) {
		errs = append(errs, domain.ValidationError{Field: "date", Message: "must not be in the future"})
	}
	if f.Level <= 0 {
		errs = append(errs, domain.ValidationError{Field: "level", Message: "must be greater than 0"})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if _, err := s.load(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted, err := s.store.AddFixing(id, f)
	if err != nil {
		return nil, err
	}
	report, err := s.observe(id, at)
	if err != nil {
		return nil, err
	}

	// persistAutocall cannot tell a fixing added here from one it stored itself
	if ri := report.Status.RegularIncome; inserted && ri != nil && ri.AutocallDate != nil && domain.SameDate(*ri.AutocallDate, f.Date) {
		s.publishAutocall(id, report)
	}
	return report, nil
}

// RecordIssuerCall stores the issuer's early redemption on a call observation date.
func (s *Service) RecordIssuerCall(id string, date, at time.Time) (*lifecycle.Report, error) {
	p, err := s.build(id, at)
	if err != nil {
		return nil, err
	}

	ic, err := domain.MatchTerms(p.Terms,
		func(*domain.RegularIncomeTerms) (*domain.IssuerCall, error) { return nil, ErrNotCallable },
		func(t *domain.CapitalProtectionTerms) (*domain.IssuerCall, error) {
			if !t.IssuerCallEnabled() {
				return nil, ErrNotCallable
			}
			return t.IssuerCall, nil
		},
		func(*domain.BoostedGrowthTerms) (*domain.IssuerCall, error) { return nil, ErrNotCallable },
	)
	if err != nil {
		return nil, err
	}

	month, ok := triggers.CallMonth(p, ic, date)
	if !ok {
		return nil, domain.ValidationErrors{{Field: "date", Message: "is not an issuer call observation date"}}
	}
	if domain.DateOnly(date).After(domain.DateOnly(at)) {
		return nil, domain.ValidationErrors{{Field: "date", Message: "must not be in the future"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := domain.IssuerCallRecord{Date: domain.DateOnly(date), Month: month}
	if err := s.store.RecordIssuerCall(id, record); err != nil {
		return nil, err
	}
	report, err := s.observe(id, at)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("product_id", id).Int("month", month).Msg("Issuer call recorded")
	s.publish(&events.IssuerCallData{
		ProductID:  id,
		Date:       record.Date,
		Month:      month,
		Redemption: report.Payout.Amount,
	})
	return report, nil
}
