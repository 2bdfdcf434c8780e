package testing

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/events"
	"github.com/aristath/noteengine/internal/modules/lifecycle"
	"github.com/aristath/noteengine/internal/modules/triggers"
)

// MockProductStore is an in-memory product store for service tests.
type MockProductStore struct {
	mu       sync.RWMutex
	products map[string]lifecycle.ProductInput
	order    []string
	coupons  map[string][]domain.CouponEntry
	err      error
}

// NewMockProductStore creates a new mock product store seeded with products
func NewMockProductStore(products ...lifecycle.ProductInput) *MockProductStore {
	m := &MockProductStore{
		products: make(map[string]lifecycle.ProductInput),
		coupons:  make(map[string][]domain.CouponEntry),
	}
	for _, p := range products {
		_, _ = m.Create(p)
	}
	return m
}

// SetError makes every subsequent call fail with err
func (m *MockProductStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func copyInput(in lifecycle.ProductInput) lifecycle.ProductInput {
	c := in
	c.Underlyings = make([]lifecycle.UnderlyingInput, len(in.Underlyings))
	for i, u := range in.Underlyings {
		u.Breaches = append([]domain.BreachEvent(nil), u.Breaches...)
		c.Underlyings[i] = u
	}
	c.Fixings = append([]domain.Fixing(nil), in.Fixings...)
	if in.IssuerCall != nil {
		call := *in.IssuerCall
		c.IssuerCall = &call
	}
	return c
}

func (m *MockProductStore) Create(in lifecycle.ProductInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if in.ID == "" {
		in.ID = fmt.Sprintf("mock-%d", len(m.order)+1)
	}
	if _, exists := m.products[in.ID]; exists {
		return "", fmt.Errorf("product %s already exists", in.ID)
	}
	m.products[in.ID] = copyInput(in)
	m.order = append(m.order, in.ID)
	return in.ID, nil
}

func (m *MockProductStore) GetByID(id string) (*lifecycle.ProductInput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	in, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	c := copyInput(in)
	return &c, nil
}

func (m *MockProductStore) List() ([]lifecycle.ProductInput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	result := make([]lifecycle.ProductInput, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, copyInput(m.products[id]))
	}
	return result, nil
}

func (m *MockProductStore) UpdatePrices(id string, prices map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	in, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %s not found", id)
	}
	for symbol, price := range prices {
		found := false
		for i := range in.Underlyings {
			if in.Underlyings[i].Symbol == symbol {
				in.Underlyings[i].CurrentPrice = price
				found = true
			}
		}
		if !found {
			return fmt.Errorf("unknown underlying %s", symbol)
		}
	}
	m.products[id] = in
	return nil
}

func (m *MockProductStore) AddFixing(id string, f domain.Fixing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	in, ok := m.products[id]
	if !ok {
		return false, fmt.Errorf("product %s not found", id)
	}
	for _, existing := range in.Fixings {
		if domain.SameDate(existing.Date, f.Date) {
			return false, nil
		}
	}
	f.Date = domain.DateOnly(f.Date)
	in.Fixings = append(in.Fixings, f)
	sort.Slice(in.Fixings, func(i, j int) bool { return in.Fixings[i].Date.Before(in.Fixings[j].Date) })
	m.products[id] = in
	return true, nil
}

func (m *MockProductStore) RecordIssuerCall(id string, call domain.IssuerCallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	in, ok := m.products[id]
	if !ok {
		return fmt.Errorf("product %s not found", id)
	}
	if in.IssuerCall != nil {
		return errors.New("issuer call already recorded")
	}
	in.IssuerCall = &call
	m.products[id] = in
	return nil
}

func (m *MockProductStore) AppendBreachEvents(id string, breaches []triggers.RecordedBreach) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	in, ok := m.products[id]
	if !ok {
		return 0, fmt.Errorf("product %s not found", id)
	}

	added := 0
	for _, b := range breaches {
		for i := range in.Underlyings {
			u := &in.Underlyings[i]
			if u.Symbol != b.Symbol {
				continue
			}
			duplicate := false
			for _, e := range u.Breaches {
				if e.Kind == b.Event.Kind && domain.SameDate(e.Date, b.Event.Date) {
					duplicate = true
				}
			}
			if !duplicate {
				u.Breaches = append(u.Breaches, b.Event)
				added++
			}
		}
	}
	m.products[id] = in
	return added, nil
}

func (m *MockProductStore) SaveCouponStates(id string, entries []domain.CouponEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.coupons[id] = append([]domain.CouponEntry(nil), entries...)
	return nil
}

func (m *MockProductStore) GetCouponStates(id string) ([]domain.CouponEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.CouponEntry(nil), m.coupons[id]...), nil
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.EventData
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(module string, data events.EventData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, data)
}

// Types returns the types of all published events in order.
func (m *MockPublisher) Types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]events.EventType, len(m.events))
	for i, e := range m.events {
		types[i] = e.EventType()
	}
	return types
}

// OfType returns the published data of type t.
func (m *MockPublisher) OfType(t events.EventType) []events.EventData {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.EventData
	for _, e := range m.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets everything published so far.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
