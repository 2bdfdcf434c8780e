package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// BreachData describes a barrier or knock-in breach newly recorded on an underlying.
type BreachData struct {
	ProductID      string    `json:"product_id"`
	Symbol         string    `json:"symbol"`
	Kind           string    `json:"kind"`
	Date           time.Time `json:"date"`
	ReferenceLevel float64   `json:"reference_level"`
	LevelPct       float64   `json:"level_pct"`
}

// EventType maps the breach kind onto its event.
func (d *BreachData) EventType() EventType {
	if d.Kind == "knock_in" {
		return KnockInTriggered
	}
	return BarrierBreached
}

// AutocallData contains data for AutocallTriggered events
type AutocallData struct {
	ProductID      string    `json:"product_id"`
	Date           time.Time `json:"date"`
	ReferenceLevel float64   `json:"reference_level"`
	Redemption     float64   `json:"redemption"`
}

func (d *AutocallData) EventType() EventType {
	return AutocallTriggered
}

// IssuerCallData contains data for IssuerCalled events
type IssuerCallData struct {
	ProductID  string    `json:"product_id"`
	Date       time.Time `json:"date"`
	Month      int       `json:"month"`
	Redemption float64   `json:"redemption"`
}

func (d *IssuerCallData) EventType() EventType {
	return IssuerCalled
}

// CouponPaidData contains data for CouponPaid events
type CouponPaidData struct {
	ProductID       string    `json:"product_id"`
	ObservationDate time.Time `json:"observation_date"`
	PaymentDate     time.Time `json:"payment_date"`
	Amount          float64   `json:"amount"`
}

func (d *CouponPaidData) EventType() EventType {
	return CouponPaid
}

// PricesUpdatedData contains data for PricesUpdated events
type PricesUpdatedData struct {
	ProductID      string             `json:"product_id"`
	Prices         map[string]float64 `json:"prices"`
	ReferenceLevel float64            `json:"reference_level"`
	State          string             `json:"state"`
}

func (d *PricesUpdatedData) EventType() EventType {
	return PricesUpdated
}

// ProductCreatedData contains data for ProductCreated events
type ProductCreatedData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Bucket    string `json:"bucket"`
}

func (d *ProductCreatedData) EventType() EventType {
	return ProductCreated
}

// JobStatusData contains data for scheduler job events
type JobStatusData struct {
	JobName  string  `json:"job_name"`
	Status   string  `json:"status"` // "completed" or "failed"
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration,omitempty"` // seconds
	Products int     `json:"products,omitempty"`
}

// EventType is decided by the Status field
func (d *JobStatusData) EventType() EventType {
	if d.Status == "failed" {
		return JobFailed
	}
	return JobCompleted
}

// newData returns an empty data value for t, used when decoding events.
func newData(t EventType) (EventData, error) {
	switch t {
	case BarrierBreached, KnockInTriggered:
		return &BreachData{}, nil
	case AutocallTriggered:
		return &AutocallData{}, nil
	case IssuerCalled:
		return &IssuerCallData{}, nil
	case CouponPaid:
		return &CouponPaidData{}, nil
	case PricesUpdated:
		return &PricesUpdatedData{}, nil
	case ProductCreated:
		return &ProductCreatedData{}, nil
	case JobCompleted, JobFailed:
		return &JobStatusData{}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}

// UnmarshalJSON decodes Data into the concrete type named by Type.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*alias
	}{
		alias: (*alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		e.Data = nil
		return nil
	}

	eventData, err := newData(e.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(aux.Data, eventData); err != nil {
		return err
	}
	e.Data = eventData
	return nil
}
