package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventData_Types(t *testing.T) {
	testCases := []struct {
		data     EventData
		expected EventType
	}{
		{&BreachData{Kind: "barrier"}, BarrierBreached},
		{&BreachData{Kind: "knock_in"}, KnockInTriggered},
		{&AutocallData{}, AutocallTriggered},
		{&IssuerCallData{}, IssuerCalled},
		{&CouponPaidData{}, CouponPaid},
		{&PricesUpdatedData{}, PricesUpdated},
		{&ProductCreatedData{}, ProductCreated},
		{&JobStatusData{Status: "completed"}, JobCompleted},
		{&JobStatusData{Status: "failed"}, JobFailed},
	}

	for _, tc := range testCases {
		t.Run(string(tc.expected), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.data.EventType())
		})
	}
}

func TestEvent_JSONKeepsConcreteData(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	original := Event{
		Type:      KnockInTriggered,
		Timestamp: date,
		Module:    "products",
		Data: &BreachData{
			ProductID:      "p-1",
			Symbol:         "AAPL",
			Kind:           "knock_in",
			Date:           date,
			ReferenceLevel: 0.55,
			LevelPct:       60,
		},
	}

	raw, err := json.Marshal(&original)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"KNOCK_IN_TRIGGERED"`)
	assert.Contains(t, string(raw), `"symbol":"AAPL"`)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	data, ok := decoded.Data.(*BreachData)
	require.True(t, ok)
	assert.Equal(t, "AAPL", data.Symbol)
	assert.Equal(t, 0.55, data.ReferenceLevel)
	assert.True(t, date.Equal(data.Date))
}

func TestEvent_UnmarshalUnknownType(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"type":"NOPE","data":{"a":1}}`), &e)
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"NOPE","data":null}`), &e))
	assert.Nil(t, e.Data)
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	id := bus.Subscribe(CouponPaid, func(e *Event) { got = append(got, e) })
	other := 0
	bus.Subscribe(PricesUpdated, func(*Event) { other++ })

	bus.Publish("products", &CouponPaidData{ProductID: "p-1", Amount: 1250})
	require.Len(t, got, 1)
	assert.Equal(t, CouponPaid, got[0].Type)
	assert.Equal(t, "products", got[0].Module)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, 0, other)

	bus.Unsubscribe(CouponPaid, id)
	assert.Equal(t, 0, bus.SubscriberCount(CouponPaid))
	bus.Publish("products", &CouponPaidData{ProductID: "p-1"})
	assert.Len(t, got, 1)

	assert.NotPanics(t, func() { bus.Publish("products", nil) })
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	bus.Subscribe(BarrierBreached, func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish("monitor", &BreachData{Kind: "barrier"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, count)
}
