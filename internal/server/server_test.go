package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/noteengine/internal/events"
	"github.com/aristath/noteengine/internal/modules/products"
	"github.com/aristath/noteengine/internal/scheduler"
	testutil "github.com/aristath/noteengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	db, cleanup := testutil.NewTestDB(t, "notes")
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	bus := events.NewBus(log)
	service := products.NewService(products.NewRepository(db.Conn(), log), bus, "USD", log)

	sched := scheduler.New(log)
	require.NoError(t, sched.AddJob("0 */15 * * * *", scheduler.NewBarrierMonitorJob(service, bus, log)))

	s := New(Config{
		Log:      log,
		DB:       db,
		EventBus: bus,
		Products: service,
		Jobs:     sched,
		Port:     0,
		DevMode:  true,
	})
	return s, bus
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "notes", body["database"])
}

func TestHandleHealth_NoDatabase(t *testing.T) {
	s := New(Config{Log: zerolog.Nop(), DevMode: true})

	w := serve(s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProductRoutesMounted(t *testing.T) {
	s, _ := newTestServer(t)

	raw, err := json.Marshal(testutil.NewRegularIncomeFixture())
	require.NoError(t, err)

	w := serve(s, "POST", "/api/products?at=2024-01-20", string(raw))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(s, "GET", "/api/products/ri-spx/report?at=2024-04-25", "")
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Coupons []struct {
			Status string `json:"status"`
		} `json:"coupons"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.Coupons, 4)
	assert.Equal(t, "paid", report.Coupons[0].Status)

	w = serve(s, "GET", "/api/products/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, "GET", "/api/system/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":["barrier_monitor"]}`, w.Body.String())

	w = serve(s, "POST", "/api/system/jobs/barrier_monitor/run", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(s, "POST", "/api/system/jobs/unknown/run", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseTypes(t *testing.T) {
	assert.Equal(t, events.AllTypes, parseTypes(""))
	assert.Equal(t,
		[]events.EventType{events.BarrierBreached, events.CouponPaid},
		parseTypes("barrier_breached, COUPON_PAID,barrier_breached"))
}

func TestEventsSocket(t *testing.T) {
	s, bus := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws?types=PRODUCT_CREATED"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "connected", msg["type"])

	// Filtered out
	bus.Publish("test", &events.CouponPaidData{ProductID: "ri-spx"})
	bus.Publish("test", &events.ProductCreatedData{ProductID: "ri-spx", Name: "Note", Bucket: "regular_income"})

	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "PRODUCT_CREATED", msg["type"])
	assert.Equal(t, "test", msg["module"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "ri-spx", data["product_id"])
}

func TestEventsStream(t *testing.T) {
	s, bus := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() map[string]interface{} {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var payload map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &payload))
				return payload
			}
		}
	}

	assert.Equal(t, "connected", readData()["type"])

	bus.Publish("products", &events.BreachData{ProductID: "bg-sx5e-nky", Symbol: "SX5E", Kind: "barrier"})
	assert.Equal(t, "BARRIER_BREACHED", readData()["type"])
}
