package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/metrics"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
	"github.com/theirongolddev/restock/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	gin.SetMode(gin.TestMode)
	eng := pipeline.New(store.NewMemory(), config.DefaultEngine())
	return New(eng, metrics.New(), Config{Interval: 10 * time.Second, EventsBuffer: 50, StoreDriver: "memory"})
}

func do(t *testing.T, s *Service, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{TotalItems: 10, GoodItems: 7, LowItems: 2, CriticalItems: 1, ShoppingEntries: 3}
	curr := Snapshot{TotalItems: 11, GoodItems: 6, LowItems: 3, CriticalItems: 2, ShoppingEntries: 5}

	delta := diffSnapshots(prev, curr)
	if delta.TotalItems != 1 {
		t.Fatalf("TotalItems delta = %d, want 1", delta.TotalItems)
	}
	if delta.GoodItems != -1 {
		t.Fatalf("GoodItems delta = %d, want -1", delta.GoodItems)
	}
	if delta.CriticalItems != 1 || delta.LowItems != 1 {
		t.Fatalf("status deltas = %+v", delta)
	}
	if delta.ShoppingEntries != 2 {
		t.Fatalf("ShoppingEntries delta = %d, want 2", delta.ShoppingEntries)
	}
	if delta.isZero() {
		t.Fatal("delta unexpectedly reported as zero")
	}
	if !diffSnapshots(curr, curr).isZero() {
		t.Fatal("identical snapshots produced a delta")
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := newTestService(t)
	s.cfg.EventsBuffer = 2

	s.publishEvent(Event{Type: "a"})
	s.publishEvent(Event{Type: "b"})
	s.publishEvent(Event{Type: "c"})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestPollOnce_PublishesDeltas(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	s.pollOnce(ctx)
	s.pollOnce(ctx)
	st := s.snapshotStatus()
	assert.Equal(t, int64(2), st.PollCount)
	assert.Equal(t, 1, st.EventCount, "unchanged inventory should not publish a delta")

	_, err := s.engine.AddItem(ctx, pipeline.NewItem{Name: "Rice", Quantity: 2})
	require.NoError(t, err)
	s.pollOnce(ctx)

	s.mu.RLock()
	last := s.events[len(s.events)-1]
	s.mu.RUnlock()
	assert.Equal(t, "summary_delta", last.Type)
	require.NotNil(t, last.Delta)
	assert.Equal(t, 1, last.Delta.TotalItems)
	assert.Equal(t, 1, s.snapshotStatus().Summary.TotalItems)
}

func TestReceiptEndpoints(t *testing.T) {
	s := newTestService(t)

	w := do(t, s, http.MethodPost, "/v1/receipts", map[string]any{
		"source": "photo",
		"items": []map[string]any{
			{"name": "Milk", "quantity": 2, "category": "Dairy", "price": "2.49"},
			{"name": "Bread", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var rep pipeline.ReconcileReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.True(t, rep.Receipt.Processed)
	assert.Len(t, rep.Created, 2)

	w = do(t, s, http.MethodPost, "/v1/receipts/"+rep.Receipt.ID+"/reconcile", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, http.MethodGet, "/v1/receipts/"+rep.Receipt.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/v1/receipts", nil)
	var list []model.Receipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	w = do(t, s, http.MethodGet, "/v1/items", nil)
	var items []model.ItemView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 2)

	w = do(t, s, http.MethodGet, "/v1/events", nil)
	assert.Contains(t, w.Body.String(), `"receipt_reconciled"`)
}

func TestErrorMapping(t *testing.T) {
	s := newTestService(t)

	w := do(t, s, http.MethodPost, "/v1/receipts", map[string]any{
		"source": "photo",
		"items":  []map[string]any{{"name": "Milk", "quantity": -1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var er errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Contains(t, er.Fields, "Items[0].Quantity")

	w = do(t, s, http.MethodGet, "/v1/items/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/v1/shopping-list/missing/purchase", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/items", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItemAndShoppingEndpoints(t *testing.T) {
	s := newTestService(t)

	w := do(t, s, http.MethodPost, "/v1/items", map[string]any{"name": "Coffee", "quantity": 1, "unit": "bag"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item model.ItemView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))

	w = do(t, s, http.MethodPost, "/v1/items/"+item.ID+"/quantity", map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, "/v1/items/"+item.ID+"/quantity", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/shopping-list/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, s, http.MethodGet, "/v1/items/"+item.ID+"/history", nil)
	var h []model.ConsumptionObservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Len(t, h, 2)

	w = do(t, s, http.MethodPatch, "/v1/items/"+item.ID, map[string]any{"location": "Cellar"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "Cellar", item.Location)

	w = do(t, s, http.MethodDelete, "/v1/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/v1/items/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthStatusMetrics(t *testing.T) {
	s := newTestService(t)
	s.pollOnce(context.Background())

	w := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, "ok\n", w.Body.String())

	w = do(t, s, http.MethodGet, "/v1/status", nil)
	var st Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "memory", st.StoreDriver)
	assert.Equal(t, int64(1), st.PollCount)

	w = do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "restock_items")
}

func TestWebSocketStream(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)

	// the subscriber is registered before the snapshot is written
	_, err = s.engine.AddItem(context.Background(), pipeline.NewItem{Name: "Tea", Quantity: 5})
	require.NoError(t, err)

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, string(pipeline.EventItemAdded), ev.Type)
	require.NotNil(t, ev.Change)
	assert.Equal(t, "Tea", ev.Change.Items[0].Name)
}

// readSSE reads one event frame and decodes its data line.
func readSSE(t *testing.T, r *bufio.Reader) (string, Event) {
	t.Helper()
	var name string
	var ev Event
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev))
		case line == "" && name != "":
			return name, ev
		}
	}
}

func TestSSEStream(t *testing.T) {
	s := newTestService(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	r := bufio.NewReader(resp.Body)
	name, first := readSSE(t, r)
	assert.Equal(t, "snapshot", name)
	assert.Equal(t, "snapshot", first.Type)

	_, err = s.engine.AddItem(context.Background(), pipeline.NewItem{Name: "Tea", Quantity: 5})
	require.NoError(t, err)

	name, ev := readSSE(t, r)
	assert.Equal(t, string(pipeline.EventItemAdded), name)
	require.NotNil(t, ev.Change)
	assert.Equal(t, "Tea", ev.Change.Items[0].Name)
}
