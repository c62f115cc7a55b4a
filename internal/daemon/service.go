// Package daemon serves the engine over HTTP and keeps the shopping list
// fresh in the background.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/restock/internal/metrics"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	StoreDriver  string
}

// Snapshot is a compact inventory state for status/event payloads.
type Snapshot struct {
	At               time.Time `json:"at"`
	TotalItems       int       `json:"total_items"`
	GoodItems        int       `json:"good_items"`
	LowItems         int       `json:"low_items"`
	CriticalItems    int       `json:"critical_items"`
	UnknownRateItems int       `json:"unknown_rate_items"`
	ShoppingEntries  int       `json:"shopping_entries"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	TotalItems      int `json:"total_items"`
	GoodItems       int `json:"good_items"`
	LowItems        int `json:"low_items"`
	CriticalItems   int `json:"critical_items"`
	ShoppingEntries int `json:"shopping_entries"`
}

func (d Delta) isZero() bool {
	return d.TotalItems == 0 &&
		d.GoodItems == 0 &&
		d.LowItems == 0 &&
		d.CriticalItems == 0 &&
		d.ShoppingEntries == 0
}

// Event is published to /v1/events and the live streams. Type is
// "snapshot", "summary_delta" or one of the engine's event kinds.
type Event struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Snapshot  *Snapshot       `json:"snapshot,omitempty"`
	Delta     *Delta          `json:"delta,omitempty"`
	Change    *pipeline.Event `json:"change,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	StoreDriver     string    `json:"store_driver,omitempty"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg     Config
	engine  *pipeline.Engine
	metrics *metrics.Collector
	router  *gin.Engine

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon over eng and registers it as an engine listener.
// collector may be nil, in which case /metrics is not served.
func New(eng *pipeline.Engine, collector *metrics.Collector, cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}

	s := &Service{
		cfg:       cfg,
		engine:    eng,
		metrics:   collector,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
	s.router = s.routes()
	eng.AddListener(s)
	return s
}

// Router returns the HTTP handler.
func (s *Service) Router() *gin.Engine { return s.router }

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("daemon http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		// Seed initial snapshot so status is useful immediately.
		s.pollOnce(ctx)

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.pollOnce(ctx)
			}
		}
	})
	return g.Wait()
}

// pollOnce re-plans the whole shopping list and publishes a summary delta
// when status counts moved.
func (s *Service) pollOnce(ctx context.Context) {
	if _, err := s.engine.RefreshShoppingList(ctx); err != nil {
		s.pollFailed(err)
		return
	}
	sum, err := s.engine.Summary(ctx)
	if err != nil {
		s.pollFailed(err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveSummary(sum)
	}

	now := time.Now()
	snap := snapshotFromSummary(sum, now)

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""

	if !prevExists {
		ev = Event{Type: "snapshot", Timestamp: now, Snapshot: &snap}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		ev = Event{Type: "summary_delta", Timestamp: now, Snapshot: &snap, Delta: &delta}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func (s *Service) pollFailed(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.lastPollAt = time.Now()
	s.pollCount++
	s.mu.Unlock()
	log.Printf("restock daemon poll error: %v", err)
}

// HandleEvent implements pipeline.Listener by forwarding engine changes to
// event subscribers.
func (s *Service) HandleEvent(_ context.Context, ev pipeline.Event) error {
	change := ev
	s.publishEvent(Event{Type: string(ev.Kind), Timestamp: ev.At, Change: &change})
	return nil
}

func snapshotFromSummary(sum model.Summary, at time.Time) Snapshot {
	return Snapshot{
		At:               at,
		TotalItems:       sum.TotalItems,
		GoodItems:        sum.GoodItems,
		LowItems:         sum.LowItems,
		CriticalItems:    sum.CriticalItems,
		UnknownRateItems: sum.UnknownRateItems,
		ShoppingEntries:  sum.ActiveShoppingEntries,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		TotalItems:      curr.TotalItems - prev.TotalItems,
		GoodItems:       curr.GoodItems - prev.GoodItems,
		LowItems:        curr.LowItems - prev.LowItems,
		CriticalItems:   curr.CriticalItems - prev.CriticalItems,
		ShoppingEntries: curr.ShoppingEntries - prev.ShoppingEntries,
	}
}

// publishEvent assigns the next id, appends to the ring buffer and fans out
// to subscribers without blocking on slow ones.
func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		StoreDriver:     s.cfg.StoreDriver,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
