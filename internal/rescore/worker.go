// Package rescore keeps stored ideality scores current. Scores depend on the
// evaluation year through the age sub-score, so every stored score is
// stamped with the year it was computed for and recomputed once that year
// goes stale.
package rescore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/MikeSquared-Agency/Ideality/internal/config"
	"github.com/MikeSquared-Agency/Ideality/internal/hermes"
	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

// ErrStoreUnavailable is returned while the store circuit breaker is open.
var ErrStoreUnavailable = errors.New("store unavailable")

type Stats struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type Worker struct {
	store   store.Store
	hermes  hermes.Client
	scorer  *scoring.Scorer
	metrics *metrics.Metrics
	logger  *slog.Logger

	interval     time.Duration
	batchSize    int
	maxRetries   uint64
	retryInitial time.Duration
	breaker      *gobreaker.CircuitBreaker[struct{}]

	// serializes batches between the ticker, NATS and admin triggers
	runMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(s store.Store, h hermes.Client, sc *scoring.Scorer, m *metrics.Metrics, cfg config.RescoreConfig, logger *slog.Logger) *Worker {
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "rescore-store",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Worker{
		store:        s,
		hermes:       h,
		scorer:       sc,
		metrics:      m,
		logger:       logger,
		interval:     time.Duration(cfg.IntervalMs) * time.Millisecond,
		batchSize:    cfg.BatchSize,
		maxRetries:   cfg.MaxRetries,
		retryInitial: 100 * time.Millisecond,
		breaker:      breaker,
		stopCh:       make(chan struct{}),
	}
}

// Start runs one batch immediately, then one per interval until Stop or ctx
// cancellation.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("rescore batch failed", "error", err)
	}
}

// RunOnce rescores one batch of stale properties. A property whose write
// fails stays stale and is picked up again by a later batch.
func (w *Worker) RunOnce(ctx context.Context) (Stats, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	start := time.Now()
	year := w.scorer.EvaluationYear()

	props, err := w.store.ListStaleScores(ctx, year, w.batchSize)
	if err != nil {
		return Stats{}, fmt.Errorf("list stale scores: %w", err)
	}
	if w.metrics != nil {
		w.metrics.RescoreRuns.Inc()
	}

	stats := Stats{Scanned: len(props)}
	for _, p := range props {
		if ctx.Err() != nil {
			break
		}
		if _, err := w.rescore(ctx, p, year); err != nil {
			stats.Failed++
			w.logger.Warn("failed to persist score", "property_id", p.ID, "error", err)
			continue
		}
		stats.Updated++
	}

	if w.metrics != nil {
		w.metrics.RescoreUpdated.Add(float64(stats.Updated))
		w.metrics.RescoreFailures.Add(float64(stats.Failed))
	}

	if stats.Scanned > 0 {
		w.logger.Info("rescore batch complete",
			"scanned", stats.Scanned, "updated", stats.Updated, "failed", stats.Failed, "evaluation_year", year)
		hermes.Emit(w.hermes, w.logger, hermes.SubjectRescoreCompleted, hermes.RescoreStatsEvent{
			Scanned:        stats.Scanned,
			Updated:        stats.Updated,
			Failed:         stats.Failed,
			EvaluationYear: year,
			DurationMs:     time.Since(start).Milliseconds(),
			Timestamp:      time.Now().UTC(),
		})
	}
	return stats, nil
}

// RescoreProperty recomputes and stores the score of a single property.
// It returns (nil, nil) when the property does not exist.
func (w *Worker) RescoreProperty(ctx context.Context, id uuid.UUID) (*scoring.Result, error) {
	p, err := w.store.GetProperty(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	result, err := w.rescore(ctx, p, w.scorer.EvaluationYear())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (w *Worker) rescore(ctx context.Context, p *store.Property, year int) (scoring.Result, error) {
	result := w.scorer.Score(p.Attributes(), scoring.WeightOverrides{})
	w.metrics.ObserveScore(metrics.SourceRescore, result.Score)

	if err := w.persist(ctx, p.ID, result.Score, year); err != nil {
		return result, err
	}

	score := result.Score
	p.IdealityScore, p.ScoredYear = &score, &year
	hermes.Emit(w.hermes, w.logger, hermes.SubjectPropertyScored(p.ID.String()), hermes.PropertyScoredEvent{
		PropertyID:     p.ID.String(),
		Score:          result.Score,
		Breakdown:      breakdownMap(result.Breakdown),
		EvaluationYear: year,
		Source:         metrics.SourceRescore,
	})
	return result, nil
}

// persist writes through the circuit breaker, retrying transient failures
// with exponential backoff.
func (w *Worker) persist(ctx context.Context, id uuid.UUID, score, year int) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.retryInitial
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	operation := func() error {
		_, err := w.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, w.store.UpdateIdealityScore(ctx, id, score, year)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrStoreUnavailable)
		}
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, w.maxRetries), ctx))
}

// SetupSubscriptions rescores a property whenever ingestion reports that
// its attributes changed.
func (w *Worker) SetupSubscriptions() {
	if w.hermes == nil {
		return
	}
	_ = w.hermes.Subscribe(hermes.SubjectPropertyUpdatedAll, func(subject string, data []byte) {
		id, err := propertyIDFrom(subject, data)
		if err != nil {
			w.logger.Warn("invalid property update event", "subject", subject, "error", err)
			return
		}
		w.runMu.Lock()
		defer w.runMu.Unlock()
		if _, err := w.RescoreProperty(context.Background(), id); err != nil {
			w.logger.Error("failed to rescore updated property", "property_id", id, "error", err)
		}
	})
}

// propertyIDFrom reads the property ID from the event body, falling back to
// the subject token.
func propertyIDFrom(subject string, data []byte) (uuid.UUID, error) {
	var evt struct {
		PropertyID string `json:"property_id"`
	}
	if len(data) > 0 && json.Unmarshal(data, &evt) == nil && evt.PropertyID != "" {
		return uuid.Parse(evt.PropertyID)
	}
	parts := strings.Split(subject, ".")
	if len(parts) != 4 {
		return uuid.Nil, fmt.Errorf("unexpected subject %q", subject)
	}
	return uuid.Parse(parts[2])
}

func breakdownMap(b scoring.Breakdown) map[string]int {
	names := scoring.Dimensions()
	values := b.Values()
	out := make(map[string]int, len(names))
	for i, name := range names {
		out[name] = values[i]
	}
	return out
}
