package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/comparison"
	"bridgewatch/internal/config"
	"bridgewatch/internal/conversion"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/fetcher"
	"bridgewatch/internal/history"
	"bridgewatch/internal/logging"
	"bridgewatch/internal/scheduler"
	"bridgewatch/internal/storage"
)

const defaultWorkers = 4

// ErrInvalidAmount rejects negative conversion amounts.
var ErrInvalidAmount = errors.New("service: amount must not be negative")

// Service orchestrates snapshots, comparisons and alert evaluation.
type Service struct {
	scheduler *scheduler.Scheduler
	snapshots storage.SnapshotStore
	alerts    storage.AlertStore
	quoter    fetcher.ProviderQuoter
	notifier  alerting.Notifier
	logger    zerolog.Logger

	fees     domain.FeeConfig
	workers  int
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
	now      func() time.Time
}

// New constructs the service. quoter and notifier may be nil.
func New(cfg *config.Config, sched *scheduler.Scheduler, snapshots storage.SnapshotStore, alerts storage.AlertStore, quoter fetcher.ProviderQuoter, notifier alerting.Notifier, logger zerolog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	fees, err := cfg.Fees.Domain()
	if err != nil {
		return nil, err
	}

	workers := cfg.Alerting.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	var locker storage.AdvisoryLocker
	if l, ok := snapshots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		snapshots: snapshots,
		alerts:    alerts,
		quoter:    quoter,
		notifier:  notifier,
		logger:    logging.Component(logger, "service"),
		fees:      fees,
		workers:   workers,
		alertsOn:  cfg.Alerting.Enabled,
		locker:    locker,
		lockKey:   cfg.Scheduler.AdvisoryLockKey,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Fees returns the on-chain fee schedule in use.
func (s *Service) Fees() domain.FeeConfig {
	return s.fees
}

// Run begins the aligned evaluation loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessBucket)
}

// ProcessBucket evaluates every active alert once for the given bucket.
func (s *Service) ProcessBucket(ctx context.Context, bucket time.Time) error {
	if !s.alertsOn {
		s.logger.Debug().Time("bucket", bucket).Msg("alerting disabled, skipping bucket")
		return nil
	}
	report, err := s.EvaluateAlerts(ctx, s.now())
	if err != nil {
		return err
	}
	report.log(s.logger.Info().Time("bucket", bucket))
	return nil
}

// RecordSnapshot derives and stores a snapshot from the two USDC legs.
func (s *Service) RecordSnapshot(ctx context.Context, usdcBRL, usdcEUR decimal.Decimal, ts time.Time, source string) (storage.SnapshotRecord, error) {
	snap, err := domain.NewRateSnapshot(usdcBRL, usdcEUR, ts)
	if err != nil {
		return storage.SnapshotRecord{}, err
	}
	record := storage.SnapshotRecord{RateSnapshot: snap, Source: source, CreatedAt: s.now()}
	if err := s.snapshots.UpsertSnapshot(ctx, record); err != nil {
		return storage.SnapshotRecord{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.logger.Info().Time("ts", snap.Timestamp).
		Str("cross", snap.Cross.StringFixed(6)).
		Str("source", source).
		Msg("snapshot recorded")
	return record, nil
}

// Compare prices amount on the on-chain route using the latest snapshot and
// ranks it against the configured providers.
func (s *Service) Compare(ctx context.Context, pair domain.Pair, amount decimal.Decimal, mode conversion.Mode) (comparison.Comparison, error) {
	snap, err := s.snapshots.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			return comparison.Comparison{}, fmt.Errorf("rates unavailable: %w", err)
		}
		return comparison.Comparison{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	return s.CompareWith(ctx, snap.RateSnapshot, pair, amount, mode)
}

// CompareWith is Compare against an explicit snapshot. A failing provider
// lookup leaves the comparison without providers.
func (s *Service) CompareWith(ctx context.Context, rates domain.RateSnapshot, pair domain.Pair, amount decimal.Decimal, mode conversion.Mode) (comparison.Comparison, error) {
	if !pair.Valid() {
		return comparison.Comparison{}, fmt.Errorf("unsupported pair %d", pair)
	}
	if amount.IsNegative() {
		return comparison.Comparison{}, ErrInvalidAmount
	}

	var onchain conversion.Result
	if mode == conversion.Reverse {
		onchain = conversion.CalculateReverse(pair, amount, rates, s.fees)
	} else {
		onchain = conversion.CalculateForward(pair, amount, rates, s.fees)
	}

	var quotes []comparison.ProviderQuote
	if s.quoter != nil && amount.IsPositive() {
		req := fetcher.QuoteRequest{Pair: pair, Mode: mode, Amount: amount}
		if mode == conversion.Reverse {
			req.SendAmountHint = onchain.InputAmount
		}
		q, err := s.quoter.Quotes(ctx, req)
		if err != nil {
			s.logger.Warn().Err(err).Str("pair", pair.String()).Msg("provider quotes unavailable")
		} else {
			quotes = q
		}
	}

	return comparison.Merge(onchain, quotes, mode), nil
}

// EvaluateAlerts runs one evaluation cycle over the active alerts at now.
// A missing snapshot is reported through CycleReport.RatesUnavailable and is
// not an error.
func (s *Service) EvaluateAlerts(ctx context.Context, now time.Time) (CycleReport, error) {
	report := CycleReport{EvaluatedAt: now}
	if s.alerts == nil {
		return report, fmt.Errorf("alert store not configured")
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		s.logger.Debug().Time("now", now).Msg("skip cycle because advisory lock held elsewhere")
		report.Skipped = true
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	snap, err := s.snapshots.LatestSnapshot(ctx)
	if errors.Is(err, storage.ErrNoSnapshot) {
		s.logger.Warn().Time("now", now).Msg("rates unavailable, no alerts evaluated")
		report.RatesUnavailable = true
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("load latest snapshot: %w", err)
	}

	active, err := s.alerts.ListActiveAlerts(ctx)
	if err != nil {
		return report, fmt.Errorf("list active alerts: %w", err)
	}
	if len(active) == 0 {
		return report, nil
	}

	avg, err := s.loadHistory(ctx, active, now)
	if err != nil {
		return report, err
	}

	results := make([]alertOutcome, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, alert := range active {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.evaluateOne(gctx, alert, snap.RateFor(alert.Pair), avg, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, r := range results {
		report.add(r)
	}
	return report, nil
}

// loadHistory prefetches the widest averaging window any alert needs.
func (s *Service) loadHistory(ctx context.Context, alerts []alerting.Alert, now time.Time) (history.AverageFunc, error) {
	window := 0
	for _, a := range alerts {
		if a.ThresholdType != alerting.ThresholdRelative {
			continue
		}
		if d := a.ReferenceType.WindowDays(); d > window {
			window = d
		}
	}
	if window == 0 {
		return nil, nil
	}

	from := now.Add(-time.Duration(window) * 24 * time.Hour)
	records, err := s.snapshots.ListSnapshotsBetween(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("load rate history: %w", err)
	}
	snaps := make([]domain.RateSnapshot, len(records))
	for i, r := range records {
		snaps[i] = r.RateSnapshot
	}

	byPair := make(map[domain.Pair][]history.Sample, len(domain.Pairs))
	for _, p := range domain.Pairs {
		byPair[p] = history.SamplesFor(p, snaps)
	}
	return history.FromSamples(byPair, now), nil
}

func (s *Service) evaluateOne(ctx context.Context, alert alerting.Alert, rate decimal.Decimal, avg history.AverageFunc, now time.Time) alertOutcome {
	log := s.logger.With().Str("alert_id", alert.ID.String()).Str("pair", alert.Pair.String()).Logger()

	resolved, err := alerting.Resolve(alert, rate, avg)
	if errors.Is(err, alerting.ErrMissingReferenceData) {
		log.Info().Str("reference", string(alert.ReferenceType)).Msg("reference average unavailable, alert deferred")
		return alertOutcome{kind: outcomeDeferred}
	}
	if err != nil {
		log.Error().Err(err).Msg("resolve alert threshold")
		return alertOutcome{kind: outcomeFailed}
	}

	res := alerting.Evaluate(alert, resolved, now)
	out := alertOutcome{result: res, evaluated: true}
	switch {
	case !res.Triggered:
		out.kind = outcomeQuiet
		return out
	case res.SuppressedByCooldown:
		out.kind = outcomeSuppressed
		return out
	}

	applied, err := s.alerts.MarkAlertTriggered(ctx, alert.ID, alert.LastTriggeredAt, now)
	if err != nil {
		log.Error().Err(err).Msg("failed to record alert trigger")
		out.kind = outcomeFailed
		return out
	}
	if !applied {
		log.Debug().Msg("alert already fired by a concurrent cycle")
		out.kind = outcomeLostRace
		return out
	}

	out.kind = outcomeFired
	log.Info().Str("rate", res.CurrentRate.StringFixed(6)).
		Str("threshold", res.CalculatedThreshold.StringFixed(6)).
		Msg("alert fired")

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, alerting.NewNotification(res)); err != nil {
			log.Error().Err(err).Msg("failed to dispatch alert")
			out.notifyFailed = true
		}
	}
	return out
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
