package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/comparison"
	"bridgewatch/internal/config"
	"bridgewatch/internal/conversion"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/fetcher"
	"bridgewatch/internal/storage"
	"bridgewatch/internal/storage/memory"
)

var evalTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notes)
}

type stubQuoter struct {
	quotes []comparison.ProviderQuote
	err    error
	last   fetcher.QuoteRequest
}

func (q *stubQuoter) Quotes(_ context.Context, req fetcher.QuoteRequest) ([]comparison.ProviderQuote, error) {
	q.last = req
	return q.quotes, q.err
}

// noHistory hides every stored snapshot from range queries.
type noHistory struct {
	*memory.Store
}

func (noHistory) ListSnapshotsBetween(context.Context, time.Time, time.Time) ([]storage.SnapshotRecord, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Fees: config.FeesConfig{
			TradeFeeEU:       "0.001",
			TradeFeeBR:       "0.001",
			NetworkFeeFixed:  "1.0",
			WithdrawFeeFixed: "3.5",
		},
		Alerting: config.AlertingConfig{Enabled: true, Workers: 4},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// putCross stores a snapshot whose EUR/BRL cross equals cross.
func putCross(t *testing.T, store storage.SnapshotStore, cross string, ts time.Time) {
	t.Helper()
	snap, err := domain.NewRateSnapshot(dec(cross), decimal.NewFromInt(1), ts)
	require.NoError(t, err)
	require.NoError(t, store.UpsertSnapshot(context.Background(), storage.SnapshotRecord{RateSnapshot: snap, Source: "test"}))
}

func newTestService(t *testing.T, snapshots storage.SnapshotStore, alerts storage.AlertStore, quoter fetcher.ProviderQuoter, notifier alerting.Notifier) *Service {
	t.Helper()
	svc, err := New(testConfig(), nil, snapshots, alerts, quoter, notifier, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func absoluteAlert(threshold string, cooldown int) alerting.Alert {
	return alerting.Alert{
		Pair:            domain.PairEURBRL,
		ThresholdType:   alerting.ThresholdAbsolute,
		ThresholdValue:  dec(threshold),
		CooldownMinutes: cooldown,
		Active:          true,
	}
}

func TestNewRejectsInvalidFees(t *testing.T) {
	cfg := testConfig()
	cfg.Fees.TradeFeeEU = "1.5"
	_, err := New(cfg, nil, memory.NewStore(), nil, nil, nil, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrInvalidFees)
}

func TestEvaluateAlertsRatesUnavailable(t *testing.T) {
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	_, err := store.InsertAlert(context.Background(), absoluteAlert("6", 1))
	require.NoError(t, err)

	svc := newTestService(t, store, store, nil, notifier)
	report, err := svc.EvaluateAlerts(context.Background(), evalTime)

	require.NoError(t, err)
	assert.True(t, report.RatesUnavailable)
	assert.Zero(t, report.Evaluated)
	assert.Zero(t, notifier.count())
}

func TestEvaluateAlertsFiresAndHonoursCooldown(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	putCross(t, store, "6.20", evalTime.Add(-time.Minute))

	alert, err := store.InsertAlert(ctx, absoluteAlert("6.20", 60))
	require.NoError(t, err)
	quiet, err := store.InsertAlert(ctx, absoluteAlert("7", 60))
	require.NoError(t, err)

	svc := newTestService(t, store, store, nil, notifier)

	report, err := svc.EvaluateAlerts(ctx, evalTime)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, 1, report.Fired)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, alert.ID.String(), notifier.notes[0].AlertID)
	assert.True(t, notifier.notes[0].CurrentRate.Equal(dec("6.2")))

	stored, err := store.GetAlert(ctx, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastTriggeredAt)
	assert.True(t, stored.LastTriggeredAt.Equal(evalTime))

	untouched, err := store.GetAlert(ctx, quiet.ID)
	require.NoError(t, err)
	assert.Nil(t, untouched.LastTriggeredAt)

	report, err = svc.EvaluateAlerts(ctx, evalTime.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Suppressed)
	assert.Zero(t, report.Fired)
	assert.Equal(t, 1, notifier.count())

	// cooldown elapsed exactly
	report, err = svc.EvaluateAlerts(ctx, evalTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 2, notifier.count())
}

func TestEvaluateAlertsRelativeAverage(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	putCross(t, store, "5.91", evalTime.Add(-20*24*time.Hour))
	putCross(t, store, "5.91", evalTime.Add(-10*24*time.Hour))
	putCross(t, store, "6.18", evalTime.Add(-time.Minute))
	// outside the 30 day window
	putCross(t, store, "9.00", evalTime.Add(-40*24*time.Hour))

	_, err := store.InsertAlert(ctx, alerting.Alert{
		Pair:            domain.PairEURBRL,
		ThresholdType:   alerting.ThresholdRelative,
		ThresholdValue:  dec("3"),
		ReferenceType:   alerting.ReferenceAvg30d,
		CooldownMinutes: 60,
		Active:          true,
	})
	require.NoError(t, err)

	svc := newTestService(t, store, store, nil, notifier)
	report, err := svc.EvaluateAlerts(ctx, evalTime)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	require.True(t, res.ReferenceValue.Valid)
	assert.True(t, res.ReferenceValue.Decimal.Equal(dec("6")), "reference %s", res.ReferenceValue.Decimal)
	assert.True(t, res.CalculatedThreshold.Equal(dec("6.18")), "threshold %s", res.CalculatedThreshold)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 1, notifier.count())
}

func TestEvaluateAlertsDefersMissingReference(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	putCross(t, store, "6.50", evalTime.Add(-time.Minute))

	_, err := store.InsertAlert(ctx, alerting.Alert{
		Pair:            domain.PairEURBRL,
		ThresholdType:   alerting.ThresholdRelative,
		ThresholdValue:  dec("1"),
		ReferenceType:   alerting.ReferenceAvg7d,
		CooldownMinutes: 1,
		Active:          true,
	})
	require.NoError(t, err)
	_, err = store.InsertAlert(ctx, absoluteAlert("6", 1))
	require.NoError(t, err)

	svc := newTestService(t, noHistory{store}, store, nil, notifier)
	report, err := svc.EvaluateAlerts(ctx, evalTime)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Fired)
}

func TestEvaluateAlertsNotifyFailureKeepsTrigger(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	putCross(t, store, "6.20", evalTime.Add(-time.Minute))
	alert, err := store.InsertAlert(ctx, absoluteAlert("6", 10))
	require.NoError(t, err)

	svc := newTestService(t, store, store, nil, notifier)
	report, err := svc.EvaluateAlerts(ctx, evalTime)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fired)
	assert.Equal(t, 1, report.NotifyFailed)

	stored, _ := store.GetAlert(ctx, alert.ID)
	assert.NotNil(t, stored.LastTriggeredAt)
}

func TestEvaluateAlertsConcurrentCyclesFireOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	putCross(t, store, "6.20", evalTime.Add(-time.Minute))
	_, err := store.InsertAlert(ctx, absoluteAlert("6", 60))
	require.NoError(t, err)

	first := newTestService(t, store, store, nil, notifier)
	second := newTestService(t, store, store, nil, notifier)

	var wg sync.WaitGroup
	reports := make([]CycleReport, 2)
	for i, svc := range []*Service{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.EvaluateAlerts(ctx, evalTime)
			assert.NoError(t, err)
			reports[i] = r
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, 1, reports[0].Fired+reports[1].Fired)
	// the loser either lost the compare-and-set or already saw the new trigger time
	assert.Equal(t, 1, reports[0].LostRace+reports[1].LostRace+reports[0].Suppressed+reports[1].Suppressed)
}

func TestCompareWithProviders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	snap, err := domain.NewRateSnapshot(dec("5.6335"), dec("0.9199632"), evalTime)
	require.NoError(t, err)
	require.NoError(t, store.UpsertSnapshot(ctx, storage.SnapshotRecord{RateSnapshot: snap, Source: "test"}))

	quoter := &stubQuoter{quotes: []comparison.ProviderQuote{
		{ProviderName: "wise", OutputAmount: dec("6050"), InputAmount: dec("1000"), EffectiveRate: dec("6.05")},
		{ProviderName: "bank", OutputAmount: dec("5900"), InputAmount: dec("1000"), EffectiveRate: dec("5.90")},
	}}
	svc := newTestService(t, store, store, quoter, nil)

	cmp, err := svc.Compare(ctx, domain.PairEURBRL, dec("1000"), conversion.Forward)
	require.NoError(t, err)
	require.True(t, cmp.HasProviders())
	assert.Equal(t, "wise", cmp.BestProvider.ProviderName)
	assert.Equal(t, comparison.WinnerOnchain, cmp.Winner)
	assert.Len(t, cmp.OtherProviders, 1)
	assert.True(t, quoter.last.Amount.Equal(dec("1000")))
}

func TestCompareReverseSendsHint(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	putCross(t, store, "6.10", evalTime)

	quoter := &stubQuoter{}
	svc := newTestService(t, store, store, quoter, nil)

	cmp, err := svc.Compare(ctx, domain.PairEURBRL, dec("6000"), conversion.Reverse)
	require.NoError(t, err)
	assert.Equal(t, conversion.Reverse, quoter.last.Mode)
	assert.True(t, quoter.last.SendAmountHint.Equal(cmp.Onchain.InputAmount))
	assert.False(t, cmp.HasProviders())
	assert.Equal(t, comparison.WinnerOnchain, cmp.Winner)
}

func TestCompareDegradesOnQuoterError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	putCross(t, store, "6.10", evalTime)

	svc := newTestService(t, store, store, &stubQuoter{err: errors.New("timeout")}, nil)
	cmp, err := svc.Compare(ctx, domain.PairBRLEUR, dec("5000"), conversion.Forward)
	require.NoError(t, err)
	assert.False(t, cmp.HasProviders())
	assert.False(t, cmp.DeltaPercent.Valid)
}

func TestCompareWithoutSnapshot(t *testing.T) {
	svc := newTestService(t, memory.NewStore(), nil, nil, nil)
	_, err := svc.Compare(context.Background(), domain.PairEURBRL, dec("100"), conversion.Forward)
	assert.ErrorIs(t, err, storage.ErrNoSnapshot)

	_, err = svc.CompareWith(context.Background(), domain.RateSnapshot{}, domain.PairEURBRL, dec("-1"), conversion.Forward)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordSnapshot(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(t, store, store, nil, nil)

	rec, err := svc.RecordSnapshot(context.Background(), dec("3"), dec("0.5"), evalTime, "manual")
	require.NoError(t, err)
	assert.True(t, rec.Cross.Equal(dec("6")), "cross %s", rec.Cross)

	_, err = svc.RecordSnapshot(context.Background(), dec("0"), dec("0.92"), evalTime, "manual")
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}

func TestProcessBucketSkipsWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Alerting.Enabled = false
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	putCross(t, store, "6.20", evalTime)
	_, _ = store.InsertAlert(context.Background(), absoluteAlert("6", 1))

	svc, err := New(cfg, nil, store, store, nil, notifier, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, svc.ProcessBucket(context.Background(), evalTime))
	assert.Zero(t, notifier.count())
}
