package service

import (
	"sort"
	"time"

	"bridgewatch/internal/alerting"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/history"
)

// Replay walks snapshots in time order and returns the evaluations at which
// alert would have fired, honouring its cooldown. Snapshots before from only
// feed the averages; a zero from evaluates every snapshot. Each step averages
// only the snapshots seen so far. The alert passed in is not modified.
func Replay(alert alerting.Alert, snapshots []domain.RateSnapshot, from time.Time) []alerting.EvaluationResult {
	ordered := make([]domain.RateSnapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	samples := history.SamplesFor(alert.Pair, ordered)
	byPair := map[domain.Pair][]history.Sample{}

	state := alert
	if alert.LastTriggeredAt != nil {
		last := *alert.LastTriggeredAt
		state.LastTriggeredAt = &last
	}

	var fired []alerting.EvaluationResult
	seen := 0
	for _, snap := range ordered {
		for seen < len(samples) && !samples[seen].Timestamp.After(snap.Timestamp) {
			seen++
		}
		if snap.Timestamp.Before(from) {
			continue
		}
		byPair[alert.Pair] = samples[:seen]

		resolved, err := alerting.Resolve(state, snap.RateFor(alert.Pair), history.FromSamples(byPair, snap.Timestamp))
		if err != nil {
			continue
		}
		res := alerting.Evaluate(state, resolved, snap.Timestamp)
		if !res.ShouldFire() {
			continue
		}
		fired = append(fired, res)
		at := snap.Timestamp
		state.LastTriggeredAt = &at
	}
	return fired
}
