package service

import (
	"time"

	"github.com/rs/zerolog"

	"bridgewatch/internal/alerting"
)

type outcomeKind uint8

const (
	outcomeQuiet outcomeKind = iota
	outcomeSuppressed
	outcomeDeferred
	outcomeLostRace
	outcomeFired
	outcomeFailed
)

type alertOutcome struct {
	kind         outcomeKind
	result       alerting.EvaluationResult
	evaluated    bool
	notifyFailed bool
}

// CycleReport summarises one EvaluateAlerts pass.
type CycleReport struct {
	EvaluatedAt time.Time
	// Skipped is set when another instance holds the advisory lock.
	Skipped          bool
	RatesUnavailable bool

	Evaluated    int
	Triggered    int
	Fired        int
	Suppressed   int
	Deferred     int
	LostRace     int
	Failed       int
	NotifyFailed int

	// Results holds every completed evaluation, firing or not.
	Results []alerting.EvaluationResult
}

func (r *CycleReport) add(o alertOutcome) {
	if o.evaluated {
		r.Evaluated++
		r.Results = append(r.Results, o.result)
		if o.result.Triggered {
			r.Triggered++
		}
	}
	switch o.kind {
	case outcomeSuppressed:
		r.Suppressed++
	case outcomeDeferred:
		r.Deferred++
	case outcomeLostRace:
		r.LostRace++
	case outcomeFired:
		r.Fired++
	case outcomeFailed:
		r.Failed++
	}
	if o.notifyFailed {
		r.NotifyFailed++
	}
}

func (r CycleReport) log(ev *zerolog.Event) {
	ev.Bool("rates_unavailable", r.RatesUnavailable).
		Bool("skipped", r.Skipped).
		Int("evaluated", r.Evaluated).
		Int("triggered", r.Triggered).
		Int("fired", r.Fired).
		Int("suppressed", r.Suppressed).
		Int("deferred", r.Deferred).
		Int("lost_race", r.LostRace).
		Int("failed", r.Failed).
		Msg("alert cycle complete")
}
