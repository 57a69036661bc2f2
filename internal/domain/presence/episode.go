package presence

import (
	"time"

	"github.com/oshokin/smart-lock/internal/domain/lock"
)

// Outcome summarizes how a detection episode ended.
type Outcome string

// Episode outcomes.
const (
	// OutcomeGranted means a known visitor was recognized and the lock was opened.
	OutcomeGranted Outcome = "granted"
	// OutcomeDenied means the visitor was unknown and the lock was kept closed.
	OutcomeDenied Outcome = "denied"
	// OutcomeAborted means no image was captured, so nothing was decided.
	OutcomeAborted Outcome = "aborted"
)

// Episode is the record of one capture-classify-act sequence.
type Episode struct {
	// ID uniquely identifies the episode.
	ID string
	// StartedAt is when the dwell condition was satisfied.
	StartedAt time.Time
	// FinishedAt is when both effects completed.
	FinishedAt time.Time
	// Outcome is granted, denied or aborted.
	Outcome Outcome
	// Label is the decided visitor label; empty for aborted episodes.
	Label string
	// Confidence is the decided confidence in [0, 1].
	Confidence float64
	// Position is the lock position requested by the episode.
	Position lock.Position
	// CaptureError is the capture failure, if any.
	CaptureError string
	// ClassifierError is the classification failure, if any.
	ClassifierError string
	// ActuatorError is the lock movement failure, if any.
	ActuatorError string
	// NotifyError is the notification failure, if any.
	NotifyError string
}

// Duration is the time from start to finish.
func (e Episode) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Decided fills the decision fields from result.
func (e *Episode) Decided(result DetectionResult) {
	e.Label = result.Label()
	e.Confidence = result.Confidence()
	e.Position = result.Position()

	if result.Known() {
		e.Outcome = OutcomeGranted
	} else {
		e.Outcome = OutcomeDenied
	}
}

// errorText returns err's message or "".
func errorText(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}

// Failed records err against the given stage.
func (e *Episode) Failed(stage Stage, err error) {
	text := errorText(err)

	switch stage {
	case StageCapture:
		e.CaptureError = text
	case StageClassify:
		e.ClassifierError = text
	case StageActuate:
		e.ActuatorError = text
	case StageNotify:
		e.NotifyError = text
	}
}

// Stage names a step of an episode.
type Stage string

// Episode stages.
const (
	StageCapture  Stage = "capture"
	StageClassify Stage = "classify"
	StageActuate  Stage = "actuate"
	StageNotify   Stage = "notify"
)
