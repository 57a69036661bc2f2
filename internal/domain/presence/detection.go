package presence

import (
	"math"
	"time"

	"github.com/oshokin/smart-lock/internal/domain/lock"
)

// Unknown is the label of a visitor the classifier did not recognize confidently.
const Unknown = "Unknown"

// Thresholds are the tunable parameters of detection.
type Thresholds struct {
	// Near is the presence range in inches; at or below it the dwell timer runs.
	Near float64
	// Occupied is the telemetry "touched" range in inches, independent from Near.
	Occupied float64
	// Dwell is how long presence must persist before an episode fires.
	Dwell time.Duration
	// Confidence is the minimum classifier confidence for a recognized label.
	Confidence float64
}

// IsNear reports whether distance is inside the presence range.
func (t Thresholds) IsNear(distance float64) bool {
	return distance <= t.Near
}

// IsOccupied reports whether distance is inside the telemetry range.
func (t Thresholds) IsOccupied(distance float64) bool {
	return distance <= t.Occupied
}

// DistanceSample is one distance measurement in inches.
type DistanceSample struct {
	// Distance is the measured distance in inches.
	Distance float64
	// TakenAt is when the measurement completed.
	TakenAt time.Time
}

// Classification is the raw classifier output before thresholding.
type Classification struct {
	// Label is the display name of the most likely class.
	Label string
	// Confidence is the score of that class.
	Confidence float64
}

// DetectionResult is the thresholded outcome of one episode. It is immutable.
type DetectionResult struct {
	// label is the recognized name or Unknown.
	label string
	// confidence is the classifier score clamped to [0,1].
	confidence float64
}

// Decide applies the confidence threshold at the boundary of the classifier:
// a score below threshold forces Unknown whatever the model answered.
func Decide(raw Classification, threshold float64) DetectionResult {
	confidence := clamp01(raw.Confidence)

	label := raw.Label
	if confidence < threshold || label == "" {
		label = Unknown
	}

	return DetectionResult{
		label:      label,
		confidence: confidence,
	}
}

// UnknownVisitor is the result used when classification itself failed.
func UnknownVisitor() DetectionResult {
	return DetectionResult{label: Unknown}
}

// Label returns the recognized name or Unknown.
func (r DetectionResult) Label() string {
	return r.label
}

// Confidence returns the classifier score in [0,1].
func (r DetectionResult) Confidence() float64 {
	return r.confidence
}

// Known reports whether the visitor was recognized.
func (r DetectionResult) Known() bool {
	return r.label != Unknown && r.label != ""
}

// Position is the lock position this result calls for: Locked iff Unknown.
func (r DetectionResult) Position() lock.Position {
	if r.Known() {
		return lock.Unlocked
	}

	return lock.Locked
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
