// Package presence contains the pure model of the door presence detector:
// the dwell state machine, detection results, telemetry events and the error
// taxonomy shared by the sensing and vision adapters.
//
// Nothing here performs I/O or reads a clock. Callers pass the current time
// into DwellState.Step, which keeps the state machine deterministic in tests.
package presence
