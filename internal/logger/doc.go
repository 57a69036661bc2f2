// Package logger wraps zap for the smart-lock binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled shortcuts (Infof, WarnKV, ErrorKV, ...).
//
// Long-running loops receive a context that already carries a named logger, so
// every line from the poll loop or the MQTT callbacks is tagged with its origin.
package logger
