// Package config defines the smart-lock settings and helpers to load, validate,
// save and watch them.
//
// Settings live in a YAML file. A .env file and SMART_LOCK_* environment
// variables override selected values (the SMTP password can only come from the
// environment). Struct tags are checked with go-playground/validator after
// defaults are applied. Watch re-reads the file on change so detection
// thresholds can be tuned on a running device.
package config
