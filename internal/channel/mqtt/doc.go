// Package mqtt is the remote command channel of the lock, built on the Eclipse
// Paho client.
//
// One persistent TLS connection carries three topics: lock commands are
// received on the command topic, occupancy telemetry is published on the
// telemetry topic once per poll cycle, and a retained status heartbeat with a
// last-will is published on the status topic. Paho reconnects on its own and
// the command subscription is renewed on every connect.
package mqtt
