// Package monitor runs the presence detection loop of the door lock.
//
// Every poll cycle reads the ultrasonic sensor, advances the dwell state
// machine and publishes occupancy telemetry. When a visitor has stayed in
// range long enough, one detection episode captures an image, classifies it
// and then drives the lock and the owner notification concurrently. Faults
// of individual collaborators are logged and counted; they never stop the loop.
package monitor
