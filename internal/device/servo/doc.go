// Package servo drives the lock bolt with a hobby servo on a 50Hz PWM pin.
package servo
