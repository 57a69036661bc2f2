// Package ultrasonic reads an HC-SR04 style distance sensor: a 10µs pulse on
// the trigger pin makes the echo pin go high for as long as the sound takes to
// come back.
package ultrasonic
