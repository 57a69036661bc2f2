// Package control implements the operator commands of smart-lock-ctl: remote
// lock and unlock over the MQTT command topic and a status report built from
// the daemon health endpoint and its retained heartbeat.
package control
