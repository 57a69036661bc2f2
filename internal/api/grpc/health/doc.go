// Package health implements the gRPC transport for device health.
//
// It exposes the standard grpc.health.v1 service with one entry per component
// (sensor, camera, channel) plus the overall "" entry, and a client used by
// smart-lock-ctl to query it.
package health
