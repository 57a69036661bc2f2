package mqtt

import "encoding/json"

// Status is the retained heartbeat of the device.
type Status struct {
	// Online is false only in the last-will and the farewell message.
	Online bool `json:"online"`
	// Lock is the last applied lock position.
	Lock string `json:"lock,omitempty"`
	// Phase is the dwell phase of the presence monitor.
	Phase string `json:"phase,omitempty"`
	// UptimeSeconds is the host uptime.
	UptimeSeconds uint64 `json:"uptimeSeconds,omitempty"`
	// Load1 is the one-minute load average.
	Load1 float64 `json:"load1,omitempty"`
	// MemoryUsedPercent is the share of used RAM.
	MemoryUsedPercent float64 `json:"memoryUsedPercent,omitempty"`
	// TemperatureCelsius is the hottest reported sensor.
	TemperatureCelsius float64 `json:"temperatureCelsius,omitempty"`
	// Version is the daemon version.
	Version string `json:"version,omitempty"`
}

// DecodeStatus parses a status payload.
func DecodeStatus(payload []byte) (Status, error) {
	var status Status

	err := json.Unmarshal(payload, &status)

	return status, err
}

func offlinePayload() []byte {
	return []byte(`{"online":false}`)
}
