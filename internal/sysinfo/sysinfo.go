// Package sysinfo samples host vitals for the status heartbeat.
package sysinfo

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is one sample of host vitals.
type Snapshot struct {
	// UptimeSeconds is the host uptime.
	UptimeSeconds uint64
	// Load1 is the one-minute load average.
	Load1 float64
	// MemoryUsedPercent is the share of used RAM.
	MemoryUsedPercent float64
	// TemperatureCelsius is the hottest sensor reading, 0 when none is exposed.
	TemperatureCelsius float64
}

// Sample collects a Snapshot. Individual probe failures are joined into the
// returned error while the remaining fields are still filled.
func Sample(ctx context.Context) (Snapshot, error) {
	var (
		snapshot Snapshot
		errs     []error
	)

	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("uptime: %w", err))
	}

	snapshot.UptimeSeconds = uptime

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("load: %w", err))
	} else {
		snapshot.Load1 = avg.Load1
	}

	memory, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		snapshot.MemoryUsedPercent = memory.UsedPercent
	}

	// Boards without thermal zones return an empty list, or a partial one with a warning.
	temperatures, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temperatures) == 0 {
		errs = append(errs, fmt.Errorf("temperature: %w", err))
	}

	snapshot.TemperatureCelsius = Hottest(temperatures)

	return snapshot, errors.Join(errs...)
}

// Hottest returns the highest reading, or 0 for none.
func Hottest(temperatures []host.TemperatureStat) float64 {
	hottest := 0.0

	for _, t := range temperatures {
		if t.Temperature > hottest {
			hottest = t.Temperature
		}
	}

	return hottest
}
