package sysinfo

import (
	"context"
	"testing"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/require"
)

// TestHottest picks the maximum reading.
func TestHottest(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 0, Hottest(nil), 1e-9)
	require.InDelta(t, 61.5, Hottest([]host.TemperatureStat{
		{SensorKey: "cpu_thermal", Temperature: 48},
		{SensorKey: "soc", Temperature: 61.5},
	}), 1e-9)
}

// TestSample reads the current host; the memory probe works on every CI host.
func TestSample(t *testing.T) {
	t.Parallel()

	snapshot, _ := Sample(context.Background())

	require.Positive(t, snapshot.MemoryUsedPercent)
	require.LessOrEqual(t, snapshot.MemoryUsedPercent, 100.0)
}
