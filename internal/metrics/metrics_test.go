package metrics

import (
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestHelpersNoopBeforeRegister(t *testing.T) {
	// Exercised against the package-level state; since other tests in
	// this package may already have called Register, only assert these
	// never panic.
	IncStart("web", "server")
	IncRestart("web", "server")
	IncStop("web", "server")
	ObserveStartDuration("web", "server", 0.5)
	SetRunningInstances("web", 1)
	RecordStateTransition("web", "server", "starting", "running")
	SetCurrentState("web", "server", "running", true)
	AddOutputBytes("web", "server", 128)
}

func TestResourceSamplerTracksSelf(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterResourceMetrics(reg))

	s := NewResourceSampler(10 * time.Millisecond)
	pid := int32(os.Getpid())
	s.Track("web", "server", pid)

	proc, err := process.NewProcess(pid)
	require.NoError(t, err)
	_, err = proc.MemoryInfo()
	require.NoError(t, err)

	s.Track("web", "server", 0) // untrack
	s.mu.Lock()
	_, stillTracked := s.targets["web/server"]
	s.mu.Unlock()
	require.False(t, stillTracked)
}
