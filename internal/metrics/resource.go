package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	processCPUPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage percentage sampled from the OS for a running process.",
		}, []string{"service", "process"},
	)
	processMemoryRSS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "overseerd",
			Subsystem: "process",
			Name:      "memory_rss_bytes",
			Help:      "Resident set size sampled from the OS for a running process.",
		}, []string{"service", "process"},
	)
	resourceRegOK bool
	resourceMu    sync.Mutex
)

// RegisterResourceMetrics registers the gopsutil-backed CPU/memory
// gauges. Separate from Register because resource sampling requires an
// OS that gopsutil supports process introspection on; callers that
// only need lifecycle counters can skip this.
func RegisterResourceMetrics(r prometheus.Registerer) error {
	resourceMu.Lock()
	defer resourceMu.Unlock()
	if resourceRegOK {
		return nil
	}
	for _, c := range []prometheus.Collector{processCPUPercent, processMemoryRSS} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	resourceRegOK = true
	return nil
}

// ResourceSampler periodically reads CPU and memory usage for a set of
// live PIDs and publishes them as gauges. One sampler serves the whole
// daemon; the registry tells it which (service, process, pid) triples
// are currently running.
type ResourceSampler struct {
	interval time.Duration

	mu      sync.Mutex
	targets map[string]target
}

type target struct {
	service, process string
	pid              int32
}

// NewResourceSampler builds a sampler that polls every interval.
func NewResourceSampler(interval time.Duration) *ResourceSampler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ResourceSampler{interval: interval, targets: make(map[string]target)}
}

// Track registers pid as the live process backing service/process. Call
// with pid 0 to stop tracking (e.g. on exit).
func (s *ResourceSampler) Track(service, process string, pid int32) {
	key := service + "/" + process
	s.mu.Lock()
	defer s.mu.Unlock()
	if pid == 0 {
		delete(s.targets, key)
		return
	}
	s.targets[key] = target{service: service, process: process, pid: pid}
}

// Run samples every process being tracked once per interval until ctx
// is canceled.
func (s *ResourceSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *ResourceSampler) sampleOnce() {
	s.mu.Lock()
	targets := make([]target, 0, len(s.targets))
	for _, t := range s.targets {
		targets = append(targets, t)
	}
	s.mu.Unlock()

	for _, t := range targets {
		proc, err := process.NewProcess(t.pid)
		if err != nil {
			continue
		}
		if cpuPct, err := proc.CPUPercent(); err == nil && resourceRegOK {
			processCPUPercent.WithLabelValues(t.service, t.process).Set(cpuPct)
		}
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil && resourceRegOK {
			processMemoryRSS.WithLabelValues(t.service, t.process).Set(float64(mem.RSS))
		}
	}
}
