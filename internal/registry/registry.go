// Package registry is the daemon's single concurrent state store: a
// map of named services to their processes, guarded by one
// readers-writer lock. It owns the lifecycle of supervision goroutines
// (spawning them, raising their cancel signals) but never does child
// I/O or sleeps while holding the lock.
package registry

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/loykin/overseerd/internal/metrics"
	"github.com/loykin/overseerd/internal/output"
	"github.com/loykin/overseerd/internal/procdef"
	"github.com/loykin/overseerd/internal/supervisor"
)

// Sentinel errors forming the wire-surfaced error taxonomy. RPC
// handlers map these to the `error` response type via errors.Is.
var (
	ErrUnknownService     = errors.New("unknown service")
	ErrNoProcessesDefined = errors.New("no processes defined")
	ErrNotRunning         = errors.New("not running")
	ErrProcessNotFound    = errors.New("process not found")
)

const reloadSettle = 200 * time.Millisecond

// process is the live counterpart to a procdef.Def: the definition
// plus whatever state the supervision loop has reported, the output
// sink it writes through, and the cancel signal that stops it. def is
// set once at creation and never mutated; every other field is read or
// written from both the owning supervision goroutine (via SetState)
// and registry methods called from RPC handler goroutines, so it is
// guarded by its own mutex rather than the registry's — holding the
// registry lock for the lifetime of a process would serialize unrelated
// services on every state transition.
type process struct {
	def procdef.Def

	mu         sync.Mutex
	state      supervisor.State
	cap        *output.Capture
	cancel     supervisor.Cancel
	retryCount int
	running    bool
}

// service is a named bundle of processes sharing a working directory.
type service struct {
	name      string
	dir       string
	processes map[string]*process
}

// Registry is the ServiceRegistry: the single authoritative map of
// every known service, guarded by mu.
type Registry struct {
	mu       sync.RWMutex
	services map[string]*service

	logRoot string
	sampler *metrics.ResourceSampler
}

// New returns an empty Registry. logRoot is where each service's
// per-process logs live (logRoot/{service}); sampler, if non-nil, is
// told about every PID a supervision loop spawns so CPU/RSS metrics
// can be sampled.
func New(logRoot string, sampler *metrics.ResourceSampler) *Registry {
	return &Registry{
		services: make(map[string]*service),
		logRoot:  logRoot,
		sampler:  sampler,
	}
}

// ProcessStatus is a point-in-time, lock-free snapshot of one process.
type ProcessStatus struct {
	Name      string           `json:"name"`
	Kind      procdef.Kind     `json:"kind"`
	Autostart bool             `json:"autostart"`
	State     supervisor.State `json:"state"`
}

// ServiceStatus is a point-in-time snapshot of one service.
type ServiceStatus struct {
	Name      string          `json:"name"`
	Processes []ProcessStatus `json:"processes"`
}

// Status returns a snapshot of every known service. The lock is held
// only long enough to copy out the minimal information; no formatting
// happens under lock.
func (r *Registry) Status() []ServiceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ServiceStatus, 0, len(r.services))
	for _, svc := range r.services {
		ss := ServiceStatus{Name: svc.name}
		for _, p := range svc.processes {
			p.mu.Lock()
			state := p.state
			p.mu.Unlock()
			ss.Processes = append(ss.Processes, ProcessStatus{
				Name:      p.def.Name,
				Kind:      p.def.Kind,
				Autostart: p.def.Autostart,
				State:     state,
			})
		}
		out = append(out, ss)
	}
	return out
}

// SetState implements supervisor.StateWriter: it is the only way a
// supervision goroutine communicates back into the registry. The
// registry's read lock is held only to locate the process; the actual
// state mutation is serialized through the process's own mutex so a
// long-running metrics call here never blocks unrelated services.
func (r *Registry) SetState(serviceName, processName string, s supervisor.State) {
	r.mu.RLock()
	svc, ok := r.services[serviceName]
	if !ok {
		r.mu.RUnlock()
		return
	}
	p, ok := svc.processes[processName]
	r.mu.RUnlock()
	if !ok {
		return
	}

	p.mu.Lock()
	from := p.state.Kind
	p.state = s
	p.running = s.Kind == supervisor.StateRunning
	p.mu.Unlock()

	metrics.RecordStateTransition(serviceName, processName, string(from), string(s.Kind))
	if from != s.Kind {
		metrics.SetCurrentState(serviceName, processName, string(from), false)
	}
	metrics.SetCurrentState(serviceName, processName, string(s.Kind), true)
	metrics.SetRunningInstances(serviceName, countRunning(svc))
}

// countRunning reports how many of svc's processes are currently
// running, each read under its own process mutex.
func countRunning(svc *service) int {
	n := 0
	for _, p := range svc.processes {
		p.mu.Lock()
		if p.running {
			n++
		}
		p.mu.Unlock()
	}
	return n
}

// StartService starts defs for a service under dir, per the filter
// rules: explicit `processes` wins, else `all` starts everything, else
// only autostart-flagged defs start. A fresh ManagedProcess is built
// for every def regardless of selection, so unselected processes still
// appear in status as Stopped.
func (r *Registry) StartService(name, dir string, defs []procdef.Def, all bool, processes []string) (string, error) {
	if len(defs) == 0 {
		return "", ErrNoProcessesDefined
	}

	r.mu.RLock()
	existing, known := r.services[name]
	if known && anyRunning(existing) {
		r.mu.RUnlock()
		return "already running", nil
	}
	r.mu.RUnlock()

	filter := toSet(processes)
	svc := &service{name: name, dir: dir, processes: make(map[string]*process, len(defs))}
	type toSpawn struct {
		def procdef.Def
		p   *process
	}
	var spawns []toSpawn

	for _, def := range defs {
		p := &process{def: def, state: supervisor.State{Kind: supervisor.StateStopped}}
		p.cap = output.New(name, def.Name, filepath.Join(r.logRoot, name), output.DefaultMaxLogSize)
		svc.processes[def.Name] = p

		shouldStart := def.Autostart
		if len(filter) > 0 {
			shouldStart = filter[def.Name]
		} else if all {
			shouldStart = true
		}
		if shouldStart {
			p.cancel = supervisor.NewCancel()
			p.running = true
			spawns = append(spawns, toSpawn{def: def, p: p})
		}
	}

	r.mu.Lock()
	r.services[name] = svc
	r.mu.Unlock()

	for _, sp := range spawns {
		go supervisor.Run(name, sp.def.Name, sp.def, svc.dir, sp.p.cap, sp.p.cancel, r, r.sampler)
	}

	return "started", nil
}

func anyRunning(svc *service) bool {
	for _, p := range svc.processes {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if running {
			return true
		}
	}
	return false
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// StopService cancels every running process of name, kills its process
// group defensively, and removes the service entry entirely. If the
// service exists but nothing was running, it is left in place and
// "already stopped" is returned.
func (r *Registry) StopService(name string) (string, error) {
	r.mu.RLock()
	svc, ok := r.services[name]
	r.mu.RUnlock()
	if !ok {
		return "", ErrNotRunning
	}

	anyWasRunning := false
	for _, p := range svc.processes {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if !running {
			continue
		}
		anyWasRunning = true
		stopProcess(p)
	}

	if !anyWasRunning {
		return "already stopped", nil
	}

	r.mu.Lock()
	delete(r.services, name)
	r.mu.Unlock()

	return "stopped", nil
}

// stopProcess raises cancel and kills the process group defensively;
// this is called outside the registry lock. The fields it needs are
// copied out under the process's own mutex before any blocking or I/O
// work (closing the cancel channel, signaling the process group), so
// that work never happens while holding a lock a concurrent SetState
// could be waiting on.
func stopProcess(p *process) {
	p.mu.Lock()
	cancel := p.cancel
	shouldKill := p.state.Kind == supervisor.StateRunning && p.state.PID > 0
	pid := p.state.PID
	p.running = false
	p.mu.Unlock()

	if cancel != nil {
		closeCancelOnce(cancel)
	}
	if shouldKill {
		killGroup(pid)
	}
}

// closeCancelOnce closes c if it is not already closed. Cancel signals
// are consumed exactly once per process lifetime; StopService and a
// concurrent RestartProcess/KillProcess can race to close the same
// channel, so this must be safe to call more than once.
func closeCancelOnce(c supervisor.Cancel) {
	defer func() { _ = recover() }()
	close(c)
}

// ReloadService stops then, after a settle period, starts name again.
// The settle gives outgoing supervision loops time to observe cancel
// and release their process-group handles before a new one spawns into
// the same working directory.
func (r *Registry) ReloadService(name, dir string, defs []procdef.Def, all bool, processes []string) (string, error) {
	_, err := r.StopService(name)
	if err != nil && !errors.Is(err, ErrNotRunning) {
		return "", err
	}
	time.Sleep(reloadSettle)
	return r.StartService(name, dir, defs, all, processes)
}

// RestartProcess cancels and kills just one process, resets its retry
// count, builds a fresh OutputCapture and cancel signal (so stale
// subscribers detach), and spawns a new supervision loop.
func (r *Registry) RestartProcess(serviceName, processName string) (string, error) {
	r.mu.RLock()
	svc, ok := r.services[serviceName]
	if !ok {
		r.mu.RUnlock()
		return "", ErrUnknownService
	}
	p, ok := svc.processes[processName]
	r.mu.RUnlock()
	if !ok {
		return "", ErrProcessNotFound
	}

	p.mu.Lock()
	wasRunning := p.running
	p.mu.Unlock()
	if wasRunning {
		stopProcess(p)
	}

	cap := output.New(serviceName, processName, filepath.Join(r.logRoot, serviceName), output.DefaultMaxLogSize)
	cancel := supervisor.NewCancel()

	p.mu.Lock()
	p.retryCount = 0
	p.cap = cap
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	go supervisor.Run(serviceName, processName, p.def, svc.dir, cap, cancel, r, r.sampler)

	return "restarted", nil
}

// KillProcess is RestartProcess without the respawn.
func (r *Registry) KillProcess(serviceName, processName string) (string, error) {
	r.mu.RLock()
	svc, ok := r.services[serviceName]
	if !ok {
		r.mu.RUnlock()
		return "", ErrUnknownService
	}
	p, ok := svc.processes[processName]
	r.mu.RUnlock()
	if !ok {
		return "", ErrProcessNotFound
	}

	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return "", ErrNotRunning
	}
	stopProcess(p)
	return "killed", nil
}

// GetOutput returns the OutputCapture for (service, process). If
// processName is empty, the first process found is returned, matching
// the single-process convenience the spec calls for.
func (r *Registry) GetOutput(serviceName, processName string) (*output.Capture, error) {
	r.mu.RLock()
	svc, ok := r.services[serviceName]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrUnknownService
	}
	if processName == "" {
		for _, p := range svc.processes {
			r.mu.RUnlock()
			p.mu.Lock()
			cap := p.cap
			p.mu.Unlock()
			return cap, nil
		}
		r.mu.RUnlock()
		return nil, ErrProcessNotFound
	}
	p, ok := svc.processes[processName]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrProcessNotFound
	}
	p.mu.Lock()
	cap := p.cap
	p.mu.Unlock()
	return cap, nil
}

// NamedCapture pairs a process name with its output sink.
type NamedCapture struct {
	Process string
	Capture *output.Capture
}

// GetAllOutputs returns every process's output sink for a service.
func (r *Registry) GetAllOutputs(serviceName string) ([]NamedCapture, error) {
	r.mu.RLock()
	svc, ok := r.services[serviceName]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownService
	}
	out := make([]NamedCapture, 0, len(svc.processes))
	for name, p := range svc.processes {
		p.mu.Lock()
		cap := p.cap
		p.mu.Unlock()
		out = append(out, NamedCapture{Process: name, Capture: cap})
	}
	return out, nil
}

// killGroup is the defense-in-depth kill invoked by StopService/
// KillProcess in addition to raising cancel: the two mechanisms are
// redundant by design so no window exists where a child survives a
// requested stop.
func killGroup(pid int) {
	supervisor.KillProcessGroup(pid)
}
