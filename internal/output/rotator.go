package output

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

// DefaultMaxLogSize is the rollover threshold for a process's current
// log file.
const DefaultMaxLogSize = 10 * 1024 * 1024

// Rotator owns the on-disk log file for one process and rotates it by
// the naming grammar below once it passes its size threshold:
//
//	current:  "{process} {YY-MMDD}.log"
//	rotated:  "{process} {YY-MMDD} {HH}.log"
//	          "{process} {YY-MMDD} {HH}.{MM}.log" if the hour name is taken
//
// Rotation never loses data: the current file is renamed in place and
// a fresh current file is opened before the first byte past the
// threshold is written.
type Rotator struct {
	dir        string
	process    string
	maxSize    int64
	mu         sync.Mutex
	file       *os.File
	size       int64
	currentDay string
}

// NewRotator prepares (without yet opening) a rotator for process under
// dir. maxSize <= 0 uses DefaultMaxLogSize.
func NewRotator(dir, process string, maxSize int64) *Rotator {
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSize
	}
	return &Rotator{dir: dir, process: process, maxSize: maxSize}
}

// currentLogName is "{process} {YY-MMDD}.log" for the given instant.
func currentLogName(process string, t time.Time) string {
	return fmt.Sprintf("%s %s.log", process, t.Format("06-0102"))
}

// rotatedLogName is "{process} {YY-MMDD} {HH}.log", falling back to the
// minute-qualified form if that name is already taken in dir.
func rotatedLogName(dir, process string, t time.Time) string {
	base := fmt.Sprintf("%s %s %s.log", process, t.Format("06-0102"), t.Format("15"))
	if _, err := os.Stat(filepath.Join(dir, base)); err != nil {
		return base
	}
	return fmt.Sprintf("%s %s %s.%s.log", process, t.Format("06-0102"), t.Format("15"), t.Format("04"))
}

func (r *Rotator) ensureOpen() error {
	now := time.Now()
	day := now.Format("06-0102")
	if r.file != nil && r.currentDay == day {
		return nil
	}
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(r.dir, currentLogName(r.process, now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.file = f
	r.size = info.Size()
	r.currentDay = day
	return nil
}

// Write appends data to the current log file, rotating first if this
// write would cross maxSize. I/O failures are logged and swallowed: a
// broken log sink must never stop the supervised process or the ring
// buffer / broadcast sinks from working.
func (r *Rotator) Write(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpen(); err != nil {
		slog.Warn("output log open failed", "process", r.process, "error", err)
		return
	}
	if r.size+int64(len(data)) > r.maxSize {
		r.rotate()
		if err := r.ensureOpen(); err != nil {
			slog.Warn("output log reopen after rotate failed", "process", r.process, "error", err)
			return
		}
	}
	n, err := r.file.Write(data)
	if err != nil {
		slog.Warn("output log write failed", "process", r.process, "error", err)
		return
	}
	r.size += int64(n)
}

// rotate renames the current file out of the way; it must be called
// with mu held and r.file non-nil.
func (r *Rotator) rotate() {
	if r.file == nil {
		return
	}
	path := r.file.Name()
	_ = r.file.Close()
	r.file = nil

	target := filepath.Join(r.dir, rotatedLogName(r.dir, r.process, time.Now()))
	if err := os.Rename(path, target); err != nil {
		slog.Warn("output log rotate failed", "process", r.process, "error", err)
	}
}

// Close releases the current file handle, if any.
func (r *Rotator) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
}

var logNamePattern = regexp.MustCompile(`^(.+) (\d{2})-(\d{2})(\d{2})(?: (\d{2})(?:\.(\d{2}))?)?\.log$`)

// ParseLogDate extracts the embedded timestamp from a log file name
// produced by currentLogName or rotatedLogName. Two-digit years are
// interpreted as 2000+YY, matching the original implementation's
// assumption that this format never survives into the next century.
func ParseLogDate(name string) (time.Time, bool) {
	m := logNamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	year := 2000 + atoiOrZero(m[2])
	month := atoiOrZero(m[3])
	day := atoiOrZero(m[4])
	hour, minute := 0, 0
	if m[5] != "" {
		hour = atoiOrZero(m[5])
	}
	if m[6] != "" {
		minute = atoiOrZero(m[6])
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// ExpiryPolicy bounds how long and how many rotated logs are retained
// per process directory.
type ExpiryPolicy struct {
	MaxAge   time.Duration // logs whose embedded date is older than this are deleted
	MaxCount int           // beyond this many files, the oldest by mtime are deleted; 0 disables
}

// ExpireLogs sweeps every service log directory under root and removes
// files that violate policy. It is run once at daemon startup and then
// hourly; failures to remove an individual file are logged and do not
// stop the sweep.
func ExpireLogs(root string, policy ExpiryPolicy, now time.Time) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		expireServiceLogs(filepath.Join(root, e.Name()), policy, now)
	}
}

func expireServiceLogs(dir string, policy ExpiryPolicy, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	type logFile struct {
		path  string
		mtime time.Time
	}
	var kept []logFile

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if policy.MaxAge > 0 {
			if ts, ok := ParseLogDate(e.Name()); ok && now.Sub(ts) > policy.MaxAge {
				if err := os.Remove(path); err != nil {
					slog.Warn("expire log remove failed", "path", path, "error", err)
				}
				continue
			}
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		kept = append(kept, logFile{path: path, mtime: info.ModTime()})
	}

	if policy.MaxCount <= 0 || len(kept) <= policy.MaxCount {
		return
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].mtime.Before(kept[j].mtime) })
	for _, f := range kept[:len(kept)-policy.MaxCount] {
		if err := os.Remove(f.path); err != nil {
			slog.Warn("expire log remove failed", "path", f.path, "error", err)
		}
	}
}
