package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"
)

// Stopper ends a timed span.
type Stopper interface {
	Stop()
}

// stat aggregates every completed span sharing a name.
type stat struct {
	count int
	total time.Duration
	max   time.Duration
}

// Profiler aggregates span durations by name. Spans may be started and
// stopped from any goroutine.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	stats   map[string]*stat
	now     func() time.Time
}

var defaultProfiler = &Profiler{now: time.Now}

// Enable turns on the global profiler. Calling it again keeps the collected data.
func Enable() {
	defaultProfiler.enable()
}

// Enabled reports whether the global profiler is collecting.
func Enabled() bool {
	defaultProfiler.mu.Lock()
	defer defaultProfiler.mu.Unlock()
	return defaultProfiler.enabled
}

// Reset disables the global profiler and drops collected data.
func Reset() {
	defaultProfiler.mu.Lock()
	defer defaultProfiler.mu.Unlock()
	defaultProfiler.enabled = false
	defaultProfiler.stats = nil
}

// Start begins a span on the global profiler. Use it with defer:
//
//	defer profiling.Start("build").Stop()
func Start(name string) Stopper {
	return defaultProfiler.Start(name)
}

// Summarize writes the global profiler's table to w.
func Summarize(w io.Writer) {
	defaultProfiler.Summarize(w)
}

func (p *Profiler) enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	p.started = p.now()
	if p.stats == nil {
		p.stats = make(map[string]*stat)
	}
}

// Start begins a named span. It is a no-op while the profiler is disabled.
func (p *Profiler) Start(name string) Stopper {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return noopStopper{}
	}
	return &span{profiler: p, name: name, start: p.now()}
}

func (p *Profiler) record(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	st, ok := p.stats[name]
	if !ok {
		st = &stat{}
		p.stats[name] = st
	}
	st.count++
	st.total += d
	if d > st.max {
		st.max = d
	}
}

// Summarize writes one row per span name, sorted by total time.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled || len(p.stats) == 0 {
		return
	}

	names := make([]string, 0, len(p.stats))
	for name := range p.stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := p.stats[names[i]], p.stats[names[j]]
		if a.total != b.total {
			return a.total > b.total
		}
		return names[i] < names[j]
	})

	fmt.Fprintf(w, "\n--- Timing Profile (%v) ---\n", p.now().Sub(p.started).Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "SPAN\tCOUNT\tTOTAL\tAVG\tMAX")
	round := time.Microsecond * 100
	for _, name := range names {
		st := p.stats[name]
		avg := st.total / time.Duration(st.count)
		fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%v\n", name, st.count, st.total.Round(round), avg.Round(round), st.max.Round(round))
	}
	tw.Flush()
}

type span struct {
	profiler *Profiler
	name     string
	start    time.Time
	once     sync.Once
}

// Stop records the span. Later calls are ignored.
func (s *span) Stop() {
	s.once.Do(func() {
		s.profiler.record(s.name, s.profiler.now().Sub(s.start))
	})
}

type noopStopper struct{}

func (noopStopper) Stop() {}
