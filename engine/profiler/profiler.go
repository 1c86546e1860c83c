package profiler

import (
	"fmt"
	"log"
	"runtime"
	"time"
)

// Sample is the work of one rendered frame.
type Sample struct {
	// Counts are the points drawn as instances, impostors and far points.
	Counts [3]uint32
	Culled uint32

	Culling time.Duration
	Split   time.Duration
	Compose time.Duration
}

// Report aggregates the samples of one update interval.
type Report struct {
	Frames  int
	Elapsed time.Duration
	FPS     float64

	// Counts and Culled are per frame averages.
	Counts [3]float64
	Culled float64

	// Culling, Split and Compose are per frame averages.
	Culling time.Duration
	Split   time.Duration
	Compose time.Duration

	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// Summary is a one line digest of the report, short enough for a window title.
func (r Report) Summary() string {
	return fmt.Sprintf("%.0f FPS | %.0f inst, %.0f imp, %.0f far, %.0f culled",
		r.FPS, r.Counts[0], r.Counts[1], r.Counts[2], r.Culled)
}

func (r Report) String() string {
	return fmt.Sprintf("FPS: %.2f | Instances: %.0f | Impostors: %.0f | Far: %.0f | Culled: %.0f | Cull: %s | Split: %s | Compose: %s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		r.FPS, r.Counts[0], r.Counts[1], r.Counts[2], r.Culled,
		r.Culling, r.Split, r.Compose,
		r.HeapMB, r.AllocRateMB, r.GCCount, r.LastPauseUs, r.MaxPauseUs, r.SysMB)
}

// Profiler tracks frame rate, pipeline work and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	sum     Sample
	counts  [3]uint64
	culled  uint64
	samples int

	last     Report
	onReport func(Report)
	quiet    bool
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Record adds the work of one frame and ticks the profiler.
//
// Parameters:
//   - s: the frame sample
//
// Returns:
//   - bool: true if a report was produced this tick
func (p *Profiler) Record(s Sample) bool {
	for i, c := range s.Counts {
		p.counts[i] += uint64(c)
	}
	p.culled += uint64(s.Culled)
	p.sum.Culling += s.Culling
	p.sum.Split += s.Split
	p.sum.Compose += s.Compose
	p.samples++
	return p.Tick()
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, the averaged frame samples, heap usage, allocation rate,
// GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were reported this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}
	p.report(currentTime, elapsed)
	return true
}

// Flush reports the frames recorded since the last report without waiting for the update
// interval. Returns the zero Report when nothing was recorded.
//
// Returns:
//   - Report: the report
func (p *Profiler) Flush() Report {
	if p.frameCount == 0 {
		return Report{}
	}
	now := time.Now()
	p.report(now, now.Sub(p.lastTime))
	return p.last
}

func (p *Profiler) report(currentTime time.Time, elapsed time.Duration) {
	r := Report{
		Frames:  p.frameCount,
		Elapsed: elapsed,
		FPS:     float64(p.frameCount) / max(elapsed.Seconds(), 1e-9),
	}
	if p.samples > 0 {
		n := float64(p.samples)
		for i, c := range p.counts {
			r.Counts[i] = float64(c) / n
		}
		r.Culled = float64(p.culled) / n
		r.Culling = p.sum.Culling / time.Duration(p.samples)
		r.Split = p.sum.Split / time.Duration(p.samples)
		r.Compose = p.sum.Compose / time.Duration(p.samples)
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / max(elapsed.Seconds(), 1e-9)

	gcCount := p.memStats.NumGC
	r.GCCount = gcCount
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	if !p.quiet {
		log.Printf("[Profiler] %s", r)
	}
	if p.onReport != nil {
		p.onReport(r)
	}

	p.last = r
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.sum, p.counts, p.culled, p.samples = Sample{}, [3]uint64{}, 0, 0
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	return p.last
}
