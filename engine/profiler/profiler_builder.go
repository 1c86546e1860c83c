package profiler

import "time"

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often a report is produced.
//
// Parameters:
//   - d: the update interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.updateInterval = d
	}
}

// WithOnReport calls fn with every report, on the goroutine that ticks the profiler.
func WithOnReport(fn func(Report)) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.onReport = fn
	}
}

// WithQuiet stops the profiler from logging its reports.
func WithQuiet() ProfilerBuilderOption {
	return func(p *Profiler) {
		p.quiet = true
	}
}
