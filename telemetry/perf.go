package telemetry

import (
	"log/slog"
	"time"
)

// Phase is a timed section of a run batch.
type Phase int

const (
	PhaseStep Phase = iota
	PhaseTelemetry
	PhaseSnapshot
	PhaseArchive
	numPhases
)

var phaseNames = [numPhases]string{"step", "telemetry", "snapshot", "archive"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// batchTiming holds the timing of a single batch of steps.
type batchTiming struct {
	total  time.Duration
	steps  int
	phases [numPhases]time.Duration
}

// PerfCollector tracks batch timings over a rolling window.
type PerfCollector struct {
	window  []batchTiming
	next    int
	filled  int
	current batchTiming

	batchStart time.Time
	phaseStart time.Time
	phase      Phase
	timing     bool
}

// NewPerfCollector creates a collector averaging over windowSize batches.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{window: make([]batchTiming, windowSize)}
}

// StartBatch begins timing a batch of the given number of steps.
func (p *PerfCollector) StartBatch(steps int) {
	p.batchStart = time.Now()
	p.current = batchTiming{steps: steps}
	p.timing = false
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
	p.timing = true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.timing && p.phase >= 0 && p.phase < numPhases {
		p.current.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndBatch finishes the current batch and records it in the window.
func (p *PerfCollector) EndBatch() {
	now := time.Now()
	p.closePhase(now)
	p.timing = false
	p.current.total = now.Sub(p.batchStart)

	p.window[p.next] = p.current
	p.next = (p.next + 1) % len(p.window)
	if p.filled < len(p.window) {
		p.filled++
	}
}

// PerfStats holds timings aggregated over the window.
type PerfStats struct {
	AvgBatch, MinBatch, MaxBatch time.Duration

	// PhasePct is the share of batch time spent in each phase, in percent.
	PhasePct [numPhases]float64

	StepsPerSecond float64
}

// Stats aggregates the batches currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.filled == 0 {
		return s
	}
	var total time.Duration
	var steps int
	var phases [numPhases]time.Duration
	for i, b := range p.window[:p.filled] {
		total += b.total
		steps += b.steps
		if i == 0 || b.total < s.MinBatch {
			s.MinBatch = b.total
		}
		s.MaxBatch = max(s.MaxBatch, b.total)
		for ph, d := range b.phases {
			phases[ph] += d
		}
	}
	s.AvgBatch = total / time.Duration(p.filled)
	if total > 0 {
		for ph, d := range phases {
			s.PhasePct[ph] = 100 * float64(d) / float64(total)
		}
		s.StepsPerSecond = float64(steps) * float64(time.Second) / float64(total)
	}
	return s
}

// LogValue implements slog.LogValuer, listing only phases above 0.1%.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_batch_us", s.AvgBatch.Microseconds()),
		slog.Int64("min_batch_us", s.MinBatch.Microseconds()),
		slog.Int64("max_batch_us", s.MaxBatch.Microseconds()),
		slog.Int("steps_per_sec", int(s.StepsPerSecond)),
	}
	for ph, pct := range s.PhasePct {
		if pct > 0.1 {
			attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// Log writes the stats to logger.
func (s PerfStats) Log(logger *slog.Logger) {
	logger.Info("perf", "perf", s)
}

// PerfStatsCSV is a row of perf.csv.
type PerfStatsCSV struct {
	Generation   float64 `csv:"generation"`
	AvgBatchUS   int64   `csv:"avg_batch_us"`
	MinBatchUS   int64   `csv:"min_batch_us"`
	MaxBatchUS   int64   `csv:"max_batch_us"`
	StepsPerSec  float64 `csv:"steps_per_sec"`
	StepPct      float64 `csv:"step_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
	SnapshotPct  float64 `csv:"snapshot_pct"`
	ArchivePct   float64 `csv:"archive_pct"`
}

// ToCSV flattens the stats into a perf.csv row.
func (s PerfStats) ToCSV(generation float64) PerfStatsCSV {
	return PerfStatsCSV{
		Generation:   generation,
		AvgBatchUS:   s.AvgBatch.Microseconds(),
		MinBatchUS:   s.MinBatch.Microseconds(),
		MaxBatchUS:   s.MaxBatch.Microseconds(),
		StepsPerSec:  s.StepsPerSecond,
		StepPct:      s.PhasePct[PhaseStep],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
		SnapshotPct:  s.PhasePct[PhaseSnapshot],
		ArchivePct:   s.PhasePct[PhaseArchive],
	}
}
