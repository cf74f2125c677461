package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/ibs/config"
)

// TraitRecord is one row of traits.csv.
type TraitRecord struct {
	Generation float64 `csv:"generation"`
	Trait      int     `csv:"trait"`
	Mean       float64 `csv:"mean"`
	Std        float64 `csv:"std"`
}

// TypeRecord is one row of types.csv.
type TypeRecord struct {
	Generation float64 `csv:"generation"`
	Type       int     `csv:"type"`
	Count      int     `csv:"count"`
	Frequency  float64 `csv:"frequency"`
}

// HistogramRecord is one row of histogram.csv.
type HistogramRecord struct {
	Generation float64 `csv:"generation"`
	Trait      int     `csv:"trait"`
	Bin        int     `csv:"bin"`
	Count      float64 `csv:"count"`
}

// csvFile appends records to a CSV file, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func writeRecords[T any](cf *csvFile, records []T, what string) error {
	if len(records) == 0 {
		return nil
	}
	if !cf.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, cf.f); err != nil {
			return fmt.Errorf("writing %s: %w", what, err)
		}
		cf.headerWritten = true
		return nil
	}
	// Subsequent writes skip headers
	if err := gocsv.MarshalWithoutHeaders(records, cf.f); err != nil {
		return fmt.Errorf("writing %s: %w", what, err)
	}
	return nil
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir string

	samples   csvFile
	traits    csvFile
	types     csvFile
	histogram csvFile
	perf      csvFile
	bookmarks csvFile
}

// outputFiles maps file names to the manager's CSV files.
func (om *OutputManager) outputFiles() map[string]*csvFile {
	return map[string]*csvFile{
		"samples.csv":   &om.samples,
		"traits.csv":    &om.traits,
		"types.csv":     &om.types,
		"histogram.csv": &om.histogram,
		"perf.csv":      &om.perf,
		"bookmarks.csv": &om.bookmarks,
	}
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for name, cf := range om.outputFiles() {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", name, err)
		}
		cf.f = f
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteSample writes a sample to samples.csv and its type counts to
// types.csv.
func (om *OutputManager) WriteSample(s Sample) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(&om.samples, []Sample{s}, "samples"); err != nil {
		return err
	}
	total := 0
	for _, c := range s.Types {
		total += c
	}
	rows := make([]TypeRecord, 0, len(s.Types))
	for t, c := range s.Types {
		rows = append(rows, TypeRecord{
			Generation: s.Generation,
			Type:       t,
			Count:      c,
			Frequency:  float64(c) / float64(max(1, total)),
		})
	}
	return writeRecords(&om.types, rows, "types")
}

// WriteSummary writes the moments of every trait to traits.csv.
func (om *OutputManager) WriteSummary(generation float64, sum Summary) error {
	if om == nil {
		return nil
	}
	rows := make([]TraitRecord, len(sum.Traits))
	for d, m := range sum.Traits {
		rows[d] = TraitRecord{Generation: generation, Trait: d, Mean: m.Mean, Std: m.Std}
	}
	return writeRecords(&om.traits, rows, "traits")
}

// WriteHistogram writes the bin counts of one trait to histogram.csv.
func (om *OutputManager) WriteHistogram(generation float64, trait int, counts []float64) error {
	if om == nil {
		return nil
	}
	rows := make([]HistogramRecord, len(counts))
	for b, c := range counts {
		rows[b] = HistogramRecord{Generation: generation, Trait: trait, Bin: b, Count: c}
	}
	return writeRecords(&om.histogram, rows, "histogram")
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, generation float64) error {
	if om == nil {
		return nil
	}
	return writeRecords(&om.perf, []PerfStatsCSV{stats.ToCSV(generation)}, "perf")
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return writeRecords(&om.bookmarks, []Bookmark{b}, "bookmark")
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, cf := range om.outputFiles() {
		if cf.f == nil {
			continue
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		cf.f = nil
	}
	return firstErr
}
